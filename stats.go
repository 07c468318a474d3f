package permit

import (
	"sync/atomic"
	"time"
)

// Statistics is a point-in-time, read-only view of engine activity.
// Counter fields come from the collector; the size fields are read
// from the live components at snapshot time rather than tracked
// separately, so they cannot drift.
type Statistics struct {
	TotalChecks       int64          `json:"total_checks"`
	GrantedChecks     int64          `json:"granted_checks"`
	DeniedChecks      int64          `json:"denied_checks"`
	CacheHits         int64          `json:"cache_hits"`
	CacheHitRate      float64        `json:"cache_hit_rate"`
	RoleAssignments   int64          `json:"role_assignments"`
	RoleRevocations   int64          `json:"role_revocations"`
	CleanupOperations int64          `json:"cleanup_operations"`
	AverageLatency    time.Duration  `json:"average_latency_ns"`
	Directory         DirectorySizes `json:"directory"`
	CacheSize         int            `json:"cache_size"`
	AuditSize         int            `json:"audit_size"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

// statsCollector holds the monotonic counters. Increments are atomic
// so concurrent checks never lose updates; reads tear harmlessly
// since each field is consistent on its own.
type statsCollector struct {
	totalChecks       atomic.Int64
	grantedChecks     atomic.Int64
	deniedChecks      atomic.Int64
	cacheHits         atomic.Int64
	roleAssignments   atomic.Int64
	roleRevocations   atomic.Int64
	cleanupOperations atomic.Int64
	latencyNs         atomic.Int64
}

func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

// observeCheck records one completed permission check. Error outcomes
// count toward totals only; granted and denied each get their own
// counter whether or not the decision came from the cache.
func (s *statsCollector) observeCheck(out Outcome, elapsed time.Duration, fromCache bool) {
	s.totalChecks.Add(1)
	s.latencyNs.Add(int64(elapsed))
	switch out {
	case OutcomeGranted:
		s.grantedChecks.Add(1)
	case OutcomeDenied:
		s.deniedChecks.Add(1)
	}
	if fromCache {
		s.cacheHits.Add(1)
	}
}

func (s *statsCollector) roleAssigned() { s.roleAssignments.Add(1) }

func (s *statsCollector) roleRevoked() { s.roleRevocations.Add(1) }

func (s *statsCollector) cleanupRan() { s.cleanupOperations.Add(1) }

// snapshot materializes the counter fields of a Statistics view. The
// caller fills in the live sizes.
func (s *statsCollector) snapshot() Statistics {
	total := s.totalChecks.Load()
	hits := s.cacheHits.Load()
	var hitRate float64
	var avg time.Duration
	if total > 0 {
		hitRate = float64(hits) / float64(total)
		avg = time.Duration(s.latencyNs.Load() / total)
	}
	return Statistics{
		TotalChecks:       total,
		GrantedChecks:     s.grantedChecks.Load(),
		DeniedChecks:      s.deniedChecks.Load(),
		CacheHits:         hits,
		CacheHitRate:      hitRate,
		RoleAssignments:   s.roleAssignments.Load(),
		RoleRevocations:   s.roleRevocations.Load(),
		CleanupOperations: s.cleanupOperations.Load(),
		AverageLatency:    avg,
	}
}
