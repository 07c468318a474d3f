package permit

import (
	"sync"
	"testing"
	"time"
)

func TestStatsObserveCheck(t *testing.T) {
	s := newStatsCollector()

	s.observeCheck(OutcomeGranted, 10*time.Millisecond, false)
	s.observeCheck(OutcomeGranted, 20*time.Millisecond, true)
	s.observeCheck(OutcomeDenied, 30*time.Millisecond, false)
	s.observeCheck(OutcomeError, 40*time.Millisecond, false)

	snap := s.snapshot()
	if snap.TotalChecks != 4 {
		t.Fatalf("expected 4 total checks, got %d", snap.TotalChecks)
	}
	if snap.GrantedChecks != 2 || snap.DeniedChecks != 1 {
		t.Fatalf("expected granted=2 denied=1, got granted=%d denied=%d", snap.GrantedChecks, snap.DeniedChecks)
	}
	if snap.CacheHits != 1 || snap.CacheHitRate != 0.25 {
		t.Fatalf("expected hits=1 rate=0.25, got hits=%d rate=%f", snap.CacheHits, snap.CacheHitRate)
	}
	if snap.AverageLatency != 25*time.Millisecond {
		t.Fatalf("expected average latency 25ms, got %v", snap.AverageLatency)
	}
}

func TestStatsEmptySnapshot(t *testing.T) {
	s := newStatsCollector()
	snap := s.snapshot()
	if snap.TotalChecks != 0 || snap.CacheHitRate != 0 || snap.AverageLatency != 0 {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}

func TestStatsAdminCounters(t *testing.T) {
	s := newStatsCollector()
	s.roleAssigned()
	s.roleAssigned()
	s.roleRevoked()
	s.cleanupRan()

	snap := s.snapshot()
	if snap.RoleAssignments != 2 || snap.RoleRevocations != 1 || snap.CleanupOperations != 1 {
		t.Fatalf("unexpected admin counters: %+v", snap)
	}
}

func TestStatsConcurrentObservers(t *testing.T) {
	s := newStatsCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.observeCheck(OutcomeGranted, time.Microsecond, j%2 == 0)
			}
		}()
	}
	wg.Wait()

	snap := s.snapshot()
	if snap.TotalChecks != 8000 || snap.GrantedChecks != 8000 {
		t.Fatalf("lost updates: total=%d granted=%d", snap.TotalChecks, snap.GrantedChecks)
	}
	if snap.CacheHits != 4000 {
		t.Fatalf("lost cache hits: %d", snap.CacheHits)
	}
}
