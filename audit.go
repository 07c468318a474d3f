package permit

import (
	"context"
	"sync"
	"time"
)

// AuditEntry records one permission check outcome
type AuditEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"user_id"`
	Resource  string         `json:"resource"`
	Action    string         `json:"action"`
	Result    string         `json:"result"`
	Reason    string         `json:"reason,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// AuditFilter narrows audit queries. Zero-valued fields match
// everything; set fields combine conjunctively.
type AuditFilter struct {
	UserID    string
	Resource  string
	Action    string
	Result    string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

func (f AuditFilter) matches(e *AuditEntry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Resource != "" && e.Resource != f.Resource {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Result != "" && e.Result != f.Result {
		return false
	}
	if !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime) {
		return false
	}
	return true
}

// AuditLog is the live, queryable record of permission checks. Record
// must not block on I/O; implementations that persist should do so
// out of band.
type AuditLog interface {
	Record(ctx context.Context, entry *AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) ([]*AuditEntry, error)
	Size() int
}

// AuditArchive receives entries that retention pruning evicted from
// the live log, typically to land them in durable storage.
type AuditArchive interface {
	Archive(ctx context.Context, entries []*AuditEntry) error
}

// MemoryAuditLog keeps entries in append order in memory.
type MemoryAuditLog struct {
	mu      sync.RWMutex
	entries []*AuditEntry
}

func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{
		entries: make([]*AuditEntry, 0),
	}
}

func (l *MemoryAuditLog) Record(ctx context.Context, entry *AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// Query returns matching entries most recent first. A Limit of zero
// returns every match.
func (l *MemoryAuditLog) Query(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]*AuditEntry, 0)
	for i := len(l.entries) - 1; i >= 0; i-- {
		entry := l.entries[i]
		if !filter.matches(entry) {
			continue
		}
		result = append(result, entry)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// PruneOlderThan removes entries stamped before cutoff and returns
// them, oldest first, so the caller can hand them to an archive.
func (l *MemoryAuditLog) PruneOlderThan(ctx context.Context, cutoff time.Time) ([]*AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := make([]*AuditEntry, 0, len(l.entries))
	var removed []*AuditEntry
	for _, entry := range l.entries {
		if entry.Timestamp.Before(cutoff) {
			removed = append(removed, entry)
			continue
		}
		kept = append(kept, entry)
	}
	l.entries = kept
	return removed, nil
}

func (l *MemoryAuditLog) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
