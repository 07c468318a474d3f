package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/permit"
)

// SQLAuditArchive persists audit entries pruned from the live log.
// It satisfies permit.AuditArchive; History exposes the archived
// trail with the same filter surface as the live log.
type SQLAuditArchive struct {
	db *squealx.DB
}

func NewSQLAuditArchive(db *squealx.DB) (*SQLAuditArchive, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &SQLAuditArchive{db: db}, nil
}

func (s *SQLAuditArchive) Archive(ctx context.Context, entries []*permit.AuditEntry) error {
	q := `INSERT INTO audit_archive(id, timestamp, user_id, resource, action, result, reason, trace_id, details_json) VALUES(:id, :timestamp, :user_id, :resource, :action, :result, :reason, :trace_id, :details_json)`
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		detailsB, _ := json.Marshal(entry.Details)
		_, err := s.db.NamedExecContext(ctx, q, map[string]any{
			"id":           entry.ID,
			"timestamp":    entry.Timestamp,
			"user_id":      entry.UserID,
			"resource":     entry.Resource,
			"action":       entry.Action,
			"result":       entry.Result,
			"reason":       entry.Reason,
			"trace_id":     entry.TraceID,
			"details_json": string(detailsB),
		})
		if err != nil {
			return fmt.Errorf("archive entry %s: %w", entry.ID, err)
		}
	}
	return nil
}

// History returns archived entries matching the filter, most recent
// first. Without an explicit limit at most 100 rows come back.
func (s *SQLAuditArchive) History(ctx context.Context, filter permit.AuditFilter) ([]*permit.AuditEntry, error) {
	q := `SELECT id, timestamp, user_id, resource, action, result, reason, trace_id, details_json FROM audit_archive WHERE 1=1`
	params := map[string]any{}
	if filter.UserID != "" {
		q += " AND user_id = :user_id"
		params["user_id"] = filter.UserID
	}
	if filter.Resource != "" {
		q += " AND resource = :resource"
		params["resource"] = filter.Resource
	}
	if filter.Action != "" {
		q += " AND action = :action"
		params["action"] = filter.Action
	}
	if filter.Result != "" {
		q += " AND result = :result"
		params["result"] = filter.Result
	}
	if !filter.StartTime.IsZero() {
		q += " AND timestamp >= :start"
		params["start"] = filter.StartTime
	}
	if !filter.EndTime.IsZero() {
		q += " AND timestamp <= :end"
		params["end"] = filter.EndTime
	}
	q += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	} else {
		q += " LIMIT 100"
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*permit.AuditEntry, 0)
	for r.Next() {
		var id, userID, resource, action, result, reason, traceID, detailsJSON string
		var timestampRaw any
		if err := r.Scan(&id, &timestampRaw, &userID, &resource, &action, &result, &reason, &traceID, &detailsJSON); err != nil {
			return nil, err
		}
		entry := &permit.AuditEntry{
			ID:        id,
			Timestamp: scanTime(timestampRaw),
			UserID:    userID,
			Resource:  resource,
			Action:    action,
			Result:    result,
			Reason:    reason,
			TraceID:   traceID,
		}
		_ = json.Unmarshal([]byte(detailsJSON), &entry.Details)
		out = append(out, entry)
	}
	return out, nil
}

// Count reports how many entries the archive holds
func (s *SQLAuditArchive) Count(ctx context.Context) (int, error) {
	r, err := s.db.NamedQueryContext(ctx, `SELECT COUNT(*) FROM audit_archive`, map[string]any{})
	if err != nil {
		return 0, err
	}
	defer r.Close()
	count := 0
	if r.Next() {
		if err := r.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, nil
}
