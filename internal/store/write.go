package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Record appends e to the history. Recording an existing query id again is
// silently ignored. The assigned seq is returned, or 0 for a duplicate.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.QueryID == "" {
		return 0, errors.New("record query: empty query id")
	}
	if len(e.Document) == 0 {
		return 0, fmt.Errorf("record query %s: empty document", e.QueryID)
	}
	if e.Status == "" {
		e.Status = StatusOK
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO queries
		(query_id, fingerprint, document, status, error_code, error_message, row_count, requests, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_id) DO NOTHING
	`,
		e.QueryID,
		e.Fingerprint,
		string(e.Document),
		string(e.Status),
		string(e.ErrorCode),
		e.ErrorMessage,
		e.Rows,
		e.Requests,
		e.Duration.Milliseconds(),
		e.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("record query: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("record query: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record query: %w", err)
	}
	return seq, nil
}

// Prune deletes entries started before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM queries WHERE started_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}
