package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/restsql/internal/ir"
)

// ErrNotFound is returned by Get when no entry matches.
var ErrNotFound = errors.New("history entry not found")

const selectEntry = `
	SELECT seq, query_id, fingerprint, document, status, error_code, error_message,
	       row_count, requests, duration_ms, started_at
	FROM queries
`

// Recent returns up to limit entries, newest first. A limit <= 0 returns
// everything.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.list(ctx, selectEntry+`ORDER BY seq DESC LIMIT ?`, limit)
}

// ByFingerprint returns entries of one query shape, newest first.
func (s *Store) ByFingerprint(ctx context.Context, fingerprint string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.list(ctx, selectEntry+`WHERE fingerprint = ? ORDER BY seq DESC LIMIT ?`, fingerprint, limit)
}

// Get returns the entry with the given query id.
func (s *Store) Get(ctx context.Context, queryID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+`WHERE query_id = ?`, queryID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, queryID)
	}
	return e, err
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e          Entry
		document   string
		status     string
		code       string
		durationMS int64
		startedAt  string
	)
	err := row.Scan(&e.Seq, &e.QueryID, &e.Fingerprint, &document, &status, &code,
		&e.ErrorMessage, &e.Rows, &e.Requests, &durationMS, &startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan history entry: %w", err)
	}
	e.Document = []byte(document)
	e.Status = Status(status)
	e.ErrorCode = ir.ErrorCode(code)
	e.Duration = time.Duration(durationMS) * time.Millisecond
	if e.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return Entry{}, fmt.Errorf("parse started_at of %s: %w", e.QueryID, err)
	}
	return e, nil
}
