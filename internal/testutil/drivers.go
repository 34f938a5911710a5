package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/restsql/internal/driver"
)

// FakeRelational is a scripted driver.Relational. Every call is recorded;
// the reply comes from Respond when set, otherwise from Columns and Rows.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FakeRelational struct {
	Columns []string
	Rows    [][]any
	Err     error
	Respond func(stmt string, args []any) ([]string, [][]any, error)

	mu    sync.Mutex
	calls []Call
}

// Call is one recorded request.
type Call struct {
	Statement string
	Args      []any
}

// Query records the call and returns the scripted rows.
func (f *FakeRelational) Query(ctx context.Context, stmt string, args ...any) (driver.Rows, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Statement: stmt, Args: args})
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Respond != nil {
		cols, rows, err := f.Respond(stmt, args)
		if err != nil {
			return nil, err
		}
		return NewRows(cols, rows...), nil
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return NewRows(f.Columns, f.Rows...), nil
}

// Calls returns the recorded calls in order.
func (f *FakeRelational) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Rows is an in-memory driver.Rows.
type Rows struct {
	cols   []string
	rows   [][]any
	pos    int
	closed bool
}

// NewRows creates a cursor over rows.
func NewRows(cols []string, rows ...[]any) *Rows {
	return &Rows{cols: cols, rows: rows}
}

func (r *Rows) Columns() ([]string, error) { return r.cols, nil }

func (r *Rows) Next() bool {
	if r.closed || r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Values() ([]any, error) {
	if r.pos == 0 || r.closed {
		return nil, errors.New("rows: Values called without a current row")
	}
	return r.rows[r.pos-1], nil
}

func (r *Rows) Err() error { return nil }

func (r *Rows) Close() error {
	r.closed = true
	return nil
}

// FakeSearch is a scripted driver.Search.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FakeSearch struct {
	Response map[string]any
	Err      error
	Respond  func(index string, body map[string]any) (map[string]any, error)

	mu       sync.Mutex
	requests []SearchRequest
}

// SearchRequest is one recorded search.
type SearchRequest struct {
	Index string
	Body  map[string]any
}

// Search records the request and returns the scripted reply.
func (f *FakeSearch) Search(ctx context.Context, index string, body map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.requests = append(f.requests, SearchRequest{Index: index, Body: body})
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Respond != nil {
		return f.Respond(index, body)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Response, nil
}

// Requests returns the recorded searches in order.
func (f *FakeSearch) Requests() []SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SearchRequest(nil), f.requests...)
}

// Hits builds a search reply carrying sources as hits.
func Hits(sources ...map[string]any) map[string]any {
	hits := make([]any, len(sources))
	for i, s := range sources {
		hits[i] = map[string]any{"_source": s}
	}
	return map[string]any{"hits": map[string]any{"hits": hits}}
}

// Buckets builds a group_by aggregation reply.
func Buckets(buckets ...map[string]any) map[string]any {
	list := make([]any, len(buckets))
	for i, b := range buckets {
		list[i] = b
	}
	return map[string]any{
		"aggregations": map[string]any{
			"groupby": map[string]any{"buckets": list},
		},
	}
}
