// Package client is the entry point for callers holding a query document:
// it shape-checks and parses the document, runs it on the engine and
// optionally records the outcome in the query history.
package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/restsql/internal/engine"
	"github.com/roach88/restsql/internal/queryir"
	"github.com/roach88/restsql/internal/store"
)

// History receives one entry per executed query.
type History interface {
	Record(ctx context.Context, e store.Entry) (int64, error)
}

// Client runs query documents.
//
// Thread-safety: safe for concurrent use if the History is.
type Client struct {
	engine  *engine.Engine
	history History
	ids     engine.IDGenerator
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHistory records every Query call in h.
func WithHistory(h History) Option {
	return func(c *Client) {
		c.history = h
	}
}

// WithClock sets the source of history timestamps. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithIDGenerator sets the id given to queries that fail before the engine
// assigns one. Default: UUIDv7Generator.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(c *Client) {
		c.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client over e.
func New(e *engine.Engine, opts ...Option) *Client {
	c := &Client{
		engine: e,
		ids:    engine.UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Engine returns the engine queries run on.
func (c *Client) Engine() *engine.Engine {
	return c.engine
}

// Query validates, parses and runs doc.
func (c *Client) Query(ctx context.Context, doc map[string]any) (*engine.Result, error) {
	start := c.now()
	res, err := c.run(ctx, doc)
	c.record(ctx, doc, start, res, err)
	return res, err
}

// QueryJSON decodes data as a query document and runs it. Numbers keep
// their integer or float form.
func (c *Client) QueryJSON(ctx context.Context, data []byte) (*engine.Result, error) {
	doc, err := queryir.Decode(data)
	if err != nil {
		return nil, err
	}
	return c.Query(ctx, doc)
}

// Explain validates and compiles doc without touching any backend.
func (c *Client) Explain(ctx context.Context, doc map[string]any) (*engine.Explanation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := Parse(doc)
	if err != nil {
		return nil, err
	}
	return c.engine.Explain(q)
}

// Validate reports the first shape, reference or schema error in doc.
func (c *Client) Validate(ctx context.Context, doc map[string]any) error {
	_, err := c.Explain(ctx, doc)
	return err
}

// Parse shape-checks doc against the query schema and parses it.
func Parse(doc map[string]any) (*queryir.Query, error) {
	if err := queryir.ValidateShape(doc); err != nil {
		return nil, err
	}
	return queryir.Parse(doc)
}

func (c *Client) run(ctx context.Context, doc map[string]any) (*engine.Result, error) {
	q, err := Parse(doc)
	if err != nil {
		return nil, err
	}
	return c.engine.Run(ctx, q)
}

// record writes the outcome to history. History failures are logged and
// never fail the query.
func (c *Client) record(ctx context.Context, doc map[string]any, start time.Time, res *engine.Result, runErr error) {
	if c.history == nil {
		return
	}
	id := ""
	if res != nil {
		id = res.QueryID
	}
	if id == "" {
		id = c.ids.Generate()
	}

	entry, err := store.NewEntry(id, doc, start)
	if err != nil {
		c.logger.Warn("history entry skipped", "query_id", id, "error", err)
		return
	}
	if runErr != nil {
		entry.Fail(runErr)
		entry.Duration = c.now().Sub(start)
	} else {
		entry.Rows = res.Table.Len()
		entry.Requests = res.Requests
		entry.Duration = res.Duration
	}

	// the caller's cancellation must not lose the entry
	if _, err := c.history.Record(context.WithoutCancel(ctx), entry); err != nil {
		c.logger.Warn("history write failed", "query_id", id, "error", err)
	}
}
