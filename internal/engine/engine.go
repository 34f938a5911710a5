package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/roach88/restsql/internal/compiler"
	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/queryir"
	"github.com/roach88/restsql/internal/registry"
	"github.com/roach88/restsql/internal/table"
)

// DefaultMaxJoins bounds the fan-out of a single query.
const DefaultMaxJoins = 16

// Engine runs federated queries against a registry of backends.
//
// Thread-safety: an Engine holds only configuration and the shared
// registry; Run and Explain may be called from any goroutine.
type Engine struct {
	registry *registry.Registry
	logger   *slog.Logger
	ids      IDGenerator
	parallel bool
	maxJoins int
	fold     bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithIDGenerator sets the query ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithParallelSubqueries runs standalone subqueries concurrently.
// Default: false, subqueries run one after another in document order.
func WithParallelSubqueries(enabled bool) Option {
	return func(e *Engine) {
		e.parallel = enabled
	}
}

// WithMaxJoins sets the maximum number of joins per query.
//
// Default: 16 (DefaultMaxJoins)
func WithMaxJoins(n int) Option {
	return func(e *Engine) {
		e.maxJoins = n
	}
}

// WithPushDown enables folding same-backend joins into one statement.
// Default: true.
func WithPushDown(enabled bool) Option {
	return func(e *Engine) {
		e.fold = enabled
	}
}

// New creates an Engine over reg.
func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		parallel: false,
		maxJoins: DefaultMaxJoins,
		fold:     true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the backend registry the engine queries.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Result is the output of one query.
type Result struct {
	QueryID string
	Table   *table.Table
	// Requests is the number of backend requests issued.
	Requests int
	Duration time.Duration
}

// Columns returns the output columns in order.
func (r *Result) Columns() []string { return r.Table.Columns }

// Records returns the output rows.
func (r *Result) Records() []ir.Record { return r.Table.Records() }

// MarshalJSON encodes the rows as an ordered list of objects.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Table)
}

// Run executes q and returns its result table.
func (e *Engine) Run(ctx context.Context, q *queryir.Query) (*Result, error) {
	id := e.ids.Generate()
	log := e.logger.With("query_id", id)
	start := time.Now()

	records, err := e.prepare(q)
	if err != nil {
		log.Warn("query rejected", "error", err)
		return nil, err
	}

	res := &Result{QueryID: id}
	if q.Limit == 0 {
		res.Table = table.New(selectorColumns(q.Fields))
		res.Duration = time.Since(start)
		log.Info("query finished", "rows", 0, "requests", 0, "duration", res.Duration)
		return res, nil
	}

	if err := e.executeAll(ctx, log, records); err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.standalone() {
			res.Requests++
		}
	}

	merged, err := merge(records)
	if err != nil {
		log.Warn("merge failed", "error", err)
		return nil, err
	}
	if res.Table, err = shape(merged, q); err != nil {
		log.Warn("shaping failed", "error", err)
		return nil, err
	}
	res.Duration = time.Since(start)

	log.Info("query finished",
		"rows", res.Table.Len(),
		"requests", res.Requests,
		"duration", res.Duration,
	)
	return res, nil
}

// prepare runs the pure phases: split, coalesce and compile.
func (e *Engine) prepare(q *queryir.Query) ([]*record, error) {
	if len(q.Joins) > e.maxJoins {
		return nil, ir.Errorf(ir.ErrCodeInvalidQuery, "join", "query has %d joins, limit is %d", len(q.Joins), e.maxJoins)
	}
	records, err := split(e.registry, q)
	if err != nil {
		return nil, err
	}
	if e.fold {
		coalesce(records)
	}
	for _, rec := range records {
		if !rec.standalone() {
			continue
		}
		if rec.plan, err = compiler.Compile(rec.unit()); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// selectorColumns lists the output columns selectors would produce.
func selectorColumns(sels []queryir.Selector) []string {
	excluded := make(map[string]bool)
	for _, s := range sels {
		if s.Exclude {
			excluded[s.Source] = true
		}
	}
	var cols []string
	for _, s := range sels {
		if !s.Exclude && !excluded[s.Alias] {
			cols = append(cols, s.Alias)
		}
	}
	return cols
}

// SubqueryPlan describes how one subquery will run.
type SubqueryPlan struct {
	Name       string           `json:"name"`
	Role       queryir.JoinType `json:"role"`
	From       string           `json:"from"`
	Backend    string           `json:"backend"`
	Kind       registry.Kind    `json:"kind"`
	FoldedInto string           `json:"folded_into,omitempty"`
	Plan       map[string]any   `json:"plan,omitempty"`
}

// Explanation is the compiled form of a query without execution.
type Explanation struct {
	Subqueries []SubqueryPlan `json:"subqueries"`
	Sort       []string       `json:"sort,omitempty"`
	Limit      int            `json:"limit"`
}

// Explain compiles q and describes the backend requests Run would issue.
func (e *Engine) Explain(q *queryir.Query) (*Explanation, error) {
	records, err := e.prepare(q)
	if err != nil {
		return nil, err
	}
	out := &Explanation{Limit: q.Limit}
	for _, k := range q.Sort {
		out.Sort = append(out.Sort, k.String())
	}
	for _, rec := range records {
		sp := SubqueryPlan{
			Name:    rec.name,
			Role:    rec.role,
			From:    rec.sub.From,
			Backend: rec.backend.Name,
			Kind:    registry.KindOf(rec.backend),
		}
		if rec.foldedInto != nil {
			sp.FoldedInto = rec.foldedInto.name
		} else {
			sp.Plan = compiler.Explain(rec.plan)
		}
		out.Subqueries = append(out.Subqueries, sp)
	}
	return out, nil
}
