// Package driver defines what the engine needs from backend client
// libraries. Concrete adapters live in the sqldb, pgxdb and eshttp
// subpackages; tests use the fakes in internal/testutil.
package driver

import "context"

// Relational runs parameterized SELECT statements. SQL and Impala
// backends use it.
type Relational interface {
	Query(ctx context.Context, stmt string, args ...any) (Rows, error)
}

// Rows iterates a relational result. Callers must Close it.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	// Values returns the current row. Driver-specific types (byte slices,
	// numeric wrappers, timestamps) are normalised by the caller.
	Values() ([]any, error)
	Err() error
	Close() error
}

// Search submits a query DSL body to an index and returns the decoded
// JSON reply. Numbers in the reply should be json.Number or float64.
type Search interface {
	Search(ctx context.Context, index string, body map[string]any) (map[string]any, error)
}

// Closer is implemented by drivers that hold connections.
type Closer interface {
	Close() error
}
