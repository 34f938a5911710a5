// Package sqldb adapts database/sql to driver.Relational.
//
// The sqlite3 and postgres drivers are registered here. Impala and other
// engines work with any database/sql driver the host binary registers.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/restsql/internal/driver"
)

// DB is a database/sql handle that satisfies driver.Relational.
type DB struct {
	db *sql.DB
}

var _ driver.Relational = (*DB)(nil)

// Open opens and pings a database. In-memory SQLite databases are limited
// to one connection so every query sees the same database.
func Open(driverName, dsn string) (*DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driverName, err)
	}
	if driverName == "sqlite3" && isMemory(dsn) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	return &DB{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *DB {
	return &DB{db: db}
}

func isMemory(dsn string) bool {
	return dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// DB returns the underlying handle.
func (d *DB) DB() *sql.DB {
	return d.db
}

// Query runs a parameterized SELECT.
func (d *DB) Query(ctx context.Context, stmt string, args ...any) (driver.Rows, error) {
	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows}, nil
}

// Close closes the handle.
func (d *DB) Close() error {
	return d.db.Close()
}

// Rows adapts *sql.Rows. Byte slices are returned as strings.
type Rows struct {
	rows *sql.Rows
	cols []string
}

func (r *Rows) Columns() ([]string, error) {
	if r.cols == nil {
		cols, err := r.rows.Columns()
		if err != nil {
			return nil, err
		}
		r.cols = cols
	}
	return r.cols, nil
}

func (r *Rows) Next() bool { return r.rows.Next() }

func (r *Rows) Values() ([]any, error) {
	cols, err := r.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			vals[i] = string(b)
		}
	}
	return vals, nil
}

func (r *Rows) Err() error { return r.rows.Err() }

func (r *Rows) Close() error { return r.rows.Close() }
