// Package pgxdb is a native PostgreSQL driver.Relational built on pgxpool.
// Every query runs inside an opentracing span tagged with the statement.
package pgxdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/roach88/restsql/internal/driver"
)

// Pool is a pgx connection pool.
type Pool struct {
	db *pgxpool.Pool
}

var _ driver.Relational = (*Pool)(nil)

// Connect parses dsn, opens a pool and pings it. maxConns <= 0 keeps the
// pgx default.
func Connect(ctx context.Context, dsn string, maxConns int32) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "error while parsing postgres dsn")
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, "error while creating postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "error while pinging postgres")
	}
	return &Pool{db: pool}, nil
}

// Query runs a parameterized SELECT.
func (p *Pool) Query(ctx context.Context, stmt string, args ...any) (driver.Rows, error) {
	dbSpan, ctx := opentracing.StartSpanFromContext(ctx, "pgx.Query")
	defer dbSpan.Finish()

	dbSpan.SetTag("sql", stmt)
	dbSpan.SetTag("args", args)

	rows, err := p.db.Query(ctx, stmt, args...)
	if err != nil {
		dbSpan.SetTag("error", true)
		dbSpan.LogKV("error.message", err.Error())
		return nil, errors.Wrap(err, "error while querying postgres")
	}
	return &Rows{rows: rows}, nil
}

// Close closes the pool.
func (p *Pool) Close() error {
	p.db.Close()
	return nil
}

// Rows adapts pgx.Rows.
type Rows struct {
	rows pgx.Rows
}

func (r *Rows) Columns() ([]string, error) {
	fds := r.rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}
	return cols, nil
}

func (r *Rows) Next() bool { return r.rows.Next() }

func (r *Rows) Values() ([]any, error) {
	vals, err := r.rows.Values()
	if err != nil {
		return nil, errors.Wrap(err, "error while reading row")
	}
	for i, v := range vals {
		if vals[i], err = normalize(v); err != nil {
			return nil, err
		}
	}
	return vals, nil
}

func (r *Rows) Err() error { return r.rows.Err() }

func (r *Rows) Close() error {
	r.rows.Close()
	return nil
}

// normalize converts pgx-specific values into plain Go values.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return nil, nil
		}
		f, err := val.Float64Value()
		if err != nil {
			return nil, errors.Wrap(err, "error while converting numeric")
		}
		if !f.Valid {
			return nil, nil
		}
		return f.Float64, nil
	case [16]byte:
		return uuid.UUID(val).String(), nil
	default:
		return v, nil
	}
}
