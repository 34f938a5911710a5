package config

import (
	"context"
	"fmt"
	"net/url"

	"github.com/roach88/restsql/internal/driver"
	"github.com/roach88/restsql/internal/driver/eshttp"
	"github.com/roach88/restsql/internal/driver/pgxdb"
	"github.com/roach88/restsql/internal/driver/sqldb"
	"github.com/roach88/restsql/internal/registry"
)

// Schema converts the declared tables into a registry schema.
func (b BackendConfig) Schema() registry.Schema {
	if len(b.Tables) == 0 {
		return nil
	}
	schema := make(registry.Schema, len(b.Tables))
	for table, cols := range b.Tables {
		fields := make(map[string]registry.FieldType, len(cols))
		for col, typ := range cols {
			fields[col] = registry.NormalizeType(typ)
		}
		schema[table] = registry.Table{Fields: fields}
	}
	return schema
}

// Descriptor builds the backend descriptor without a driver attached.
func (b BackendConfig) Descriptor() *registry.Descriptor {
	d := &registry.Descriptor{
		Name:        b.Name,
		Kind:        registry.Kind(b.Kind),
		Namespace:   b.Namespace,
		Placeholder: registry.Placeholder(b.Placeholder),
		Schema:      b.Schema(),
	}
	if d.Placeholder == "" {
		d.Placeholder = registry.PlaceholderQuestion
		if b.Driver == "postgres" || b.Driver == "pgx" {
			d.Placeholder = registry.PlaceholderDollar
		}
	}
	if b.Kind == string(registry.KindES) {
		d.Connection = redact(b.URL)
	} else {
		d.Connection = b.Driver + ":" + redact(b.DSN)
	}
	return d
}

// Connect opens every backend and returns the registry. Backends opened
// before a failure are closed again.
func (c *Config) Connect(ctx context.Context) (*registry.Registry, error) {
	descriptors := make([]*registry.Descriptor, 0, len(c.Backends))
	cleanup := func() {
		for _, d := range descriptors {
			closeDescriptor(d)
		}
	}
	for _, b := range c.Backends {
		d, err := b.connect(ctx)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("backend %q: %w", b.Name, err)
		}
		descriptors = append(descriptors, d)
	}
	reg, err := registry.New(descriptors...)
	if err != nil {
		cleanup()
		return nil, err
	}
	return reg, nil
}

func (b BackendConfig) connect(ctx context.Context) (*registry.Descriptor, error) {
	d := b.Descriptor()
	switch d.Kind {
	case registry.KindES:
		var opts []eshttp.Option
		if b.Username != "" {
			opts = append(opts, eshttp.WithBasicAuth(b.Username, b.Password))
		}
		client, err := eshttp.New(b.URL, opts...)
		if err != nil {
			return nil, err
		}
		d.Search = client
	case registry.KindSQL, registry.KindImpala:
		if b.Driver == "pgx" {
			pool, err := pgxdb.Connect(ctx, b.DSN, b.MaxConns)
			if err != nil {
				return nil, err
			}
			d.Relational = pool
			break
		}
		db, err := sqldb.Open(b.Driver, b.DSN)
		if err != nil {
			return nil, err
		}
		if b.MaxConns > 0 {
			db.DB().SetMaxOpenConns(int(b.MaxConns))
		}
		d.Relational = db
	default:
		return nil, fmt.Errorf("unknown kind %q", b.Kind)
	}
	return d, nil
}

func closeDescriptor(d *registry.Descriptor) {
	for _, drv := range []any{d.Relational, d.Search} {
		if c, ok := drv.(driver.Closer); ok {
			_ = c.Close()
		}
	}
}

// redact hides the password of URL-shaped connection strings.
func redact(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	return u.Redacted()
}
