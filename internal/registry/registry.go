// Package registry maps backend names to descriptors.
//
// The registry is populated once at construction and is read-only
// afterwards, so it is safe for concurrent use.
package registry

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/restsql/internal/driver"
	"github.com/roach88/restsql/internal/ir"
)

// Kind drives compiler and executor dispatch.
type Kind string

const (
	KindSQL    Kind = "sql"
	KindES     Kind = "es"
	KindImpala Kind = "impala"
)

// Valid reports whether k is a supported backend kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSQL, KindES, KindImpala:
		return true
	default:
		return false
	}
}

// SupportsFold reports whether joins between two subqueries of this kind
// on the same backend can run as one backend query.
func (k Kind) SupportsFold() bool {
	return k == KindSQL || k == KindImpala
}

// Relational reports whether the kind executes through driver.Relational.
func (k Kind) Relational() bool {
	return k == KindSQL || k == KindImpala
}

// Placeholder selects the bind parameter style of a relational backend.
type Placeholder string

const (
	PlaceholderQuestion Placeholder = "question" // ?
	PlaceholderDollar   Placeholder = "dollar"   // $1, $2
)

// Descriptor describes one backend. Descriptors are shared by every query
// and must not be mutated after registration.
type Descriptor struct {
	Name        string
	Kind        Kind
	Connection  string // display form of the DSN or URL, no credentials
	Namespace   string // optional schema/database prefix for physical tables
	Placeholder Placeholder
	Schema      Schema

	Relational driver.Relational // set for sql and impala
	Search     driver.Search     // set for es
}

// Validate checks the descriptor is usable.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("backend name is required")
	}
	if strings.Contains(d.Name, ".") {
		return fmt.Errorf("backend %q: name must not contain '.'", d.Name)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("backend %q: unknown kind %q", d.Name, d.Kind)
	}
	if d.Kind.Relational() && d.Relational == nil {
		return fmt.Errorf("backend %q: %s backend has no relational driver", d.Name, d.Kind)
	}
	if d.Kind == KindES && d.Search == nil {
		return fmt.Errorf("backend %q: es backend has no search driver", d.Name)
	}
	switch d.Placeholder {
	case "", PlaceholderQuestion, PlaceholderDollar:
	default:
		return fmt.Errorf("backend %q: unknown placeholder %q", d.Name, d.Placeholder)
	}
	return nil
}

// PhysicalTable returns the table name as the backend knows it.
func (d *Descriptor) PhysicalTable(table string) string {
	if d.Namespace == "" {
		return table
	}
	return d.Namespace + "." + table
}

// Registry is the name → descriptor catalog.
type Registry struct {
	backends map[string]*Descriptor
}

// New builds a registry. Duplicate names and invalid descriptors are
// rejected.
func New(descriptors ...*Descriptor) (*Registry, error) {
	r := &Registry{backends: make(map[string]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.backends[d.Name]; dup {
			return nil, fmt.Errorf("backend %q registered twice", d.Name)
		}
		r.backends[d.Name] = d
	}
	return r, nil
}

// Resolve splits "<backend>.<table>" on the first dot and returns the
// backend descriptor and the table name.
func (r *Registry) Resolve(from string) (*Descriptor, string, error) {
	name, table, ok := strings.Cut(from, ".")
	if !ok || name == "" || table == "" {
		return nil, "", ir.Errorf(ir.ErrCodeInvalidReference, from, "from must be \"<backend>.<table>\"")
	}
	d, ok := r.backends[name]
	if !ok {
		return nil, "", ir.Errorf(ir.ErrCodeInvalidReference, from, "unknown backend %q", name)
	}
	return d, table, nil
}

// KindOf returns the descriptor's kind.
func KindOf(d *Descriptor) Kind {
	return d.Kind
}

// CanPushDown reports whether a join between subqueries on a and b can be
// folded into a single backend query.
func CanPushDown(a, b *Descriptor) bool {
	return a != nil && a == b && a.Kind.SupportsFold()
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	d, ok := r.backends[name]
	return d, ok
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Close closes every driver that holds connections. The first error is
// returned; every driver is still closed.
func (r *Registry) Close() error {
	var first error
	for _, name := range r.Names() {
		d := r.backends[name]
		for _, drv := range []any{d.Relational, d.Search} {
			if c, ok := drv.(driver.Closer); ok {
				if err := c.Close(); err != nil && first == nil {
					first = fmt.Errorf("close backend %q: %w", name, err)
				}
			}
		}
	}
	return first
}
