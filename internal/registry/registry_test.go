package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restsql/internal/driver"
	"github.com/roach88/restsql/internal/ir"
)

type stubRelational struct{ closed bool }

func (s *stubRelational) Query(context.Context, string, ...any) (driver.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRelational) Close() error {
	s.closed = true
	return nil
}

type stubSearch struct{}

func (stubSearch) Search(context.Context, string, map[string]any) (map[string]any, error) {
	return nil, nil
}

func newTestRegistry(t *testing.T) (*Registry, *stubRelational) {
	t.Helper()
	rel := &stubRelational{}
	r, err := New(
		&Descriptor{Name: "db", Kind: KindSQL, Relational: rel, Schema: Schema{
			"people": {Fields: map[string]FieldType{"name": TypeString, "age": TypeInt}},
		}},
		&Descriptor{Name: "es", Kind: KindES, Search: stubSearch{}},
		&Descriptor{Name: "lake", Kind: KindImpala, Relational: rel, Namespace: "warehouse"},
	)
	require.NoError(t, err)
	return r, rel
}

func TestResolve(t *testing.T) {
	r, _ := newTestRegistry(t)

	d, table, err := r.Resolve("db.people")
	require.NoError(t, err)
	assert.Equal(t, "db", d.Name)
	assert.Equal(t, "people", table)
	assert.Equal(t, KindSQL, KindOf(d))

	// split on the first dot only
	_, table, err = r.Resolve("es.logs.2024")
	require.NoError(t, err)
	assert.Equal(t, "logs.2024", table)
}

func TestResolve_InvalidReference(t *testing.T) {
	r, _ := newTestRegistry(t)

	for _, from := range []string{"", "people", "nope.people", ".people", "db."} {
		t.Run(from, func(t *testing.T) {
			_, _, err := r.Resolve(from)
			assert.True(t, ir.IsCode(err, ir.ErrCodeInvalidReference), "from %q: %v", from, err)
		})
	}
}

func TestCanPushDown(t *testing.T) {
	r, _ := newTestRegistry(t)
	db, _ := r.Get("db")
	es, _ := r.Get("es")
	lake, _ := r.Get("lake")

	assert.True(t, CanPushDown(db, db))
	assert.True(t, CanPushDown(lake, lake))
	assert.False(t, CanPushDown(db, lake), "different descriptors never fold")
	assert.False(t, CanPushDown(es, es), "es does not support folding")
	assert.False(t, CanPushDown(nil, nil))
}

func TestNew_Rejects(t *testing.T) {
	rel := &stubRelational{}
	tests := []struct {
		name string
		ds   []*Descriptor
	}{
		{"duplicate", []*Descriptor{{Name: "a", Kind: KindSQL, Relational: rel}, {Name: "a", Kind: KindSQL, Relational: rel}}},
		{"dotted name", []*Descriptor{{Name: "a.b", Kind: KindSQL, Relational: rel}}},
		{"unknown kind", []*Descriptor{{Name: "a", Kind: "mongo"}}},
		{"sql without driver", []*Descriptor{{Name: "a", Kind: KindSQL}}},
		{"es without driver", []*Descriptor{{Name: "a", Kind: KindES}}},
		{"bad placeholder", []*Descriptor{{Name: "a", Kind: KindSQL, Relational: rel, Placeholder: "colon"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.ds...)
			assert.Error(t, err)
		})
	}
}

func TestSchemaAndNames(t *testing.T) {
	r, rel := newTestRegistry(t)
	db, _ := r.Get("db")
	lake, _ := r.Get("lake")

	assert.Equal(t, []string{"db", "es", "lake"}, r.Names())
	assert.True(t, db.Schema.HasColumn("people", "age"))
	assert.False(t, db.Schema.HasColumn("people", "height"))
	assert.False(t, db.Schema.HasColumn("pets", "age"))
	assert.Equal(t, TypeInt, db.Schema.TypeOf("people", "age"))
	assert.Equal(t, []string{"age", "name"}, db.Schema.Columns("people"))
	assert.Equal(t, "warehouse.events", lake.PhysicalTable("events"))
	assert.Equal(t, "people", db.PhysicalTable("people"))

	require.NoError(t, r.Close())
	assert.True(t, rel.closed)
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, TypeInt, NormalizeType("BIGINT"))
	assert.Equal(t, TypeFloat, NormalizeType("double"))
	assert.Equal(t, TypeBool, NormalizeType("boolean"))
	assert.Equal(t, TypeString, NormalizeType("keyword"))
}
