package engine

import (
	"fmt"

	"github.com/roach88/restsql/internal/compiler"
	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/queryir"
	"github.com/roach88/restsql/internal/registry"
	"github.com/roach88/restsql/internal/table"
)

// record is the per-subquery working state of one query run.
type record struct {
	name    string // "select" or "join[i]"
	role    queryir.JoinType
	sub     queryir.Subquery
	join    *queryir.Join // nil for the main record
	backend *registry.Descriptor
	table   string

	attached   []*record // joins folded into this record
	foldedInto *record

	plan   compiler.Plan
	result *table.Table
}

func (r *record) standalone() bool { return r.foldedInto == nil }

func (r *record) aliases() queryir.Aliases {
	if r.join == nil {
		return nil
	}
	return r.join.Export
}

// unit is the compiler input for a standalone record.
func (r *record) unit() compiler.Unit {
	u := compiler.Unit{
		Backend:  r.backend,
		Table:    r.table,
		Subquery: r.sub,
		Aliases:  r.aliases(),
	}
	for _, a := range r.attached {
		u.Folds = append(u.Folds, compiler.Fold{
			Type:     a.role,
			Table:    a.table,
			Subquery: a.sub,
			On:       a.join.On,
			Aliases:  a.aliases(),
		})
	}
	return u
}

// split resolves the backend of the main subquery and every join. The
// first record is always the main one; joins follow in document order.
func split(reg *registry.Registry, q *queryir.Query) ([]*record, error) {
	records := make([]*record, 0, 1+len(q.Joins))

	d, tbl, err := reg.Resolve(q.Select.From)
	if err != nil {
		return nil, err
	}
	records = append(records, &record{
		name:    "select",
		role:    queryir.JoinMain,
		sub:     q.Select,
		backend: d,
		table:   tbl,
	})

	for i := range q.Joins {
		j := &q.Joins[i]
		name := fmt.Sprintf("join[%d]", i)
		if !j.Type.Valid() {
			return nil, ir.Errorf(ir.ErrCodeInvalidQuery, name, "unknown join type %q", j.Type)
		}
		if len(j.On) == 0 {
			return nil, ir.Errorf(ir.ErrCodeInvalidQuery, name, "join has no on keys")
		}
		d, tbl, err := reg.Resolve(j.Query.From)
		if err != nil {
			return nil, err
		}
		records = append(records, &record{
			name:    name,
			role:    j.Type,
			sub:     j.Query,
			join:    j,
			backend: d,
			table:   tbl,
		})
	}
	return records, nil
}

// coalesce folds joins into the main record where the result is the same
// as merging in memory. Only a leading run of joins is folded so that the
// left-fold order of the remaining merges is unchanged.
func coalesce(records []*record) {
	main := records[0]
	for _, rec := range records[1:] {
		if !canFold(main, rec) {
			return
		}
		rec.foldedInto = main
		main.attached = append(main.attached, rec)
	}
}

func canFold(main, rec *record) bool {
	if !registry.CanPushDown(main.backend, rec.backend) {
		return false
	}
	if len(main.backend.Schema) == 0 {
		return false
	}
	switch rec.role {
	case queryir.InnerJoin:
	case queryir.LeftJoin:
		// a WHERE on the joined table would drop unmatched main rows
		if len(rec.sub.Filter) > 0 {
			return false
		}
	default:
		return false
	}
	if grouped(main.sub) || grouped(rec.sub) {
		return false
	}
	schema := main.backend.Schema
	for _, p := range rec.join.On {
		if !schema.HasColumn(main.table, p.Left) || !schema.HasColumn(rec.table, p.Right) {
			return false
		}
		if !exposes(main.sub, p.Left) || !exposes(rec.sub, p.Right) {
			return false
		}
		if rec.join.Export.Apply(p.Right) != p.Right {
			return false
		}
	}
	return true
}

func grouped(s queryir.Subquery) bool {
	return len(s.Aggregation) > 0 || len(s.GroupBy) > 0
}

// exposes reports whether s projects col under its own name.
func exposes(s queryir.Subquery, col string) bool {
	for _, f := range s.Fields {
		if f.Column == col && f.Alias == col {
			return true
		}
	}
	return false
}
