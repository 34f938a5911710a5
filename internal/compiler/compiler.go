// Package compiler turns subqueries into backend plans.
//
// It owns the checks every backend shares (table and column references
// against the registered schema, namespace application) and dispatches to
// the SQL or search compiler by backend kind.
package compiler

import (
	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/queryes"
	"github.com/roach88/restsql/internal/queryir"
	"github.com/roach88/restsql/internal/querysql"
	"github.com/roach88/restsql/internal/registry"
)

// Plan is a compiled backend request.
//
// Implementations: *querysql.Plan, *queryes.Plan.
type Plan interface {
	PlanKind() registry.Kind
	Explain() map[string]any
}

var (
	_ Plan = (*querysql.Plan)(nil)
	_ Plan = (*queryes.Plan)(nil)
)

// Unit is one standalone backend request: a subquery plus any joins folded
// into it.
type Unit struct {
	Backend  *registry.Descriptor
	Table    string // logical table name
	Subquery queryir.Subquery
	Aliases  queryir.Aliases
	Folds    []Fold
}

// Fold is a join rendered inside the unit's statement.
type Fold struct {
	Type     queryir.JoinType
	Table    string
	Subquery queryir.Subquery
	On       []queryir.OnPair
	Aliases  queryir.Aliases
}

// Compile validates u against its backend schema and builds the plan.
func Compile(u Unit) (Plan, error) {
	if u.Backend == nil {
		return nil, ir.Errorf(ir.ErrCodeInvalidReference, u.Subquery.From, "no backend for subquery")
	}
	if err := Validate(u.Backend, u.Table, u.Subquery); err != nil {
		return nil, err
	}
	for _, f := range u.Folds {
		if err := Validate(u.Backend, f.Table, f.Subquery); err != nil {
			return nil, err
		}
		for _, p := range f.On {
			if len(u.Backend.Schema) == 0 {
				break
			}
			if !u.Backend.Schema.HasColumn(u.Table, p.Left) {
				return nil, unknownColumn(u.Backend, u.Table, p.Left)
			}
			if !u.Backend.Schema.HasColumn(f.Table, p.Right) {
				return nil, unknownColumn(u.Backend, f.Table, p.Right)
			}
		}
	}

	kind := registry.KindOf(u.Backend)
	switch {
	case kind.Relational():
		primary := querysql.Source{
			Subquery: u.Subquery,
			Table:    u.Backend.PhysicalTable(u.Table),
			JoinType: queryir.JoinMain,
			Aliases:  u.Aliases,
		}
		folds := make([]querysql.Source, len(u.Folds))
		for i, f := range u.Folds {
			folds[i] = querysql.Source{
				Subquery: f.Subquery,
				Table:    u.Backend.PhysicalTable(f.Table),
				JoinType: f.Type,
				On:       f.On,
				Aliases:  f.Aliases,
			}
		}
		return querysql.NewCompiler(kind, u.Backend.Placeholder).Compile(primary, folds...)
	case kind == registry.KindES:
		if len(u.Folds) > 0 {
			return nil, ir.Errorf(ir.ErrCodeInvalidQuery, u.Backend.Name, "search backends cannot fold joins")
		}
		return queryes.Compile(u.Subquery, u.Table, u.Backend.PhysicalTable(u.Table), u.Aliases)
	default:
		return nil, ir.Errorf(ir.ErrCodeInvalidReference, u.Backend.Name, "unsupported backend kind %q", kind)
	}
}

// Validate checks that every name sub reads or writes is a plain
// identifier (a dotted field path on search backends), then that table
// exists in the backend schema and every column is declared on it.
// Backends without a declared schema accept any well-formed name.
func Validate(d *registry.Descriptor, table string, sub queryir.Subquery) error {
	valid := queryir.IsIdentifier
	if registry.KindOf(d) == registry.KindES {
		valid = queryir.IsFieldPath
	}
	if err := sub.CheckIdentifiers(valid); err != nil {
		return err
	}
	if len(d.Schema) == 0 {
		return nil
	}
	if !d.Schema.HasTable(table) {
		return ir.Errorf(ir.ErrCodeUnknownColumn, d.Name+"."+table, "backend %q has no table %q", d.Name, table)
	}
	for _, col := range sub.Columns() {
		if !d.Schema.HasColumn(table, col) {
			return unknownColumn(d, table, col)
		}
	}
	return nil
}

// Explain renders p for display.
func Explain(p Plan) map[string]any {
	if p == nil {
		return nil
	}
	return p.Explain()
}

func unknownColumn(d *registry.Descriptor, table, col string) error {
	return ir.Errorf(ir.ErrCodeUnknownColumn, table+"."+col, "table %q on backend %q has no column %q", table, d.Name, col)
}
