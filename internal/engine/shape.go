package engine

import (
	"slices"

	"github.com/roach88/restsql/internal/expr"
	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/queryir"
	"github.com/roach88/restsql/internal/table"
)

var mergeMode = map[queryir.JoinType]table.How{
	queryir.LeftJoin:  table.Left,
	queryir.InnerJoin: table.Inner,
	queryir.FullJoin:  table.Outer,
}

// merge left-folds every standalone join result into the main result in
// document order.
func merge(records []*record) (*table.Table, error) {
	acc := records[0].result
	for _, rec := range records[1:] {
		if !rec.standalone() {
			continue
		}
		next, err := table.Merge(acc, rec.result, rec.join.LeftKeys(), rec.join.RightKeys(), mergeMode[rec.role])
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

// output is one produced column: a merged column carried through, possibly
// renamed, or an evaluated expression.
type output struct {
	name   string
	column string
	node   expr.Node
}

// shape applies the top-level selectors, sort and limit to the merged
// table.
//
// Only selected columns survive, so a query without selectors returns
// records with no columns. Expressions may read
// merged columns and the outputs of earlier selectors, merged columns
// taking precedence. Sort keys resolve the same way.
func shape(t *table.Table, q *queryir.Query) (*table.Table, error) {
	t = t.FillNull()

	outputs, excluded, err := resolveSelectors(t, q.Fields)
	if err != nil {
		return nil, err
	}

	// view: merged columns plus outputs that do not shadow them
	viewCols := slices.Clone(t.Columns)
	for _, o := range outputs {
		if !t.HasColumn(o.name) {
			viewCols = append(viewCols, o.name)
		}
	}
	views := make([]ir.Record, len(t.Rows))
	for i, row := range t.Rows {
		view := row.Clone()
		for _, o := range outputs {
			if t.HasColumn(o.name) {
				continue
			}
			v, err := o.value(view)
			if err != nil {
				return nil, err
			}
			view[o.name] = v
		}
		views[i] = view
	}

	keys := make([]table.SortKey, len(q.Sort))
	for i, k := range q.Sort {
		keys[i] = table.SortKey{Column: k.Column, Desc: k.Desc}
	}
	sorted, err := table.New(viewCols, views...).Sort(keys)
	if err != nil {
		return nil, err
	}
	sorted = sorted.Take(q.Limit)

	names := make([]string, len(outputs))
	for i, o := range outputs {
		names[i] = o.name
	}
	rows := make([]ir.Record, len(sorted.Rows))
	for i, view := range sorted.Rows {
		r := make(ir.Record, len(outputs))
		for _, o := range outputs {
			if o.node != nil && !t.HasColumn(o.name) {
				r[o.name] = view[o.name]
				continue
			}
			v, err := o.value(view)
			if err != nil {
				return nil, err
			}
			r[o.name] = v
		}
		rows[i] = r
	}

	cols := make([]string, 0, len(names))
	for _, name := range names {
		if !excluded[name] {
			cols = append(cols, name)
		}
	}
	return table.New(names, rows...).Project(cols)
}

func (o output) value(view ir.Record) (ir.Value, error) {
	if o.node == nil {
		return view.Get(o.column), nil
	}
	return expr.Eval(o.node, func(name string) (ir.Value, bool) {
		v, ok := view[name]
		return v, ok
	})
}

func hasOutput(outputs []output, name string) bool {
	return slices.ContainsFunc(outputs, func(o output) bool { return o.name == name })
}

// resolveSelectors classifies each selector against the merged columns.
// Exclusions are collected separately and apply regardless of position.
func resolveSelectors(t *table.Table, sels []queryir.Selector) ([]output, map[string]bool, error) {
	var outputs []output
	excluded := make(map[string]bool)
	for _, s := range sels {
		if s.Exclude {
			if !t.HasColumn(s.Source) {
				return nil, nil, ir.Errorf(ir.ErrCodeUnknownField, s.Raw, "cannot exclude unknown column %q", s.Source)
			}
			excluded[s.Source] = true
			continue
		}
		if hasOutput(outputs, s.Alias) {
			return nil, nil, ir.Errorf(ir.ErrCodeAmbiguousColumn, s.Raw, "output column %q is produced twice", s.Alias)
		}
		if t.HasColumn(s.Source) {
			outputs = append(outputs, output{name: s.Alias, column: s.Source})
			continue
		}
		if !expr.HasOperator(s.Source) {
			return nil, nil, ir.Errorf(ir.ErrCodeUnknownField, s.Raw, "unknown field %q", s.Source)
		}
		node, err := expr.Parse(s.Source)
		if err != nil {
			return nil, nil, ir.WrapError(ir.ErrCodeUnknownField, s.Raw, "invalid expression", err)
		}
		for _, col := range expr.Columns(node) {
			if !t.HasColumn(col) && !hasOutput(outputs, col) {
				return nil, nil, ir.Errorf(ir.ErrCodeUnknownField, s.Raw, "expression references unknown column %q", col)
			}
		}
		outputs = append(outputs, output{name: s.Alias, node: node})
	}
	return outputs, excluded, nil
}
