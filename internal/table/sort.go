package table

import (
	"slices"

	"github.com/roach88/restsql/internal/ir"
)

// SortKey orders by one column.
type SortKey struct {
	Column string
	Desc   bool
}

// Sort returns the rows stably ordered by keys. Nulls sort last in both
// directions. Keys must name columns of the table.
func (t *Table) Sort(keys []SortKey) (*Table, error) {
	for _, k := range keys {
		if !t.HasColumn(k.Column) {
			return nil, ir.Errorf(ir.ErrCodeUnknownColumn, k.Column, "cannot sort by unknown column %q", k.Column)
		}
	}
	if len(keys) == 0 || len(t.Rows) < 2 {
		return t, nil
	}
	rows := slices.Clone(t.Rows)
	slices.SortStableFunc(rows, func(a, b ir.Record) int {
		return CompareRows(a, b, keys)
	})
	return &Table{Columns: t.Columns, Rows: rows}, nil
}

// CompareRows compares two records by keys with nulls last.
func CompareRows(a, b ir.Record, keys []SortKey) int {
	for _, k := range keys {
		va, vb := a.Get(k.Column), b.Get(k.Column)
		na, nb := ir.IsNull(va), ir.IsNull(vb)
		switch {
		case na && nb:
			continue
		case na:
			return 1
		case nb:
			return -1
		}
		c := ir.Compare(va, vb)
		if k.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}
