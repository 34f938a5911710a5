// Package table implements the in-memory Result Table and the operators
// the federator applies to it: Rename, Merge, Sort and Take, plus FillNull
// and Project for the final shaping.
//
// Operators never mutate their input; each returns a new table. Records
// are shared between input and output where a row is passed through
// unchanged, so callers must treat records as read-only.
package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/restsql/internal/ir"
)

// Table is an ordered list of columns and an ordered list of records.
// A record may lack a column; Get reports such cells as null.
type Table struct {
	Columns []string
	Rows    []ir.Record
}

// New creates a table.
func New(columns []string, rows ...ir.Record) *Table {
	if columns == nil {
		columns = []string{}
	}
	return &Table{Columns: columns, Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasColumn reports whether col is one of the table's columns.
func (t *Table) HasColumn(col string) bool {
	return slices.Contains(t.Columns, col)
}

// Rename renames columns per the mapping. Renaming onto an existing,
// unrenamed column is an AmbiguousColumn error.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	if len(mapping) == 0 {
		return t, nil
	}
	cols := make([]string, len(t.Columns))
	seen := make(map[string]bool, len(t.Columns))
	for i, c := range t.Columns {
		name := c
		if alias, ok := mapping[c]; ok {
			name = alias
		}
		if seen[name] {
			return nil, ir.Errorf(ir.ErrCodeAmbiguousColumn, name, "rename produces column %q twice", name)
		}
		seen[name] = true
		cols[i] = name
	}

	rows := make([]ir.Record, len(t.Rows))
	for i, r := range t.Rows {
		out := make(ir.Record, len(r))
		for k, v := range r {
			if alias, ok := mapping[k]; ok {
				out[alias] = v
			} else {
				out[k] = v
			}
		}
		rows[i] = out
	}
	return &Table{Columns: cols, Rows: rows}, nil
}

// Take keeps the first n rows.
func (t *Table) Take(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n >= len(t.Rows) {
		return t
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// FillNull makes every column present in every record, using ir.Null for
// missing cells.
func (t *Table) FillNull() *Table {
	rows := make([]ir.Record, len(t.Rows))
	for i, r := range t.Rows {
		complete := true
		for _, c := range t.Columns {
			if v, ok := r[c]; !ok || v == nil {
				complete = false
				break
			}
		}
		if complete {
			rows[i] = r
			continue
		}
		out := r.Clone()
		for _, c := range t.Columns {
			if v, ok := out[c]; !ok || v == nil {
				out[c] = ir.Null{}
			}
		}
		rows[i] = out
	}
	return &Table{Columns: t.Columns, Rows: rows}
}

// Project keeps only the named columns, in the given order.
func (t *Table) Project(columns []string) (*Table, error) {
	for _, c := range columns {
		if !t.HasColumn(c) {
			return nil, ir.Errorf(ir.ErrCodeUnknownColumn, c, "no column %q in result", c)
		}
	}
	rows := make([]ir.Record, len(t.Rows))
	for i, r := range t.Rows {
		out := make(ir.Record, len(columns))
		for _, c := range columns {
			out[c] = r.Get(c)
		}
		rows[i] = out
	}
	return &Table{Columns: slices.Clone(columns), Rows: rows}, nil
}

// Records returns the rows as column → value maps restricted to the
// table's columns.
func (t *Table) Records() []ir.Record {
	out := make([]ir.Record, len(t.Rows))
	for i, r := range t.Rows {
		rec := make(ir.Record, len(t.Columns))
		for _, c := range t.Columns {
			rec[c] = r.Get(c)
		}
		out[i] = rec
	}
	return out
}

// MarshalJSON renders the table as an array of objects whose keys follow
// column order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, c := range t.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(c)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			val, err := ir.MarshalValue(r.Get(c))
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, c, err)
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
