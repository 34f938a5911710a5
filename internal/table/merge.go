package table

import (
	"strings"

	"github.com/roach88/restsql/internal/ir"
)

// How selects the merge semantics.
type How string

const (
	Left  How = "left"
	Inner How = "inner"
	Outer How = "outer"
)

// Merge joins left and right on equal key tuples.
//
// Output columns are the left columns followed by the right columns. A
// right key column with the same name as its left key is folded into the
// left one; any other name collision is an AmbiguousColumn error.
//
// Row order: for each left row in order, its matches in right order. Left
// rows without a match are kept (with nulls) for Left and Outer. For
// Outer, right rows that never matched follow, in right order, with their
// shared-name keys copied to the left key columns. Null keys never match.
func Merge(left, right *Table, leftKeys, rightKeys []string, how How) (*Table, error) {
	if len(leftKeys) != len(rightKeys) || len(leftKeys) == 0 {
		return nil, ir.Errorf(ir.ErrCodeInvalidQuery, "on", "merge needs the same non-zero number of keys on both sides")
	}
	for _, k := range leftKeys {
		if !left.HasColumn(k) {
			return nil, ir.Errorf(ir.ErrCodeUnknownColumn, k, "join key %q is not a column of the main result", k)
		}
	}
	for _, k := range rightKeys {
		if !right.HasColumn(k) {
			return nil, ir.Errorf(ir.ErrCodeUnknownColumn, k, "join key %q is not a column of the joined result", k)
		}
	}

	// right key columns that fold into a same-named left key
	shared := make(map[string]bool)
	for i, rk := range rightKeys {
		if rk == leftKeys[i] {
			shared[rk] = true
		}
	}

	columns := append([]string{}, left.Columns...)
	var rightCols []string
	for _, c := range right.Columns {
		if shared[c] {
			continue
		}
		if left.HasColumn(c) {
			return nil, ir.Errorf(ir.ErrCodeAmbiguousColumn, c, "column %q exists on both sides of the join; export it under another name", c)
		}
		rightCols = append(rightCols, c)
		columns = append(columns, c)
	}

	index := make(map[string][]int, len(right.Rows))
	for i, r := range right.Rows {
		if key, ok := tupleKey(r, rightKeys); ok {
			index[key] = append(index[key], i)
		}
	}

	matched := make([]bool, len(right.Rows))
	rows := make([]ir.Record, 0, len(left.Rows))
	for _, l := range left.Rows {
		var hits []int
		if key, ok := tupleKey(l, leftKeys); ok {
			hits = index[key]
		}
		if len(hits) == 0 {
			if how == Inner {
				continue
			}
			out := l.Clone()
			for _, c := range rightCols {
				out[c] = ir.Null{}
			}
			rows = append(rows, out)
			continue
		}
		for _, ri := range hits {
			matched[ri] = true
			out := l.Clone()
			for _, c := range rightCols {
				out[c] = right.Rows[ri].Get(c)
			}
			rows = append(rows, out)
		}
	}

	if how == Outer {
		for ri, r := range right.Rows {
			if matched[ri] {
				continue
			}
			out := make(ir.Record, len(columns))
			for _, c := range left.Columns {
				out[c] = ir.Null{}
			}
			for i, rk := range rightKeys {
				if shared[rk] {
					out[leftKeys[i]] = r.Get(rk)
				}
			}
			for _, c := range rightCols {
				out[c] = r.Get(c)
			}
			rows = append(rows, out)
		}
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

// tupleKey builds a hash key for the key columns of r. ok is false when
// any key is null.
func tupleKey(r ir.Record, keys []string) (string, bool) {
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := r.Get(k)
		if ir.IsNull(v) {
			return "", false
		}
		parts[i] = ir.Key(v)
	}
	return strings.Join(parts, "\x00"), true
}
