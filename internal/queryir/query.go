package queryir

import (
	"github.com/roach88/restsql/internal/ir"
)

// DefaultLimit applies to the global limit and to every subquery limit
// that the document leaves unset.
const DefaultLimit = 1000

// JoinType is the role a subquery plays in the merge.
type JoinType string

const (
	// JoinMain marks the subquery from "select".
	JoinMain  JoinType = "main"
	LeftJoin  JoinType = "left_join"
	InnerJoin JoinType = "inner_join"
	FullJoin  JoinType = "full_join"
)

// Valid reports whether t may appear in a join entry.
func (t JoinType) Valid() bool {
	switch t {
	case LeftJoin, InnerJoin, FullJoin:
		return true
	default:
		return false
	}
}

// Query is one parsed federated query document.
type Query struct {
	Fields []Selector // top-level selectors in document order
	Select Subquery
	Joins  []Join
	Sort   []SortKey
	Limit  int
}

// Subquery is the portion of a query that runs against one backend.
type Subquery struct {
	From        string // "<backend>.<table>"
	Fields      []FieldToken
	Aggregation []Aggregate
	Filter      []Filter // sorted by key
	GroupBy     []string
	Sort        []SortKey // per-backend ordering hint
	Limit       int       // fetch hint
}

// Join is one entry of the "join" list.
type Join struct {
	Type   JoinType
	Query  Subquery
	On     []OnPair // sorted by main-side column
	Export Aliases
}

// OnPair maps a main-side key column to a joined-side key column.
type OnPair struct {
	Left  string
	Right string
}

// Aliases maps a raw column to the name it carries after execution.
type Aliases map[string]string

// Apply returns the renamed column, or col itself when no alias exists.
func (a Aliases) Apply(col string) string {
	if alias, ok := a[col]; ok {
		return alias
	}
	return col
}

// SortKey is one sort entry.
type SortKey struct {
	Column string
	Desc   bool
}

// String renders the key in document form.
func (k SortKey) String() string {
	if k.Desc {
		return "-" + k.Column
	}
	return k.Column
}

// LeftKeys returns the main-side key columns of the join.
func (j Join) LeftKeys() []string {
	keys := make([]string, len(j.On))
	for i, p := range j.On {
		keys[i] = p.Left
	}
	return keys
}

// RightKeys returns the joined-side key columns of the join.
func (j Join) RightKeys() []string {
	keys := make([]string, len(j.On))
	for i, p := range j.On {
		keys[i] = p.Right
	}
	return keys
}

// Columns returns every raw column a subquery reads from its table:
// projected, aggregated, filtered, grouped and sorted. Sort hints that
// name an aggregate are excluded.
func (s Subquery) Columns() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, f := range s.Fields {
		add(f.Column)
	}
	for _, a := range s.Aggregation {
		add(a.Column)
	}
	for _, f := range s.Filter {
		add(f.Column)
	}
	for _, g := range s.GroupBy {
		add(g)
	}
	for _, k := range s.Sort {
		if !s.HasAggregate(k.Column) {
			add(k.Column)
		}
	}
	return out
}

// HasAggregate reports whether name is the output name of one of the
// subquery's aggregates.
func (s Subquery) HasAggregate(name string) bool {
	for _, a := range s.Aggregation {
		if a.Name() == name {
			return true
		}
	}
	return false
}

// Filter is one predicate of a subquery filter.
type Filter struct {
	Key    string // original document key, e.g. "price__range"
	Column string
	Op     Op
	Value  ir.Value
}
