package queryir

import (
	"strings"

	"github.com/roach88/restsql/internal/ir"
)

// Op is a filter operator suffix.
type Op string

const (
	OpEq         Op = "" // no suffix
	OpGt         Op = "gt"
	OpLt         Op = "lt"
	OpGte        Op = "gte"
	OpLte        Op = "lte"
	OpContains   Op = "contains"
	OpStartsWith Op = "startswith"
	OpEndsWith   Op = "endswith"
	OpRange      Op = "range"
	OpIn         Op = "in"
)

var knownOps = map[Op]bool{
	OpGt: true, OpLt: true, OpGte: true, OpLte: true,
	OpContains: true, OpStartsWith: true, OpEndsWith: true,
	OpRange: true, OpIn: true,
}

// AggFunc is an aggregation suffix.
type AggFunc string

const (
	AggCount         AggFunc = "count"
	AggSum           AggFunc = "sum"
	AggAvg           AggFunc = "avg"
	AggMax           AggFunc = "max"
	AggMin           AggFunc = "min"
	AggCountDistinct AggFunc = "count_distinct"
)

var knownAggs = map[AggFunc]bool{
	AggCount: true, AggSum: true, AggAvg: true,
	AggMax: true, AggMin: true, AggCountDistinct: true,
}

// separator between a column and its operator or aggregation suffix.
const separator = "__"

// FieldKind classifies a subquery field token.
type FieldKind int

const (
	FieldIdentity FieldKind = iota
	FieldAliased
)

// FieldToken is a non-aggregate subquery projection.
type FieldToken struct {
	Raw    string
	Kind   FieldKind
	Column string
	Alias  string // equals Column for identity tokens
}

// Aggregate is an aggregation token "col__agg".
type Aggregate struct {
	Column string
	Func   AggFunc
}

// Name is the literal output column name of the aggregate.
func (a Aggregate) Name() string {
	return a.Column + separator + string(a.Func)
}

// ParseAggregate splits "col__agg". ok is false when the token carries no
// known aggregation suffix.
func ParseAggregate(token string) (Aggregate, bool) {
	idx := strings.LastIndex(token, separator)
	if idx <= 0 {
		return Aggregate{}, false
	}
	fn := AggFunc(token[idx+len(separator):])
	if !knownAggs[fn] {
		return Aggregate{}, false
	}
	return Aggregate{Column: token[:idx], Func: fn}, true
}

// ClassifyField classifies one subquery field token. Aggregation-shaped
// tokens return a non-nil Aggregate; everything else is a projection.
func ClassifyField(token string) (FieldToken, *Aggregate) {
	if agg, ok := ParseAggregate(token); ok {
		return FieldToken{}, &agg
	}
	if col, alias, ok := cutLast(token, "@"); ok && alias != "" && col != "" {
		return FieldToken{Raw: token, Kind: FieldAliased, Column: col, Alias: alias}, nil
	}
	return FieldToken{Raw: token, Kind: FieldIdentity, Column: token, Alias: token}, nil
}

// ParseFilterKey splits a filter key into column and operator. A key
// without a "__" suffix is an equality test; a suffix that is not a known
// operator is a BadFilter error.
func ParseFilterKey(key string) (string, Op, error) {
	idx := strings.LastIndex(key, separator)
	if idx < 0 {
		return key, OpEq, nil
	}
	col, op := key[:idx], Op(key[idx+len(separator):])
	if col == "" || !knownOps[op] {
		return "", OpEq, ir.Errorf(ir.ErrCodeBadFilter, key, "unrecognized filter operator %q", string(op))
	}
	return col, op, nil
}

// Selector is one top-level "fields" entry.
type Selector struct {
	Raw     string
	Source  string // column name or expression text
	Alias   string // output name; equals Source when no alias is given
	Exclude bool
}

// ExcludeAlias marks a selector whose column is dropped from the output.
const ExcludeAlias = "exclude"

// ParseSelector splits "<source>[@<alias>]" on the last "@".
func ParseSelector(token string) Selector {
	if src, alias, ok := cutLast(token, "@"); ok {
		if alias == ExcludeAlias {
			return Selector{Raw: token, Source: src, Alias: src, Exclude: true}
		}
		if alias == "" {
			alias = src
		}
		return Selector{Raw: token, Source: src, Alias: alias}
	}
	return Selector{Raw: token, Source: token, Alias: token}
}

// ParseSortKey parses "[-]col".
func ParseSortKey(token string) SortKey {
	if strings.HasPrefix(token, "-") {
		return SortKey{Column: token[1:], Desc: true}
	}
	return SortKey{Column: token}
}

// ParseExport builds the alias map from "raw@alias" entries. Entries
// without an alias keep their raw name.
func ParseExport(entries []string) (Aliases, error) {
	out := make(Aliases, len(entries))
	for _, e := range entries {
		raw, alias, ok := cutLast(e, "@")
		if !ok {
			raw, alias = e, e
		}
		if raw == "" || alias == "" || alias == ExcludeAlias {
			return nil, ir.Errorf(ir.ErrCodeInvalidQuery, e, "export entries must be \"raw@alias\"")
		}
		if prev, dup := out[raw]; dup && prev != alias {
			return nil, ir.Errorf(ir.ErrCodeAmbiguousColumn, raw, "exported twice as %q and %q", prev, alias)
		}
		out[raw] = alias
	}
	return out, nil
}

func cutLast(s, sep string) (string, string, bool) {
	idx := strings.LastIndex(s, sep)
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+len(sep):], true
}
