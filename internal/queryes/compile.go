// Package queryes builds Elasticsearch query DSL documents from subqueries.
package queryes

import (
	"maps"
	"strings"

	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/queryir"
	"github.com/roach88/restsql/internal/registry"
)

// GroupByAgg is the name of the single bucket aggregation emitted for
// group_by queries.
const GroupByAgg = "groupby"

// Bucket key separators: "col:value" pairs joined by ";".
const (
	KeySeparator  = ";"
	PairSeparator = ":"
)

// Plan is a compiled search request.
type Plan struct {
	Index string
	Table string // logical table, for schema lookups
	// Body is the request body sent to the index.
	Body map[string]any

	Fields       []queryir.FieldToken
	GroupBy      []string
	Aggregations []string // sub-aggregation names (col__agg)
	Aliases      queryir.Aliases
}

// PlanKind returns registry.KindES.
func (p *Plan) PlanKind() registry.Kind { return registry.KindES }

// Document returns the full DSL document: the body plus "from" naming the
// index. It is the form shown by explain; the transport sends Body.
func (p *Plan) Document() map[string]any {
	doc := maps.Clone(p.Body)
	doc["from"] = p.Index
	return doc
}

// Explain renders the plan for display.
func (p *Plan) Explain() map[string]any {
	out := map[string]any{
		"kind":     string(registry.KindES),
		"index":    p.Index,
		"document": p.Document(),
	}
	if len(p.Aliases) > 0 {
		out["aliases"] = map[string]string(p.Aliases)
	}
	return out
}

// esAggFunction maps aggregation suffixes to ES metric aggregations.
var esAggFunction = map[queryir.AggFunc]string{
	queryir.AggCount:         "value_count",
	queryir.AggSum:           "sum",
	queryir.AggAvg:           "avg",
	queryir.AggMax:           "max",
	queryir.AggMin:           "min",
	queryir.AggCountDistinct: "cardinality",
}

// Compile builds the DSL for one subquery against index.
//
// Field names are written into the group-by script, so every column must
// be a dotted field path.
func Compile(sub queryir.Subquery, table, index string, aliases queryir.Aliases) (*Plan, error) {
	if err := sub.CheckIdentifiers(queryir.IsFieldPath); err != nil {
		return nil, err
	}
	plan := &Plan{
		Index:   index,
		Table:   table,
		Fields:  sub.Fields,
		GroupBy: sub.GroupBy,
		Aliases: aliases,
	}

	includes := make([]string, 0, len(sub.Fields))
	for _, f := range sub.Fields {
		includes = append(includes, f.Column)
	}

	must := make([]any, 0, len(sub.Filter))
	for _, f := range sub.Filter {
		clause, err := filterClause(f)
		if err != nil {
			return nil, err
		}
		must = append(must, clause)
	}

	body := map[string]any{
		"size":    sub.Limit,
		"query":   map[string]any{"bool": map[string]any{"must": must}},
		"_source": map[string]any{"includes": includes},
	}

	if len(sub.GroupBy) > 0 {
		subAggs := make(map[string]any, len(sub.Aggregation))
		for _, a := range sub.Aggregation {
			subAggs[a.Name()] = map[string]any{
				esAggFunction[a.Func]: map[string]any{"field": a.Column},
			}
			plan.Aggregations = append(plan.Aggregations, a.Name())
		}
		body["aggs"] = map[string]any{
			GroupByAgg: map[string]any{
				"terms": map[string]any{
					"script": map[string]any{
						"source": groupScript(sub.GroupBy),
						"lang":   "painless",
					},
					"size": sub.Limit,
				},
				"aggs": subAggs,
			},
		}
	}

	if len(sub.Sort) > 0 {
		sorts := make([]any, len(sub.Sort))
		for i, k := range sub.Sort {
			order := "asc"
			if k.Desc {
				order = "desc"
			}
			sorts[i] = map[string]any{k.Column: map[string]any{"order": order}}
		}
		body["sort"] = sorts
	}

	plan.Body = body
	return plan, nil
}

// groupScript concatenates "col:" + value for every group-by column,
// joined by ";".
func groupScript(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = "'" + c + PairSeparator + "' + doc['" + c + "'].value"
	}
	return strings.Join(parts, " + '"+KeySeparator+"' + ")
}

func filterClause(f queryir.Filter) (map[string]any, error) {
	if _, isList := f.Value.(ir.List); isList && f.Op != queryir.OpIn && f.Op != queryir.OpRange {
		return nil, ir.Errorf(ir.ErrCodeBadFilter, f.Key, "operator does not take a list")
	}
	col := f.Column
	v := ir.ToAny(f.Value)

	switch f.Op {
	case queryir.OpEq:
		if v == nil {
			return map[string]any{"bool": map[string]any{
				"must_not": []any{map[string]any{"exists": map[string]any{"field": col}}},
			}}, nil
		}
		return map[string]any{"term": map[string]any{col: v}}, nil
	case queryir.OpGt, queryir.OpLt, queryir.OpGte, queryir.OpLte:
		return map[string]any{"range": map[string]any{col: map[string]any{string(f.Op): v}}}, nil
	case queryir.OpContains:
		return wildcard(f, "*", "*")
	case queryir.OpEndsWith:
		return wildcard(f, "*", "")
	case queryir.OpStartsWith:
		if v == nil {
			return nil, ir.Errorf(ir.ErrCodeBadFilter, f.Key, "pattern operand must not be null")
		}
		return map[string]any{"prefix": map[string]any{col: ir.Format(f.Value)}}, nil
	case queryir.OpRange:
		bounds, ok := f.Value.(ir.List)
		if !ok || len(bounds) != 2 {
			return nil, ir.Errorf(ir.ErrCodeBadFilter, f.Key, "range needs a list of exactly 2 values")
		}
		return map[string]any{"range": map[string]any{col: map[string]any{
			"gte": ir.ToAny(bounds[0]),
			"lte": ir.ToAny(bounds[1]),
		}}}, nil
	case queryir.OpIn:
		if _, ok := f.Value.(ir.List); !ok {
			return nil, ir.Errorf(ir.ErrCodeBadFilter, f.Key, "in needs a list of values")
		}
		return map[string]any{"terms": map[string]any{col: v}}, nil
	default:
		return nil, ir.Errorf(ir.ErrCodeBadFilter, f.Key, "unrecognized filter operator %q", string(f.Op))
	}
}

func wildcard(f queryir.Filter, prefix, suffix string) (map[string]any, error) {
	if ir.IsNull(f.Value) {
		return nil, ir.Errorf(ir.ErrCodeBadFilter, f.Key, "pattern operand must not be null")
	}
	return map[string]any{"wildcard": map[string]any{f.Column: prefix + escapeWildcard(ir.Format(f.Value)) + suffix}}, nil
}

// escapeWildcard makes the wildcard metacharacters * and ? and the
// backslash match literally.
func escapeWildcard(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r == '*' || r == '?' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
