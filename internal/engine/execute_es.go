package engine

import (
	"context"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/queryes"
	"github.com/roach88/restsql/internal/registry"
	"github.com/roach88/restsql/internal/table"
)

// executeES runs a search plan. Bucket responses (group_by) take
// precedence over hits.
func executeES(ctx context.Context, rec *record, plan *queryes.Plan) (*table.Table, error) {
	resp, err := rec.backend.Search.Search(ctx, plan.Index, plan.Body)
	if err != nil {
		return nil, backendError(rec, err)
	}

	var result *table.Table
	if buckets, ok := bucketList(resp); ok {
		result, err = fromBuckets(rec, plan, buckets)
	} else if hits, ok := hitList(resp); ok {
		result, err = fromHits(plan, hits)
	} else {
		return nil, ir.Errorf(ir.ErrCodeBadResponse, rec.backend.Name, "%s: response has neither buckets nor hits", rec.name)
	}
	if err != nil {
		return nil, ir.WrapError(ir.ErrCodeBadResponse, rec.backend.Name, rec.name+": malformed response", err)
	}
	return result.Rename(plan.Aliases)
}

func bucketList(resp map[string]any) ([]any, bool) {
	aggs, ok := resp["aggregations"].(map[string]any)
	if !ok {
		return nil, false
	}
	group, ok := aggs[queryes.GroupByAgg].(map[string]any)
	if !ok {
		return nil, false
	}
	buckets, ok := group["buckets"].([]any)
	return buckets, ok
}

func hitList(resp map[string]any) ([]any, bool) {
	outer, ok := resp["hits"].(map[string]any)
	if !ok {
		return nil, false
	}
	hits, ok := outer["hits"].([]any)
	return hits, ok
}

// fromBuckets decodes "col:value;col:value" bucket keys into group-by
// columns, coercing each value to its declared type, and reads every
// sub-aggregation's "value".
func fromBuckets(rec *record, plan *queryes.Plan, buckets []any) (*table.Table, error) {
	cols := append(slices.Clone(plan.GroupBy), plan.Aggregations...)
	rows := make([]ir.Record, 0, len(buckets))
	for _, raw := range buckets {
		bucket, err := cast.ToStringMapE(raw)
		if err != nil {
			return nil, err
		}
		key, err := cast.ToStringE(bucket["key"])
		if err != nil {
			return nil, err
		}
		r := make(ir.Record, len(cols))
		for _, part := range strings.Split(key, queryes.KeySeparator) {
			col, val, ok := strings.Cut(part, queryes.PairSeparator)
			if !ok {
				continue
			}
			r[col] = coerce(val, rec.backend.Schema.TypeOf(plan.Table, col))
		}
		for _, name := range plan.Aggregations {
			metric, ok := bucket[name].(map[string]any)
			if !ok {
				r[name] = ir.Null{}
				continue
			}
			v, err := ir.FromAny(metric["value"])
			if err != nil {
				return nil, err
			}
			r[name] = v
		}
		rows = append(rows, r)
	}
	return table.New(cols, rows...), nil
}

// fromHits reads each hit's _source. Without projected fields the columns
// are the union of source keys in sorted order.
func fromHits(plan *queryes.Plan, hits []any) (*table.Table, error) {
	sources := make([]map[string]any, 0, len(hits))
	for _, raw := range hits {
		hit, err := cast.ToStringMapE(raw)
		if err != nil {
			return nil, err
		}
		src, _ := hit["_source"].(map[string]any)
		sources = append(sources, src)
	}

	type column struct{ raw, name string }
	var cols []column
	if len(plan.Fields) > 0 {
		for _, f := range plan.Fields {
			cols = append(cols, column{raw: f.Column, name: f.Alias})
		}
	} else {
		seen := make(map[string]bool)
		var names []string
		for _, src := range sources {
			for k := range src {
				if !seen[k] {
					seen[k] = true
					names = append(names, k)
				}
			}
		}
		slices.Sort(names)
		for _, n := range names {
			cols = append(cols, column{raw: n, name: n})
		}
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	rows := make([]ir.Record, 0, len(sources))
	for _, src := range sources {
		r := make(ir.Record, len(cols))
		for _, c := range cols {
			v, err := ir.FromAny(src[c.raw])
			if err != nil {
				return nil, err
			}
			r[c.name] = v
		}
		rows = append(rows, r)
	}
	return table.New(names, rows...), nil
}

// coerce converts a bucket key value to the column's declared type. A
// value that does not convert stays a string.
func coerce(s string, ft registry.FieldType) ir.Value {
	switch ft {
	case registry.TypeInt:
		if n, err := cast.ToInt64E(s); err == nil {
			return ir.Int(n)
		}
	case registry.TypeFloat:
		if f, err := cast.ToFloat64E(s); err == nil {
			return ir.Float(f)
		}
	case registry.TypeBool:
		if b, err := cast.ToBoolE(s); err == nil {
			return ir.Bool(b)
		}
	}
	return ir.String(s)
}
