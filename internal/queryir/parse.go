package queryir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/restsql/internal/ir"
)

// Decode reads a query document, keeping numbers as json.Number so
// integers survive unchanged.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, ir.WrapError(ir.ErrCodeInvalidQuery, "", "query document is not a JSON object", err)
	}
	if doc == nil {
		return nil, ir.Errorf(ir.ErrCodeInvalidQuery, "", "query document is null")
	}
	return doc, nil
}

// ParseJSON decodes, shape-checks and parses a query document.
func ParseJSON(data []byte) (*Query, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := ValidateShape(doc); err != nil {
		return nil, err
	}
	return Parse(doc)
}

// Parse converts a decoded document into a Query. Defaults are applied
// here: limit 1000 globally and per subquery.
func Parse(doc map[string]any) (*Query, error) {
	q := &Query{Limit: DefaultLimit}

	fields, err := stringList(doc, "fields", "")
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		q.Fields = append(q.Fields, ParseSelector(f))
	}

	selectDoc, err := object(doc, "select", "")
	if err != nil {
		return nil, err
	}
	if selectDoc == nil {
		return nil, ir.Errorf(ir.ErrCodeInvalidReference, "select", "query has no main subquery")
	}
	if q.Select, err = parseSubquery(selectDoc, "select"); err != nil {
		return nil, err
	}

	if raw, ok := doc["join"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, ir.Errorf(ir.ErrCodeInvalidQuery, "join", "join must be a list")
		}
		for i, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, ir.Errorf(ir.ErrCodeInvalidQuery, fmt.Sprintf("join[%d]", i), "join entry must be an object")
			}
			j, err := parseJoin(m, fmt.Sprintf("join[%d]", i))
			if err != nil {
				return nil, err
			}
			q.Joins = append(q.Joins, j)
		}
	}

	sorts, err := stringList(doc, "sort", "")
	if err != nil {
		return nil, err
	}
	for _, s := range sorts {
		q.Sort = append(q.Sort, ParseSortKey(s))
	}

	if q.Limit, err = limit(doc, "limit", ""); err != nil {
		return nil, err
	}
	return q, nil
}

func parseJoin(m map[string]any, path string) (Join, error) {
	var j Join

	typ, ok := m["type"].(string)
	if !ok || !JoinType(typ).Valid() {
		return j, ir.Errorf(ir.ErrCodeInvalidQuery, path+".type", "join type must be left_join, inner_join or full_join")
	}
	j.Type = JoinType(typ)

	query, err := object(m, "query", path)
	if err != nil {
		return j, err
	}
	if query == nil {
		return j, ir.Errorf(ir.ErrCodeInvalidReference, path+".query", "join has no subquery")
	}
	sub, err := object(query, "select", path+".query")
	if err != nil {
		return j, err
	}
	if sub == nil {
		return j, ir.Errorf(ir.ErrCodeInvalidReference, path+".query.select", "join has no subquery")
	}
	if j.Query, err = parseSubquery(sub, path+".query.select"); err != nil {
		return j, err
	}

	on, err := object(m, "on", path)
	if err != nil {
		return j, err
	}
	if len(on) == 0 {
		return j, ir.Errorf(ir.ErrCodeInvalidQuery, path+".on", "join needs at least one key pair")
	}
	for _, left := range sortedKeys(on) {
		right, ok := on[left].(string)
		if !ok || right == "" || left == "" {
			return j, ir.Errorf(ir.ErrCodeInvalidQuery, path+".on", "on must map column names to column names")
		}
		j.On = append(j.On, OnPair{Left: left, Right: right})
	}

	export, err := stringList(m, "export", path)
	if err != nil {
		return j, err
	}
	if j.Export, err = ParseExport(export); err != nil {
		return j, err
	}
	return j, nil
}

func parseSubquery(m map[string]any, path string) (Subquery, error) {
	var s Subquery

	from, _ := m["from"].(string)
	s.From = from

	fields, err := stringList(m, "fields", path)
	if err != nil {
		return s, err
	}
	seenAgg := make(map[string]bool)
	addAgg := func(a Aggregate) {
		if !seenAgg[a.Name()] {
			seenAgg[a.Name()] = true
			s.Aggregation = append(s.Aggregation, a)
		}
	}
	for _, f := range fields {
		tok, agg := ClassifyField(f)
		if agg != nil {
			addAgg(*agg)
			continue
		}
		s.Fields = append(s.Fields, tok)
	}

	aggs, err := stringList(m, "aggregation", path)
	if err != nil {
		return s, err
	}
	for _, a := range aggs {
		agg, ok := ParseAggregate(a)
		if !ok {
			return s, ir.Errorf(ir.ErrCodeInvalidQuery, a, "aggregation must be \"<col>__<count|sum|avg|max|min|count_distinct>\"")
		}
		addAgg(agg)
	}

	filter, err := object(m, "filter", path)
	if err != nil {
		return s, err
	}
	for _, key := range sortedKeys(filter) {
		col, op, err := ParseFilterKey(key)
		if err != nil {
			return s, err
		}
		if _, nested := filter[key].(map[string]any); nested {
			return s, ir.Errorf(ir.ErrCodeBadFilter, key, "filter value must be a scalar or a list")
		}
		val, err := ir.FromAny(filter[key])
		if err != nil {
			return s, ir.WrapError(ir.ErrCodeBadFilter, key, "unsupported filter value", err)
		}
		s.Filter = append(s.Filter, Filter{Key: key, Column: col, Op: op, Value: val})
	}

	if s.GroupBy, err = stringList(m, "group_by", path); err != nil {
		return s, err
	}

	sorts, err := stringList(m, "sort", path)
	if err != nil {
		return s, err
	}
	for _, k := range sorts {
		s.Sort = append(s.Sort, ParseSortKey(k))
	}

	if s.Limit, err = limit(m, "limit", path); err != nil {
		return s, err
	}
	return s, nil
}

func object(m map[string]any, key, path string) (map[string]any, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	out, ok := raw.(map[string]any)
	if !ok {
		return nil, ir.Errorf(ir.ErrCodeInvalidQuery, join(path, key), "%s must be an object", key)
	}
	return out, nil
}

func stringList(m map[string]any, key, path string) ([]string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		return slices.Clone(v), nil
	default:
		return nil, ir.Errorf(ir.ErrCodeInvalidQuery, join(path, key), "%s must be a list of strings", key)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, ir.Errorf(ir.ErrCodeInvalidQuery, fmt.Sprintf("%s[%d]", join(path, key), i), "%s must be a list of strings", key)
		}
		out[i] = s
	}
	return out, nil
}

func limit(m map[string]any, key, path string) (int, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return DefaultLimit, nil
	}
	v, err := ir.FromAny(raw)
	if err != nil {
		return 0, ir.WrapError(ir.ErrCodeInvalidQuery, join(path, key), "limit must be a non-negative integer", err)
	}
	var n int64
	switch val := v.(type) {
	case ir.Int:
		n = int64(val)
	case ir.Float:
		if float64(val) != float64(int64(val)) {
			return 0, ir.Errorf(ir.ErrCodeInvalidQuery, join(path, key), "limit must be a non-negative integer")
		}
		n = int64(val)
	default:
		return 0, ir.Errorf(ir.ErrCodeInvalidQuery, join(path, key), "limit must be a non-negative integer")
	}
	if n < 0 {
		return 0, ir.Errorf(ir.ErrCodeInvalidQuery, join(path, key), "limit must be a non-negative integer")
	}
	return int(n), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
