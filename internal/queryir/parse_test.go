package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restsql/internal/ir"
)

func TestParseJSON_FullDocument(t *testing.T) {
	q, err := ParseJSON([]byte(`{
		"fields": ["oid@Order", "UserName@User", "price@exclude", "price*2@double"],
		"select": {
			"from": "db.orders",
			"fields": ["oid", "uid", "price", "uid__count"],
			"aggregation": ["price__sum"],
			"filter": {"status": "paid", "price__range": [1, 10]},
			"group_by": ["uid"],
			"sort": ["-oid"],
			"limit": 50
		},
		"join": [{
			"type": "left_join",
			"query": {"select": {"from": "es.users", "fields": ["uid", "name"]}},
			"on": {"uid": "uid"},
			"export": ["name@UserName"]
		}],
		"sort": ["-Order"],
		"limit": 10
	}`))
	require.NoError(t, err)

	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, []SortKey{{Column: "Order", Desc: true}}, q.Sort)
	require.Len(t, q.Fields, 4)
	assert.Equal(t, Selector{Raw: "oid@Order", Source: "oid", Alias: "Order"}, q.Fields[0])
	assert.True(t, q.Fields[2].Exclude)
	assert.Equal(t, "price*2", q.Fields[3].Source)

	sel := q.Select
	assert.Equal(t, "db.orders", sel.From)
	assert.Equal(t, 50, sel.Limit)
	require.Len(t, sel.Fields, 3)
	assert.Equal(t, []Aggregate{{Column: "uid", Func: AggCount}, {Column: "price", Func: AggSum}}, sel.Aggregation)
	require.Len(t, sel.Filter, 2)
	// sorted by key
	assert.Equal(t, Filter{Key: "price__range", Column: "price", Op: OpRange, Value: ir.List{ir.Int(1), ir.Int(10)}}, sel.Filter[0])
	assert.Equal(t, Filter{Key: "status", Column: "status", Op: OpEq, Value: ir.String("paid")}, sel.Filter[1])
	assert.Equal(t, []SortKey{{Column: "oid", Desc: true}}, sel.Sort)

	require.Len(t, q.Joins, 1)
	j := q.Joins[0]
	assert.Equal(t, LeftJoin, j.Type)
	assert.Equal(t, "es.users", j.Query.From)
	assert.Equal(t, DefaultLimit, j.Query.Limit)
	assert.Equal(t, []OnPair{{Left: "uid", Right: "uid"}}, j.On)
	assert.Equal(t, Aliases{"name": "UserName"}, j.Export)
}

func TestParse_Defaults(t *testing.T) {
	q, err := Parse(map[string]any{"select": map[string]any{"from": "db.t"}})
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, q.Limit)
	assert.Equal(t, DefaultLimit, q.Select.Limit)
	assert.Empty(t, q.Fields)
	assert.Empty(t, q.Joins)
	assert.Empty(t, q.Select.Filter)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
		code ir.ErrorCode
	}{
		{
			name: "missing select",
			doc:  map[string]any{"fields": []any{"a"}},
			code: ir.ErrCodeInvalidReference,
		},
		{
			name: "unknown operator",
			doc:  map[string]any{"select": map[string]any{"from": "db.t", "filter": map[string]any{"a__near": 1}}},
			code: ir.ErrCodeBadFilter,
		},
		{
			name: "negative limit",
			doc:  map[string]any{"select": map[string]any{"from": "db.t"}, "limit": -1},
			code: ir.ErrCodeInvalidQuery,
		},
		{
			name: "fractional limit",
			doc:  map[string]any{"select": map[string]any{"from": "db.t"}, "limit": 2.5},
			code: ir.ErrCodeInvalidQuery,
		},
		{
			name: "bad join type",
			doc: map[string]any{
				"select": map[string]any{"from": "db.t"},
				"join":   []any{map[string]any{"type": "cross", "query": map[string]any{"select": map[string]any{"from": "db.u"}}, "on": map[string]any{"a": "a"}}},
			},
			code: ir.ErrCodeInvalidQuery,
		},
		{
			name: "join without on",
			doc: map[string]any{
				"select": map[string]any{"from": "db.t"},
				"join":   []any{map[string]any{"type": "left_join", "query": map[string]any{"select": map[string]any{"from": "db.u"}}}},
			},
			code: ir.ErrCodeInvalidQuery,
		},
		{
			name: "bad aggregation",
			doc:  map[string]any{"select": map[string]any{"from": "db.t", "aggregation": []any{"v__median"}}},
			code: ir.ErrCodeInvalidQuery,
		},
		{
			name: "nested filter value",
			doc:  map[string]any{"select": map[string]any{"from": "db.t", "filter": map[string]any{"a": map[string]any{"b": 1}}}},
			code: ir.ErrCodeBadFilter,
		},
		{
			name: "fields not strings",
			doc:  map[string]any{"select": map[string]any{"from": "db.t"}, "fields": []any{1}},
			code: ir.ErrCodeInvalidQuery,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.doc)
			require.Error(t, err)
			assert.Equal(t, tt.code, ir.CodeOf(err), "error: %v", err)
		})
	}
}

func TestDecode_RejectsNonObjects(t *testing.T) {
	for _, input := range []string{`[1,2]`, `null`, `{"a":`} {
		_, err := Decode([]byte(input))
		assert.True(t, ir.IsCode(err, ir.ErrCodeInvalidQuery), "input %s", input)
	}
}

func TestDecode_KeepsIntegers(t *testing.T) {
	doc, err := Decode([]byte(`{"select":{"from":"db.t","filter":{"id":9007199254740993}}}`))
	require.NoError(t, err)
	q, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(9007199254740993), q.Select.Filter[0].Value)
}

func TestSubquery_Columns(t *testing.T) {
	q, err := Parse(map[string]any{"select": map[string]any{
		"from":        "db.t",
		"fields":      []any{"a", "b@B"},
		"aggregation": []any{"c__sum"},
		"filter":      map[string]any{"d__gt": 1},
		"group_by":    []any{"a"},
		"sort":        []any{"-c__sum", "e"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, q.Select.Columns())
}
