package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restsql/internal/ir"
)

func TestValidateShape_Accepts(t *testing.T) {
	doc, err := Decode([]byte(`{
		"fields": ["age@Age"],
		"select": {"from": "db.people", "fields": ["age"], "filter": {"name": "alice", "age__in": [30, 40]}, "limit": 10},
		"join": [{"type": "inner_join", "query": {"select": {"from": "db.pets"}}, "on": {"id": "owner"}, "export": ["name@Pet"]}],
		"limit": 10
	}`))
	require.NoError(t, err)
	assert.NoError(t, ValidateShape(doc))
}

func TestValidateShape_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown top-level key", `{"select": {"from": "db.t"}, "where": {}}`},
		{"unknown subquery key", `{"select": {"from": "db.t", "having": {}}}`},
		{"missing select", `{"fields": ["a"]}`},
		{"limit is a string", `{"select": {"from": "db.t"}, "limit": "10"}`},
		{"negative limit", `{"select": {"from": "db.t", "limit": -5}}`},
		{"bad join type", `{"select": {"from": "db.t"}, "join": [{"type": "cross", "query": {"select": {"from": "db.u"}}, "on": {"a": "b"}}]}`},
		{"on value not a string", `{"select": {"from": "db.t"}, "join": [{"type": "left_join", "query": {"select": {"from": "db.u"}}, "on": {"a": 1}}]}`},
		{"nested filter value", `{"select": {"from": "db.t", "filter": {"a": {"b": 1}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode([]byte(tt.doc))
			require.NoError(t, err)
			err = ValidateShape(doc)
			require.Error(t, err)
			assert.True(t, ir.IsCode(err, ir.ErrCodeInvalidQuery), "error: %v", err)
		})
	}
}
