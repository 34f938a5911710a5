package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeRelational_RecordsCalls(t *testing.T) {
	f := &FakeRelational{Columns: []string{"a"}, Rows: [][]any{{1}, {2}}}

	rows, err := f.Query(context.Background(), "SELECT a FROM t WHERE a > ?", 0)
	require.NoError(t, err)
	defer rows.Close()

	var got []any
	for rows.Next() {
		vals, err := rows.Values()
		require.NoError(t, err)
		got = append(got, vals[0])
	}
	assert.Equal(t, []any{1, 2}, got)
	assert.Equal(t, []Call{{Statement: "SELECT a FROM t WHERE a > ?", Args: []any{0}}}, f.Calls())
}

func TestFakeRelational_Err(t *testing.T) {
	f := &FakeRelational{Err: errors.New("down")}
	_, err := f.Query(context.Background(), "SELECT 1")
	assert.EqualError(t, err, "down")
}

func TestFakeSearch(t *testing.T) {
	f := &FakeSearch{Response: Hits(map[string]any{"a": 1})}
	resp, err := f.Search(context.Background(), "idx", map[string]any{"size": 1})
	require.NoError(t, err)
	assert.Len(t, resp["hits"].(map[string]any)["hits"], 1)
	assert.Equal(t, "idx", f.Requests()[0].Index)
}

func TestStepClock(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewStepClock(start, time.Second)
	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(time.Second), c.Now())
	c.Reset()
	assert.Equal(t, start, c.Now())
}

func TestFixedIDGenerator(t *testing.T) {
	assert.Equal(t, "test-query", NewFixedIDGenerator("").Generate())
	g := NewFixedIDGenerator("q-1")
	assert.Equal(t, "q-1", g.Generate())
	assert.Equal(t, "q-1", g.Generate())
}
