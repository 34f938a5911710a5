package table

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restsql/internal/ir"
)

func rec(kv ...any) ir.Record {
	r := make(ir.Record, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		r[kv[i].(string)] = ir.MustFromAny(kv[i+1])
	}
	return r
}

func TestMerge_LeftKeepsEveryMainRow(t *testing.T) {
	orders := New([]string{"oid", "uid"}, rec("oid", 1, "uid", 7), rec("oid", 2, "uid", 8))
	users := New([]string{"uid", "UserName"}, rec("uid", 7, "UserName", "ann"))

	got, err := Merge(orders, users, []string{"uid"}, []string{"uid"}, Left)
	require.NoError(t, err)

	assert.Equal(t, []string{"oid", "uid", "UserName"}, got.Columns)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, rec("oid", 1, "uid", 7, "UserName", "ann"), got.Rows[0])
	assert.Equal(t, ir.Null{}, got.Rows[1]["UserName"])
	assert.Equal(t, ir.Int(2), got.Rows[1]["oid"])
}

func TestMerge_InnerOnlyMatches(t *testing.T) {
	left := New([]string{"k", "a"}, rec("k", 1, "a", "x"), rec("k", 2, "a", "y"), rec("k", 3, "a", "z"))
	right := New([]string{"ref", "b"}, rec("ref", 3, "b", "p"), rec("ref", 1, "b", "q"), rec("ref", 1, "b", "r"))

	got, err := Merge(left, right, []string{"k"}, []string{"ref"}, Inner)
	require.NoError(t, err)

	assert.Equal(t, []string{"k", "a", "ref", "b"}, got.Columns)
	// left order, then right order among matches
	assert.Equal(t, []ir.Record{
		rec("k", 1, "a", "x", "ref", 1, "b", "q"),
		rec("k", 1, "a", "x", "ref", 1, "b", "r"),
		rec("k", 3, "a", "z", "ref", 3, "b", "p"),
	}, got.Rows)
	for _, r := range got.Rows {
		assert.True(t, ir.Equal(r["k"], r["ref"]))
	}
}

func TestMerge_OuterAppendsUnmatchedRight(t *testing.T) {
	left := New([]string{"uid", "a"}, rec("uid", 1, "a", "x"), rec("uid", 2, "a", "y"))
	right := New([]string{"uid", "b"}, rec("uid", 3, "b", "p"), rec("uid", 2, "b", "q"))

	got, err := Merge(left, right, []string{"uid"}, []string{"uid"}, Outer)
	require.NoError(t, err)

	assert.Equal(t, []ir.Record{
		rec("uid", 1, "a", "x", "b", nil),
		rec("uid", 2, "a", "y", "b", "q"),
		rec("uid", 3, "a", nil, "b", "p"),
	}, got.Rows)
}

func TestMerge_NumericKeysAcrossKinds(t *testing.T) {
	left := New([]string{"uid"}, rec("uid", 7))
	right := New([]string{"uid", "name"}, rec("uid", 7.0, "name", "ann"))

	got, err := Merge(left, right, []string{"uid"}, []string{"uid"}, Inner)
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, ir.String("ann"), got.Rows[0]["name"])
}

func TestMerge_NullKeysNeverMatch(t *testing.T) {
	left := New([]string{"k"}, rec("k", nil))
	right := New([]string{"k", "v"}, rec("k", nil, "v", 1))

	got, err := Merge(left, right, []string{"k"}, []string{"k"}, Inner)
	require.NoError(t, err)
	assert.Empty(t, got.Rows)
}

func TestMerge_Errors(t *testing.T) {
	left := New([]string{"k", "name"}, rec("k", 1, "name", "a"))
	right := New([]string{"k", "name"}, rec("k", 1, "name", "b"))

	_, err := Merge(left, right, []string{"k"}, []string{"k"}, Left)
	assert.True(t, ir.IsCode(err, ir.ErrCodeAmbiguousColumn))

	_, err = Merge(left, right, []string{"missing"}, []string{"k"}, Left)
	assert.True(t, ir.IsCode(err, ir.ErrCodeUnknownColumn))

	_, err = Merge(left, right, []string{"k"}, []string{"missing"}, Left)
	assert.True(t, ir.IsCode(err, ir.ErrCodeUnknownColumn))
}

func TestRename(t *testing.T) {
	tbl := New([]string{"uid", "name"}, rec("uid", 7, "name", "ann"))

	got, err := tbl.Rename(map[string]string{"name": "UserName"})
	require.NoError(t, err)
	assert.Equal(t, []string{"uid", "UserName"}, got.Columns)
	assert.Equal(t, rec("uid", 7, "UserName", "ann"), got.Rows[0])
	// input untouched
	assert.Equal(t, []string{"uid", "name"}, tbl.Columns)

	_, err = tbl.Rename(map[string]string{"name": "uid"})
	assert.True(t, ir.IsCode(err, ir.ErrCodeAmbiguousColumn))

	swapped, err := tbl.Rename(map[string]string{"name": "uid", "uid": "name"})
	require.NoError(t, err)
	assert.Equal(t, rec("name", 7, "uid", "ann"), swapped.Rows[0])
}

func TestSort_StableWithDirections(t *testing.T) {
	tbl := New([]string{"g", "n"},
		rec("g", "b", "n", 1),
		rec("g", "a", "n", 2),
		rec("g", "b", "n", 3),
		rec("g", nil, "n", 4),
		rec("g", "a", "n", 5),
	)

	asc, err := tbl.Sort([]SortKey{{Column: "g"}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5, 1, 3, 4}, column(asc, "n"))

	desc, err := tbl.Sort([]SortKey{{Column: "g", Desc: true}})
	require.NoError(t, err)
	// ties keep merge order; nulls last
	assert.Equal(t, []int{1, 3, 2, 5, 4}, column(desc, "n"))

	multi, err := tbl.Sort([]SortKey{{Column: "g"}, {Column: "n", Desc: true}})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 2, 3, 1, 4}, column(multi, "n"))

	_, err = tbl.Sort([]SortKey{{Column: "zzz"}})
	assert.True(t, ir.IsCode(err, ir.ErrCodeUnknownColumn))

	_, err = New([]string{"g"}).Sort([]SortKey{{Column: "zzz"}})
	assert.True(t, ir.IsCode(err, ir.ErrCodeUnknownColumn), "keys are checked even without rows")
}

func TestTakeAndFillNull(t *testing.T) {
	tbl := New([]string{"a", "b"}, rec("a", 1), rec("a", 2, "b", "x"), rec("a", 3))

	assert.Equal(t, 2, tbl.Take(2).Len())
	assert.Equal(t, 3, tbl.Take(10).Len())
	assert.Equal(t, 0, tbl.Take(0).Len())

	filled := tbl.FillNull()
	assert.Equal(t, ir.Null{}, filled.Rows[0]["b"])
	assert.Equal(t, ir.String("x"), filled.Rows[1]["b"])
	_, present := tbl.Rows[0]["b"]
	assert.False(t, present, "FillNull must not mutate its input")
}

func TestMarshalJSON_ColumnOrder(t *testing.T) {
	tbl := New([]string{"Order", "User"}, rec("Order", 1, "User", "ann"), rec("Order", 2, "User", nil))
	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.Equal(t, `[{"Order":1,"User":"ann"},{"Order":2,"User":null}]`, string(data))

	empty, err := json.Marshal(New(nil))
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(empty))
}

func TestProject(t *testing.T) {
	tbl := New([]string{"a", "b", "c"}, rec("a", 1, "b", 2, "c", 3))
	got, err := tbl.Project([]string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, got.Columns)
	assert.Equal(t, rec("c", 3, "a", 1), got.Rows[0])

	_, err = tbl.Project([]string{"d"})
	assert.True(t, ir.IsCode(err, ir.ErrCodeUnknownColumn))
}

func column(t *Table, col string) []int {
	out := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = int(r[col].(ir.Int))
	}
	return out
}
