package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restsql/internal/ir"
)

func TestParseFilterKey(t *testing.T) {
	tests := []struct {
		key string
		col string
		op  Op
	}{
		{"name", "name", OpEq},
		{"age__gt", "age", OpGt},
		{"age__lte", "age", OpLte},
		{"title__contains", "title", OpContains},
		{"title__startswith", "title", OpStartsWith},
		{"title__endswith", "title", OpEndsWith},
		{"price__range", "price", OpRange},
		{"id__in", "id", OpIn},
		{"first__name__in", "first__name", OpIn},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			col, op, err := ParseFilterKey(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.col, col)
			assert.Equal(t, tt.op, op)
		})
	}

	_, _, err := ParseFilterKey("age__between")
	assert.True(t, ir.IsCode(err, ir.ErrCodeBadFilter))
	_, _, err = ParseFilterKey("__gt")
	assert.True(t, ir.IsCode(err, ir.ErrCodeBadFilter))
}

func TestClassifyField(t *testing.T) {
	tok, agg := ClassifyField("age")
	assert.Nil(t, agg)
	assert.Equal(t, FieldToken{Raw: "age", Kind: FieldIdentity, Column: "age", Alias: "age"}, tok)

	tok, agg = ClassifyField("age@Age")
	assert.Nil(t, agg)
	assert.Equal(t, FieldToken{Raw: "age@Age", Kind: FieldAliased, Column: "age", Alias: "Age"}, tok)

	_, agg = ClassifyField("id__count_distinct")
	require.NotNil(t, agg)
	assert.Equal(t, Aggregate{Column: "id", Func: AggCountDistinct}, *agg)
	assert.Equal(t, "id__count_distinct", agg.Name())

	// unknown suffix is an ordinary column
	tok, agg = ClassifyField("created__at")
	assert.Nil(t, agg)
	assert.Equal(t, "created__at", tok.Column)
}

func TestParseSelector(t *testing.T) {
	assert.Equal(t, Selector{Raw: "a", Source: "a", Alias: "a"}, ParseSelector("a"))
	assert.Equal(t, Selector{Raw: "a@b", Source: "a", Alias: "b"}, ParseSelector("a@b"))
	assert.Equal(t, Selector{Raw: "b@exclude", Source: "b", Alias: "b", Exclude: true}, ParseSelector("b@exclude"))
	assert.Equal(t, Selector{Raw: "a+b@sum", Source: "a+b", Alias: "sum"}, ParseSelector("a+b@sum"))
}

func TestParseExport(t *testing.T) {
	aliases, err := ParseExport([]string{"name@UserName", "uid"})
	require.NoError(t, err)
	assert.Equal(t, Aliases{"name": "UserName", "uid": "uid"}, aliases)
	assert.Equal(t, "UserName", aliases.Apply("name"))
	assert.Equal(t, "other", aliases.Apply("other"))

	_, err = ParseExport([]string{"name@A", "name@B"})
	assert.True(t, ir.IsCode(err, ir.ErrCodeAmbiguousColumn))

	_, err = ParseExport([]string{"@A"})
	assert.True(t, ir.IsCode(err, ir.ErrCodeInvalidQuery))
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortKey{Column: "sum", Desc: true}, ParseSortKey("-sum"))
	assert.Equal(t, SortKey{Column: "a"}, ParseSortKey("a"))
	assert.Equal(t, "-sum", ParseSortKey("-sum").String())
}
