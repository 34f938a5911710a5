package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/02_cross_backend_left_join.yaml")
	require.NoError(t, err)

	assert.Equal(t, "cross_backend_left_join", s.Name)
	require.Len(t, s.Backends, 2)
	assert.Equal(t, "sql", s.Backends[0].Kind)
	assert.Contains(t, s.Backends[0].Setup, "CREATE TABLE orders")
	assert.Equal(t, map[string]string{"uid": "int", "name": "string"}, s.Backends[1].Tables["users"])
	assert.Contains(t, s.Backends[1].Responses, "users")
	assert.Equal(t, []string{"Order", "User"}, s.Expect.Columns)
	require.NotNil(t, s.Expect.Requests)
	assert.Equal(t, 2, *s.Expect.Requests)
}

func TestLoadScenario_Invalid(t *testing.T) {
	const backend = "backends:\n  - {name: db, kind: sql}\n"
	const query = "query:\n  select: {from: db.t}\n"

	tests := map[string]string{
		"unknown field":       "name: x\ndescription: d\n" + backend + query + "expects: {}\n",
		"missing name":        "description: d\n" + backend + query,
		"missing description": "name: x\n" + backend + query,
		"no backends":         "name: x\ndescription: d\n" + query,
		"no query":            "name: x\ndescription: d\n" + backend,
		"unknown kind":        "name: x\ndescription: d\nbackends:\n  - {name: db, kind: mongo}\n" + query,
		"duplicate backend":   "name: x\ndescription: d\nbackends:\n  - {name: db, kind: sql}\n  - {name: db, kind: es}\n" + query,
		"setup on es":         "name: x\ndescription: d\nbackends:\n  - {name: db, kind: es, setup: 'SELECT 1'}\n" + query,
		"responses on sql":    "name: x\ndescription: d\nbackends:\n  - {name: db, kind: sql, responses: {t: {}}}\n" + query,
		"error with rows":     "name: x\ndescription: d\n" + backend + query + "expect:\n  error: BAD_FILTER\n  rows: [{a: 1}]\n",
		"negative requests":   "name: x\ndescription: d\n" + backend + query + "expect:\n  requests: -1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 7)
	assert.Equal(t, "single_backend_alias", scenarios[0].Name)
	assert.Equal(t, "same_backend_no_push_down", scenarios[6].Name)
}
