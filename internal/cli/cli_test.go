package cli

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restsql/internal/ir"
)

func init() {
	color.NoColor = true
}

// workspace is a temp dir with a populated SQLite backend and restsql.yaml.
type workspace struct {
	dir    string
	config string
}

func newWorkspace(t *testing.T, withHistory bool) *workspace {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "people.db")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE people (name TEXT, age INTEGER, city TEXT);
		INSERT INTO people VALUES ('alice', 30, 'paris'), ('bob', 40, 'oslo'), ('carol', NULL, 'paris');
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg := fmt.Sprintf(`
backends:
  - name: db
    kind: sql
    driver: sqlite3
    dsn: %q
    tables:
      people:
        name: text
        age: integer
        city: text
`, dbPath)
	if withHistory {
		cfg += fmt.Sprintf("history:\n  path: %q\n", filepath.Join(dir, "history.db"))
	}
	path := filepath.Join(dir, "restsql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return &workspace{dir: dir, config: path}
}

func (w *workspace) writeQuery(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(w.dir, fmt.Sprintf("q%d.json", len(doc)))
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

// execute runs the root command and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

const adults = `{
	"fields": ["name@Name", "age"],
	"select": {"from": "db.people", "fields": ["name", "age"], "filter": {"age__gte": 30}, "sort": ["age"]}
}`

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "restsql", cmd.Use)

	for _, name := range []string{"query", "explain", "validate", "serve", "backends", "history", "replay"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestInvalidFormat(t *testing.T) {
	ws := newWorkspace(t, false)
	_, err := execute(t, "", "--config", ws.config, "--format", "xml", "backends")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestQuery_JSON(t *testing.T) {
	ws := newWorkspace(t, false)
	out, err := execute(t, "", "--config", ws.config, "--format", "json", "query", ws.writeQuery(t, adults))
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.QueryID)
	assert.Contains(t, out, `"data":[{"Name":"alice","age":30},{"Name":"bob","age":40}]`)
}

func TestQuery_TextFromStdin(t *testing.T) {
	ws := newWorkspace(t, false)
	out, err := execute(t, adults, "--config", ws.config, "query")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"Name", "age"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"alice", "30"}, strings.Fields(lines[1]))
	assert.Equal(t, "(2 rows)", lines[3])
}

func TestQuery_Failure(t *testing.T) {
	ws := newWorkspace(t, false)
	out, err := execute(t, `{"select": {"from": "db.people", "fields": ["height"]}}`,
		"--config", ws.config, "--format", "json", "query", "-")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(ir.ErrCodeUnknownColumn), resp.Error.Code)
	assert.Equal(t, "people.height", resp.Error.Subject)
}

func TestQuery_BadInput(t *testing.T) {
	ws := newWorkspace(t, false)

	_, err := execute(t, "", "--config", ws.config, "query", filepath.Join(ws.dir, "missing.json"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := execute(t, "not json", "--config", ws.config, "query")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "INVALID_QUERY")
}

func TestQuery_MissingConfig(t *testing.T) {
	_, err := execute(t, adults, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "query")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "config file not found")
}

func TestExplain(t *testing.T) {
	ws := newWorkspace(t, false)
	out, err := execute(t, adults, "--config", ws.config, "explain")
	require.NoError(t, err)
	assert.Contains(t, out, "select (main) db.people on db [sql]")
	assert.Contains(t, out, "SELECT name, age FROM people WHERE age >= ? ORDER BY age LIMIT 1000")
	assert.Contains(t, out, "limit: 1000")

	out, err = execute(t, adults, "--config", ws.config, "--format", "json", "explain")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	subs := resp.Data.(map[string]any)["subqueries"].([]any)
	assert.Len(t, subs, 1)
}

func TestValidate(t *testing.T) {
	ws := newWorkspace(t, false)

	out, err := execute(t, adults, "--config", ws.config, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "query is valid")

	out, err = execute(t, `{"select": {"from": "db.people", "filter": {"age__between": [1, 2]}}}`,
		"--config", ws.config, "validate")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "[BAD_FILTER]")
}

func TestBackends(t *testing.T) {
	ws := newWorkspace(t, false)

	out, err := execute(t, "", "--config", ws.config, "backends", "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "db [sql] sqlite3:")
	assert.Contains(t, out, "  people: age, city, name")

	out, err = execute(t, "", "--config", ws.config, "--format", "json", "backends")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	backends := resp.Data.([]any)
	require.Len(t, backends, 1)
	assert.Equal(t, "db", backends[0].(map[string]any)["name"])
}

func TestHistoryAndReplay(t *testing.T) {
	ws := newWorkspace(t, true)

	_, err := execute(t, adults, "--config", ws.config, "query")
	require.NoError(t, err)
	_, err = execute(t, `{"select": {"from": "db.people", "fields": ["height"]}}`, "--config", ws.config, "query")
	require.Error(t, err)

	out, err := execute(t, "", "--config", ws.config, "--format", "json", "history")
	require.NoError(t, err)
	entries := decodeResponse(t, out).Data.([]any)
	require.Len(t, entries, 2)
	failed := entries[0].(map[string]any)
	assert.Equal(t, "error", failed["status"])
	assert.Equal(t, "UNKNOWN_COLUMN", failed["error_code"])
	ok := entries[1].(map[string]any)
	assert.Equal(t, "ok", ok["status"])
	assert.Equal(t, float64(2), ok["rows"])

	text, err := execute(t, "", "--config", ws.config, "history", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, text, "UNKNOWN_COLUMN")
	assert.NotContains(t, text, ok["query_id"].(string))

	out, err = execute(t, "", "--config", ws.config, "--format", "json", "replay", ok["query_id"].(string))
	require.NoError(t, err)
	result := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, float64(2), result["rows"])
	assert.Equal(t, float64(2), result["original_rows"])
	assert.Equal(t, ok["fingerprint"], result["fingerprint"])

	_, err = execute(t, "", "--config", ws.config, "replay", "no-such-id")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err = execute(t, "", "--config", ws.config, "--format", "json", "history", "--fingerprint", ok["fingerprint"].(string))
	require.NoError(t, err)
	assert.Len(t, decodeResponse(t, out).Data.([]any), 2)
}

func TestHistory_Disabled(t *testing.T) {
	ws := newWorkspace(t, false)
	_, err := execute(t, "", "--config", ws.config, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "history is disabled")
}

func TestGridRender(t *testing.T) {
	var buf bytes.Buffer
	g := NewGrid([]string{"a", "b"}, []ir.Record{{"a": ir.Int(1), "b": ir.Null{}}}, nil)
	require.NoError(t, g.Render(&buf))
	assert.Equal(t, "a  b\n1  null\n(1 row)\n", buf.String())
}

func TestExitError(t *testing.T) {
	err := WrapExitError(ExitCommandError, "failed to open", fmt.Errorf("boom"))
	assert.Equal(t, "failed to open: boom", err.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("plain")))
}
