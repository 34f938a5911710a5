package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restsql/internal/client"
	"github.com/roach88/restsql/internal/engine"
	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/registry"
	"github.com/roach88/restsql/internal/store"
	"github.com/roach88/restsql/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHistory struct {
	entries  []store.Entry
	gotLimit int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]store.Entry, error) {
	f.gotLimit = limit
	return f.entries, nil
}

func newServer(t *testing.T, rel *testutil.FakeRelational, opts ...Option) *Server {
	t.Helper()
	reg, err := registry.New(&registry.Descriptor{
		Name:       "db",
		Kind:       registry.KindSQL,
		Connection: "sqlite3::memory:",
		Relational: rel,
		Schema: registry.Schema{"people": {Fields: map[string]registry.FieldType{
			"age":  registry.TypeInt,
			"name": registry.TypeString,
		}}},
	})
	require.NoError(t, err)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(reg, engine.WithLogger(quiet), engine.WithIDGenerator(testutil.NewFixedIDGenerator("q-1")))
	c := client.New(e, client.WithLogger(quiet))
	return New(c, append([]Option{WithLogger(quiet)}, opts...)...)
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return w.Code, out
}

func TestQuery_OK(t *testing.T) {
	rel := &testutil.FakeRelational{
		Columns: []string{"name", "age"},
		Rows:    [][]any{{"alice", int64(30)}, {"bob", nil}},
	}
	s := newServer(t, rel)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{
		"fields": ["name@Name", "age"],
		"select": {"from": "db.people", "fields": ["name", "age"]}
	}`))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"status": "ok",
		"query_id": "q-1",
		"data": [{"Name": "alice", "age": 30}, {"Name": "bob", "age": null}]
	}`, w.Body.String())
	assert.Contains(t, w.Body.String(), `{"Name":"alice","age":30}`)
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		rel    *testutil.FakeRelational
		body   string
		status int
		code   ir.ErrorCode
	}{
		{"not json", &testutil.FakeRelational{}, `{`, http.StatusBadRequest, ir.ErrCodeInvalidQuery},
		{"bad shape", &testutil.FakeRelational{}, `{"select": {"from": "db.people", "limit": -1}}`, http.StatusBadRequest, ir.ErrCodeInvalidQuery},
		{"unknown backend", &testutil.FakeRelational{}, `{"select": {"from": "nope.people"}}`, http.StatusBadRequest, ir.ErrCodeInvalidReference},
		{"unknown column", &testutil.FakeRelational{}, `{"select": {"from": "db.people", "fields": ["height"]}}`, http.StatusBadRequest, ir.ErrCodeUnknownColumn},
		{"backend down", &testutil.FakeRelational{Err: errors.New("connection refused")}, `{"select": {"from": "db.people"}}`, http.StatusBadGateway, ir.ErrCodeBackend},
		{"bad reply", &testutil.FakeRelational{Columns: []string{"age"}, Rows: [][]any{{int64(1), int64(2)}}}, `{"select": {"from": "db.people", "fields": ["age"]}}`, http.StatusBadGateway, ir.ErrCodeBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := do(t, newServer(t, tt.rel), http.MethodPost, "/query", tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, "error", out["status"])
			errBody := out["error"].(map[string]any)
			assert.Equal(t, string(tt.code), errBody["code"])
			assert.NotEmpty(t, errBody["message"])
		})
	}
}

func TestQuery_BodyTooLarge(t *testing.T) {
	s := newServer(t, &testutil.FakeRelational{})
	body := fmt.Sprintf(`{"select": {"from": "db.people", "filter": {"name": %q}}}`, strings.Repeat("x", MaxBodyBytes))
	status, out := do(t, s, http.MethodPost, "/query", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(ir.ErrCodeInvalidQuery), out["error"].(map[string]any)["code"])
}

func TestExplain(t *testing.T) {
	rel := &testutil.FakeRelational{}
	s := newServer(t, rel)

	status, out := do(t, s, http.MethodPost, "/explain", `{"select": {"from": "db.people", "filter": {"age__gte": 21}}}`)
	require.Equal(t, http.StatusOK, status)
	subs := out["data"].(map[string]any)["subqueries"].([]any)
	require.Len(t, subs, 1)
	assert.Equal(t, "db", subs[0].(map[string]any)["backend"])
	assert.Empty(t, rel.Calls())
}

func TestBackends(t *testing.T) {
	status, out := do(t, newServer(t, &testutil.FakeRelational{}), http.MethodGet, "/backends", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{map[string]any{
		"name":       "db",
		"kind":       "sql",
		"connection": "sqlite3::memory:",
		"tables":     map[string]any{"people": []any{"age", "name"}},
	}}, out["data"])
}

func TestHistory(t *testing.T) {
	status, _ := do(t, newServer(t, &testutil.FakeRelational{}), http.MethodGet, "/history", "")
	assert.Equal(t, http.StatusNotFound, status)

	h := &fakeHistory{entries: []store.Entry{{
		Seq:       1,
		QueryID:   "q-1",
		Document:  json.RawMessage(`{"select":{"from":"db.people"}}`),
		Status:    store.StatusOK,
		Rows:      2,
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}}}
	s := newServer(t, &testutil.FakeRelational{}, WithHistory(h, 5))

	status, out := do(t, s, http.MethodGet, "/history", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5, h.gotLimit)
	entries := out["data"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "q-1", entries[0].(map[string]any)["query_id"])

	_, _ = do(t, s, http.MethodGet, "/history?limit=2", "")
	assert.Equal(t, 2, h.gotLimit)

	status, _ = do(t, s, http.MethodGet, "/history?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthz(t *testing.T) {
	status, out := do(t, newServer(t, &testutil.FakeRelational{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", out["status"])
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusOf(ir.Errorf(ir.ErrCodeBadFilter, "x", "bad")))
	assert.Equal(t, http.StatusBadGateway, StatusOf(ir.WrapError(ir.ErrCodeBackend, "db", "failed", errors.New("boom"))))
	assert.Equal(t, http.StatusGatewayTimeout, StatusOf(ir.WrapError(ir.ErrCodeBackend, "db", "failed", context.DeadlineExceeded)))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
}

func TestRun_Shutdown(t *testing.T) {
	s := newServer(t, &testutil.FakeRelational{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
