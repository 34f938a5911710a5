package eshttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restsql/internal/ir"
)

const productHeader = "X-Elastic-Product"

func newClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c, err := New(url, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSearch(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(productHeader, "Elasticsearch")
		gotPath = r.URL.Path
		user, pass, _ := r.BasicAuth()
		gotAuth = user + ":" + pass
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"hits":{"hits":[{"_source":{"uid":7,"score":1.5}}]}}`)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL+"/", WithBasicAuth("elastic", "secret"))
	resp, err := c.Search(context.Background(), "users", map[string]any{"size": 10})
	require.NoError(t, err)

	assert.Equal(t, "/users/_search", gotPath)
	assert.Equal(t, "elastic:secret", gotAuth)
	assert.Equal(t, float64(10), gotBody["size"])

	src := resp["hits"].(map[string]any)["hits"].([]any)[0].(map[string]any)["_source"].(map[string]any)
	assert.Equal(t, json.Number("7"), src["uid"])
	assert.Equal(t, json.Number("1.5"), src["score"])
}

func TestSearch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(productHeader, "Elasticsearch")
		http.Error(w, `{"error":"index_not_found_exception"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Search(context.Background(), "missing", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "index_not_found_exception")
	assert.Empty(t, ir.CodeOf(err))
}

func TestSearch_BadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(productHeader, "Elasticsearch")
		_, _ = io.WriteString(w, `<html>gateway</html>`)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Search(context.Background(), "logs", map[string]any{})
	assert.True(t, ir.IsCode(err, ir.ErrCodeBadResponse))
}

func TestSearch_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newClient(t, srv.URL).Search(ctx, "logs", map[string]any{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newClient(t, srv.URL, WithTimeout(20*time.Millisecond)).Search(context.Background(), "logs", map[string]any{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_BadAddress(t *testing.T) {
	_, err := New("://nope")
	assert.Error(t, err)
}
