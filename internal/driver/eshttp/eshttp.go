// Package eshttp is a driver.Search backed by the official Elasticsearch
// client's _search API.
package eshttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/roach88/restsql/internal/driver"
	"github.com/roach88/restsql/internal/ir"
)

// DefaultTimeout bounds one search request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of a failed reply is quoted in the error.
const maxErrorBody = 4 << 10

// Client submits query DSL documents to one cluster.
type Client struct {
	es        *elasticsearch.Client
	transport http.RoundTripper
	timeout   time.Duration
}

var _ driver.Search = (*Client)(nil)

type options struct {
	cfg     elasticsearch.Config
	timeout time.Duration
}

// Option configures a Client.
type Option func(*options)

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.cfg.Transport = rt
	}
}

// WithBasicAuth sets credentials sent with every request.
func WithBasicAuth(user, password string) Option {
	return func(o *options) {
		o.cfg.Username = user
		o.cfg.Password = password
	}
}

// WithTimeout bounds each search. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// New creates a client for the cluster at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	o := options{
		cfg: elasticsearch.Config{
			Addresses: []string{strings.TrimRight(baseURL, "/")},
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	es, err := elasticsearch.NewClient(o.cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client for %s: %w", baseURL, err)
	}
	return &Client{es: es, transport: o.cfg.Transport, timeout: o.timeout}, nil
}

// Search submits body to index. Transport failures and non-2xx replies
// are returned as plain errors; a 2xx reply that is not a JSON object is
// a BAD_RESPONSE.
func (c *Client) Search(ctx context.Context, index string, body map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(payload),
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, fmt.Errorf("search %s: status %d: %s", index, res.StatusCode, strings.TrimSpace(string(snippet)))
	}

	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, ir.WrapError(ir.ErrCodeBadResponse, index, "search reply is not a JSON object", err)
	}
	return out, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	if t, ok := c.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}
