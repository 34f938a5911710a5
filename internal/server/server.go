// Package server exposes the query engine over HTTP.
//
// Routes:
//
//	POST /query     run a query document
//	POST /explain   compile a query document without running it
//	GET  /backends  list configured backends and their tables
//	GET  /history   recent queries, when a history store is attached
//	GET  /healthz   liveness
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/restsql/internal/client"
	"github.com/roach88/restsql/internal/store"
)

// MaxBodyBytes caps the size of a query document.
const MaxBodyBytes = 1 << 20

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 10 * time.Second

// HistoryReader lists recorded queries.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]store.Entry, error)
}

// Server routes HTTP requests to a client.
type Server struct {
	client       *client.Client
	history      HistoryReader
	historyLimit int
	logger       *slog.Logger
	router       *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithHistory enables GET /history. limit is the default page size.
func WithHistory(h HistoryReader, limit int) Option {
	return func(s *Server) {
		s.history = h
		s.historyLimit = limit
	}
}

// New builds the router. gin's mode is left to the caller.
func New(c *client.Client, opts ...Option) *Server {
	s := &Server{
		client:       c,
		logger:       slog.Default(),
		historyLimit: 20,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())
	r.POST("/query", s.query)
	r.POST("/explain", s.explain)
	r.GET("/backends", s.backends)
	r.GET("/history", s.listHistory)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// readBody reads at most MaxBodyBytes of the request body.
func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
}
