package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/queryir"
	"github.com/roach88/restsql/internal/registry"
)

type envelope struct {
	Status  string     `json:"status"`
	QueryID string     `json:"query_id,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    ir.ErrorCode `json:"code"`
	Message string       `json:"message"`
	Subject string       `json:"subject,omitempty"`
}

func (s *Server) query(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		s.fail(c, ir.WrapError(ir.ErrCodeInvalidQuery, "", "reading request body", err))
		return
	}
	res, err := s.client.QueryJSON(c.Request.Context(), body)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Status: "ok", QueryID: res.QueryID, Data: res})
}

func (s *Server) explain(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		s.fail(c, ir.WrapError(ir.ErrCodeInvalidQuery, "", "reading request body", err))
		return
	}
	doc, err := queryir.Decode(body)
	if err != nil {
		s.fail(c, err)
		return
	}
	exp, err := s.client.Explain(c.Request.Context(), doc)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Status: "ok", Data: exp})
}

// BackendInfo describes one backend in GET /backends.
type BackendInfo struct {
	Name       string              `json:"name"`
	Kind       registry.Kind       `json:"kind"`
	Connection string              `json:"connection,omitempty"`
	Tables     map[string][]string `json:"tables,omitempty"`
}

// Describe summarizes one backend.
func Describe(d *registry.Descriptor) BackendInfo {
	info := BackendInfo{Name: d.Name, Kind: registry.KindOf(d), Connection: d.Connection}
	for _, t := range d.Schema.Tables() {
		if info.Tables == nil {
			info.Tables = make(map[string][]string)
		}
		info.Tables[t] = d.Schema.Columns(t)
	}
	return info
}

// Backends lists reg's backends in name order.
func Backends(reg *registry.Registry) []BackendInfo {
	out := []BackendInfo{}
	for _, name := range reg.Names() {
		d, _ := reg.Get(name)
		out = append(out, Describe(d))
	}
	return out
}

func (s *Server) backends(c *gin.Context) {
	c.JSON(http.StatusOK, envelope{Status: "ok", Data: Backends(s.client.Engine().Registry())})
}

func (s *Server) listHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, envelope{Status: "error", Error: &errorBody{Code: "NOT_FOUND", Message: "query history is disabled"}})
		return
	}
	limit := s.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(c, ir.Errorf(ir.ErrCodeInvalidQuery, "limit", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	entries, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Status: "ok", Data: entries})
}

// StatusOf maps an error to its HTTP status: 400 for query errors, 502 for
// backend failures, 500 otherwise.
func StatusOf(err error) int {
	switch {
	case ir.IsClientError(err):
		return http.StatusBadRequest
	case ir.IsCode(err, ir.ErrCodeBackend), ir.IsCode(err, ir.ErrCodeBadResponse):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := StatusOf(err)
	body := &errorBody{Code: ir.CodeOf(err), Message: err.Error()}
	var qe *ir.QueryError
	if errors.As(err, &qe) {
		body.Message = qe.Message
		body.Subject = qe.Subject
		if qe.Err != nil {
			body.Message += ": " + qe.Err.Error()
		}
	}
	if body.Code == "" {
		body.Code = "INTERNAL"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, envelope{Status: "error", Error: body})
}
