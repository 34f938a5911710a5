package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/restsql/internal/ir"
)

// Status is the outcome of a recorded query.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Entry is one history record.
type Entry struct {
	Seq          int64           `json:"seq"`
	QueryID      string          `json:"query_id"`
	Fingerprint  string          `json:"fingerprint"`
	Document     json.RawMessage `json:"document"`
	Status       Status          `json:"status"`
	ErrorCode    ir.ErrorCode    `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Rows         int             `json:"rows"`
	Requests     int             `json:"requests"`
	Duration     time.Duration   `json:"duration"`
	StartedAt    time.Time       `json:"started_at"`
}

// NewEntry canonicalizes doc and fingerprints it. The outcome fields are
// left for the caller.
func NewEntry(queryID string, doc map[string]any, startedAt time.Time) (Entry, error) {
	canonical, err := ir.MarshalCanonical(doc)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal document: %w", err)
	}
	fp, err := ir.Fingerprint(doc)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		QueryID:     queryID,
		Fingerprint: fp,
		Document:    canonical,
		Status:      StatusOK,
		StartedAt:   startedAt,
	}, nil
}

// Fail marks the entry failed with err's code and message.
func (e *Entry) Fail(err error) {
	e.Status = StatusError
	e.ErrorCode = ir.CodeOf(err)
	e.ErrorMessage = err.Error()
}

// Query decodes the stored document for re-execution.
func (e Entry) Query() (map[string]any, error) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(e.Document))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document of %s: %w", e.QueryID, err)
	}
	return doc, nil
}
