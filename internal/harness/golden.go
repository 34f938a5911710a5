package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/restsql/internal/ir"
)

// Snapshot captures what a scenario run produced. Timings and query ids
// are left out so snapshots are stable across runs.
type Snapshot struct {
	ScenarioName string
	Columns      []string
	Rows         []ir.Record
	ErrorCode    ir.ErrorCode
	Requests     []Request
}

// NewSnapshot builds the snapshot of a run.
func NewSnapshot(scenarioName string, r *Result) Snapshot {
	return Snapshot{
		ScenarioName: scenarioName,
		Columns:      r.Columns,
		Rows:         r.Rows,
		ErrorCode:    r.ErrorCode,
		Requests:     r.Requests,
	}
}

// toCanonicalMap converts the snapshot to a map[string]any, the shape
// ir.MarshalCanonical accepts.
func (s Snapshot) toCanonicalMap() map[string]any {
	requests := make([]any, len(s.Requests))
	for i, req := range s.Requests {
		m := map[string]any{"backend": req.Backend}
		if req.Index != "" {
			m["index"] = req.Index
		} else {
			args := req.Args
			if args == nil {
				args = []any{}
			}
			m["statement"] = req.Statement
			m["args"] = args
		}
		requests[i] = m
	}

	rows := make([]any, len(s.Rows))
	for i, r := range s.Rows {
		rows[i] = r
	}
	columns := s.Columns
	if columns == nil {
		columns = []string{}
	}

	result := map[string]any{
		"scenario": s.ScenarioName,
		"columns":  columns,
		"rows":     rows,
		"requests": requests,
	}
	if s.ErrorCode != "" {
		result["error"] = string(s.ErrorCode)
	}
	return result
}

// MarshalCanonical encodes the snapshot as canonical JSON.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can make further assertions. Expectation
// failures are reported through t.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
