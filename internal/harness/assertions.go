package harness

import (
	"fmt"
	"slices"

	"github.com/roach88/restsql/internal/ir"
	"github.com/roach88/restsql/internal/store"
)

// AssertionError describes a failed expectation.
type AssertionError struct {
	Type     string // "columns", "rows", "error", "requests", "history"
	Expected any
	Actual   any
}

func (e AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %v, got %v", e.Type, e.Expected, e.Actual)
}

// checkExpectations compares a run against the scenario's expect block.
func checkExpectations(s *Scenario, r *Result) []string {
	var failures []AssertionError
	exp := s.Expect

	if exp.Error != "" {
		if string(r.ErrorCode) != exp.Error {
			failures = append(failures, AssertionError{Type: "error", Expected: exp.Error, Actual: describeError(r)})
		}
	} else {
		if r.Err != nil {
			failures = append(failures, AssertionError{Type: "error", Expected: "success", Actual: describeError(r)})
		}
		if exp.Columns != nil && !slices.Equal(exp.Columns, r.Columns) {
			failures = append(failures, AssertionError{Type: "columns", Expected: exp.Columns, Actual: r.Columns})
		}
		if exp.Rows != nil {
			failures = append(failures, compareRows(exp.Rows, r.Rows)...)
		}
	}

	if exp.Requests != nil && *exp.Requests != len(r.Requests) {
		failures = append(failures, AssertionError{Type: "requests", Expected: *exp.Requests, Actual: len(r.Requests)})
	}

	failures = append(failures, checkHistory(r)...)

	msgs := make([]string, len(failures))
	for i, f := range failures {
		msgs[i] = f.Error()
	}
	return msgs
}

func describeError(r *Result) string {
	if r.Err == nil {
		return "success"
	}
	if r.ErrorCode == "" {
		return r.Err.Error()
	}
	return string(r.ErrorCode)
}

// compareRows compares rows in order as canonical JSON, so 7 and 7.0 are
// equal and key order does not matter.
func compareRows(expected []map[string]any, actual []ir.Record) []AssertionError {
	if len(expected) != len(actual) {
		return []AssertionError{{Type: "rows", Expected: fmt.Sprintf("%d rows", len(expected)), Actual: fmt.Sprintf("%d rows", len(actual))}}
	}
	var failures []AssertionError
	for i := range expected {
		want, err := ir.MarshalCanonical(expected[i])
		if err != nil {
			failures = append(failures, AssertionError{Type: "rows", Expected: fmt.Sprintf("row %d: %v", i, expected[i]), Actual: err})
			continue
		}
		got, err := ir.MarshalCanonical(actual[i])
		if err != nil {
			failures = append(failures, AssertionError{Type: "rows", Expected: string(want), Actual: err})
			continue
		}
		if string(want) != string(got) {
			failures = append(failures, AssertionError{Type: "rows", Expected: fmt.Sprintf("row %d %s", i, want), Actual: string(got)})
		}
	}
	return failures
}

// checkHistory verifies the run was recorded with a matching outcome.
func checkHistory(r *Result) []AssertionError {
	h := r.History
	want := store.StatusOK
	if r.Err != nil {
		want = store.StatusError
	}
	var failures []AssertionError
	if h.Status != want {
		failures = append(failures, AssertionError{Type: "history", Expected: want, Actual: h.Status})
	}
	if r.Err == nil && h.Rows != len(r.Rows) {
		failures = append(failures, AssertionError{Type: "history", Expected: fmt.Sprintf("%d rows", len(r.Rows)), Actual: fmt.Sprintf("%d rows", h.Rows)})
	}
	if h.ErrorCode != r.ErrorCode {
		failures = append(failures, AssertionError{Type: "history", Expected: r.ErrorCode, Actual: h.ErrorCode})
	}
	return failures
}
