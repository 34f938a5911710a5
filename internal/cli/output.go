package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/roach88/restsql/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Query failed (bad document, backend error, replay mismatch)
	ExitCommandError = 2 // Command error (config not found, unreadable input, etc.)
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the JSON envelope for CLI output. It matches the HTTP
// server's envelope.
type CLIResponse struct {
	Status  string    `json:"status"` // "ok" or "error"
	QueryID string    `json:"query_id,omitempty"`
	Data    any       `json:"data,omitempty"`
	Error   *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

var (
	okMark  = color.New(color.FgGreen, color.Bold).SprintFunc()
	errMark = color.New(color.FgRed, color.Bold).SprintFunc()
)

// Success outputs a successful result. In text mode data is printed with
// fmt unless it is a *Grid.
func (f *OutputFormatter) Success(queryID string, data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", QueryID: queryID, Data: data})
	}
	if g, ok := data.(*Grid); ok {
		return g.Render(f.Writer)
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Done prints a one-line status message in text mode, or data in JSON mode.
func (f *OutputFormatter) Done(message string, data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintf(f.Writer, "%s %s\n", okMark("✓"), message)
	return nil
}

// Error outputs err. Query errors carry their code; other errors are
// reported as INTERNAL.
func (f *OutputFormatter) Error(err error) error {
	body := &CLIError{Code: string(ir.CodeOf(err)), Message: err.Error()}
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

	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "error", Error: body})
	}
	fmt.Fprintf(f.Writer, "%s [%s] %s\n", errMark("✗"), body.Code, body.Message)
	if f.Verbose && body.Subject != "" {
		fmt.Fprintf(f.Writer, "  at: %s\n", body.Subject)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Goes to ErrWriter so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

// Grid is tabular text output. It marshals to JSON as its records so the
// same value serves both formats.
type Grid struct {
	Columns []string
	Rows    []ir.Record
	data    any
}

// NewGrid builds a grid whose JSON form is data.
func NewGrid(columns []string, rows []ir.Record, data any) *Grid {
	return &Grid{Columns: columns, Rows: rows, data: data}
}

// MarshalJSON encodes the grid's data.
func (g *Grid) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.data)
}

// Render writes an aligned table followed by a row count.
func (g *Grid) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(g.Columns) > 0 {
		fmt.Fprintln(tw, strings.Join(g.Columns, "\t"))
	}
	for _, row := range g.Rows {
		cells := make([]string, len(g.Columns))
		for i, col := range g.Columns {
			cells[i] = ir.Format(row.Get(col))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	noun := "rows"
	if len(g.Rows) == 1 {
		noun = "row"
	}
	_, err := fmt.Fprintf(w, "(%d %s)\n", len(g.Rows), noun)
	return err
}
