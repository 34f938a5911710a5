package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes query errors. Every error the engine returns to a
// caller carries exactly one code.
type ErrorCode string

const (
	// ErrCodeInvalidQuery indicates the document does not have the shape of a query.
	ErrCodeInvalidQuery ErrorCode = "INVALID_QUERY"

	// ErrCodeInvalidReference indicates a missing or malformed "from", or an unknown backend.
	ErrCodeInvalidReference ErrorCode = "INVALID_REFERENCE"

	// ErrCodeUnknownColumn indicates a reference to a column absent from the target schema.
	ErrCodeUnknownColumn ErrorCode = "UNKNOWN_COLUMN"

	// ErrCodeBadFilter indicates an unrecognized operator or malformed operand.
	ErrCodeBadFilter ErrorCode = "BAD_FILTER"

	// ErrCodeUnknownField indicates a top-level selector that is neither a column nor an expression.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeAmbiguousColumn indicates a column name produced twice without disambiguation.
	ErrCodeAmbiguousColumn ErrorCode = "AMBIGUOUS_COLUMN"

	// ErrCodeExprType indicates arithmetic over non-numeric values.
	ErrCodeExprType ErrorCode = "EXPR_TYPE_ERROR"

	// ErrCodeBackend wraps a driver-reported transport, authentication or execution error.
	ErrCodeBackend ErrorCode = "BACKEND_ERROR"

	// ErrCodeBadResponse indicates a backend reply that could not be decoded.
	ErrCodeBadResponse ErrorCode = "BAD_RESPONSE"
)

// QueryError is the single error type surfaced by query compilation and
// execution. Subject names the offending column, selector, backend or filter.
type QueryError struct {
	Code    ErrorCode
	Message string
	Subject string
	Err     error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Subject != "" {
		msg = fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying driver or decoding error, if any.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Errorf creates a QueryError with a formatted message.
func Errorf(code ErrorCode, subject, format string, args ...any) *QueryError {
	return &QueryError{Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a QueryError around an underlying error.
func WrapError(code ErrorCode, subject, message string, err error) *QueryError {
	return &QueryError{Code: code, Subject: subject, Message: message, Err: err}
}

// CodeOf extracts the code from err. Returns "" for errors that are not
// QueryErrors. Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// IsCode reports whether err is a QueryError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsClientError reports whether the error was caused by the query document
// rather than by a backend.
func IsClientError(err error) bool {
	switch CodeOf(err) {
	case "", ErrCodeBackend, ErrCodeBadResponse:
		return false
	default:
		return true
	}
}
