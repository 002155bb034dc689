// Package domain defines core types, interfaces, and errors for the Dune query client.
package domain

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflicting in-flight operation (e.g., a second
// fetch for a query id that is already being fetched).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// TransportError indicates the service answered with a non-200 HTTP status.
// It is never retried.
type TransportError struct {
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (status %d): %s", e.StatusCode, e.Message)
}

// ServiceError indicates the response carried an "errors" field.
// Payload holds the raw errors value as returned by the service.
type ServiceError struct {
	Payload any
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error: %v", e.Payload)
}

// SchemaError indicates a response that lacks the expected structure.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string { return "schema error: " + e.Message }

// ParseError indicates a malformed parameter or metadata value.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return e.Message }

// ConnectionError wraps a network-level failure (dial, reset, read) that
// produced no HTTP status at all.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError indicates the login handshake or token refresh failed.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Message, e.Err)
	}
	return "auth: " + e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// TimeoutError indicates the poll deadline elapsed before a result was ready.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string { return e.Message }

// RetriesExhaustedError is returned once every allowed attempt has failed.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrSchema creates a SchemaError with a formatted message.
func ErrSchema(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Message: fmt.Sprintf(format, args...)}
}

// ErrParse creates a ParseError with a formatted message.
func ErrParse(format string, args ...interface{}) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}

// ErrTimeout creates a TimeoutError with a formatted message.
func ErrTimeout(format string, args ...interface{}) *TimeoutError {
	return &TimeoutError{Message: fmt.Sprintf(format, args...)}
}

// IsRetryable reports whether err means "this attempt did not yield usable
// data" and the whole lifecycle may be restarted after re-authentication.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var svcErr *ServiceError
	var schemaErr *SchemaError
	var connErr *ConnectionError
	return errors.As(err, &svcErr) || errors.As(err, &schemaErr) || errors.As(err, &connErr)
}

// ErrorCode returns a short stable code for err, used by the run history and
// the CLI's JSON error output.
func ErrorCode(err error) string {
	var (
		transportErr *TransportError
		svcErr       *ServiceError
		schemaErr    *SchemaError
		parseErr     *ParseError
		connErr      *ConnectionError
		authErr      *AuthError
		timeoutErr   *TimeoutError
		exhaustedErr *RetriesExhaustedError
		conflictErr  *ConflictError
		validErr     *ValidationError
		notFoundErr  *NotFoundError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &exhaustedErr):
		return "RETRIES_EXHAUSTED"
	case errors.As(err, &transportErr):
		return "TRANSPORT"
	case errors.As(err, &svcErr):
		return "SERVICE"
	case errors.As(err, &schemaErr):
		return "SCHEMA"
	case errors.As(err, &parseErr):
		return "PARSE"
	case errors.As(err, &connErr):
		return "CONNECTION"
	case errors.As(err, &authErr):
		return "AUTH"
	case errors.As(err, &timeoutErr):
		return "TIMEOUT"
	case errors.As(err, &conflictErr):
		return "CONFLICT"
	case errors.As(err, &validErr):
		return "VALIDATION"
	case errors.As(err, &notFoundErr):
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
