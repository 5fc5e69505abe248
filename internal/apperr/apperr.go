// Package apperr provides structured domain errors with machine-readable
// codes and an HTTP status mapping used at the handler boundary.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unclassified internal failure.
	CodeUnknown Code = "UNKNOWN"

	// CodeUnauthenticated means no user identity could be resolved.
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	// Timer errors
	CodeTimerConflict         Code = "TIMER_CONFLICT"
	CodeNoRunningTimerForItem Code = "NO_RUNNING_TIMER_FOR_ITEM"
	CodeInvalidBounds         Code = "INVALID_BOUNDS"

	// Entity errors
	CodeTimelineItemNotFound Code = "TIMELINE_ITEM_NOT_FOUND"
	CodeEntryNotFound        Code = "ENTRY_NOT_FOUND"

	// Request errors
	CodeValidation Code = "VALIDATION"

	// CodeStorage represents a persistence failure.
	CodeStorage Code = "STORAGE_FAILURE"
)

// HTTPStatus maps the code to the status returned to clients.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeTimelineItemNotFound, CodeEntryNotFound, CodeNoRunningTimerForItem:
		return http.StatusNotFound
	case CodeTimerConflict:
		return http.StatusConflict
	case CodeInvalidBounds, CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Message safe to surface for non-5xx codes
	Metadata map[string]string // Additional context for the client
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a domain error carrying client-facing context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from an error chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
