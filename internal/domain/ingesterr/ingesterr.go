// Package ingesterr defines the error taxonomy every tool response maps
// onto: {status, kind, message, retryable}.
package ingesterr

import "fmt"

// Kind is one of the closed set of error classifications.
type Kind string

// Supported kinds.
const (
	KindInvalidInput       Kind = "InvalidInput"
	KindInvalidMetadata    Kind = "InvalidMetadata"
	KindIndexRequired      Kind = "IndexRequired"
	KindNotFound           Kind = "NotFound"
	KindConflict           Kind = "Conflict"
	KindBackendUnavailable Kind = "BackendUnavailable"
	KindEmbeddingFailure   Kind = "EmbeddingFailure"
	KindIntegrityMismatch  Kind = "IntegrityMismatch"
	KindInternal           Kind = "Internal"
)

// retryable records which kinds are safe for a caller to retry.
var retryable = map[Kind]bool{
	KindBackendUnavailable: true,
	KindEmbeddingFailure:   true,
}

// Error is the taxonomy's concrete error type: a Kind, a caller-facing
// message, optional structured detail, and a wrapped cause for
// errors.Is/As chains.
type Error struct {
	Kind    Kind
	Message string
	Detail  map[string]any
	Cause   error
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind, wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetail attaches structured detail (e.g. mismatch specifics for
// IntegrityMismatch) and returns e for chaining.
func (e *Error) WithDetail(detail map[string]any) *Error {
	e.Detail = detail
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the caller may retry this error.
func (e *Error) Retryable() bool { return retryable[e.Kind] }

// InvalidInput constructs a not-retryable InvalidInput error.
func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, fmt.Sprintf(format, args...))
}

// InvalidMetadata constructs a not-retryable InvalidMetadata error.
func InvalidMetadata(format string, args ...any) *Error {
	return New(KindInvalidMetadata, fmt.Sprintf(format, args...))
}

// IndexRequired constructs a not-retryable IndexRequired error naming the
// unindexed field path.
func IndexRequired(field string) *Error {
	return New(KindIndexRequired, fmt.Sprintf("field %q is not indexed", field))
}

// NotFound constructs a not-retryable NotFound error.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Conflict constructs a not-retryable Conflict error.
func Conflict(format string, args ...any) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

// BackendUnavailable wraps cause as a retryable BackendUnavailable error.
func BackendUnavailable(cause error) *Error {
	return Wrap(KindBackendUnavailable, "backend unavailable", cause)
}

// EmbeddingFailure wraps cause as a retryable EmbeddingFailure error.
func EmbeddingFailure(cause error) *Error {
	return Wrap(KindEmbeddingFailure, "embedding failed", cause)
}

// IntegrityMismatch constructs a not-retryable IntegrityMismatch error.
func IntegrityMismatch(format string, args ...any) *Error {
	return New(KindIntegrityMismatch, fmt.Sprintf(format, args...))
}

// Internal wraps cause as a not-retryable Internal error.
func Internal(cause error) *Error {
	return Wrap(KindInternal, "internal error", cause)
}
