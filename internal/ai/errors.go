package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	KindTimeout         ErrorKind = "TIMEOUT"
	KindSchemaViolation ErrorKind = "SCHEMA_VIOLATION"
	KindContentFiltered ErrorKind = "CONTENT_FILTERED"
	KindContextOverflow ErrorKind = "CONTEXT_OVERFLOW"
	KindAPIError        ErrorKind = "API_ERROR"
)

// Error is a classified generation failure. Retryable is fixed by the
// constructor for the kind and is the only input to the retry policy.
type Error struct {
	Kind       ErrorKind
	Retryable  bool
	StatusCode int              // Upstream HTTP status, 0 if none
	Message    string           // Short description, safe to log
	Violations []FieldViolation // Set for schema violations
	Err        error            // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("ai %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout creates a retryable TIMEOUT error.
func Timeout(err error) *Error {
	return &Error{
		Kind:      KindTimeout,
		Retryable: true,
		Message:   "request timed out",
		Err:       err,
	}
}

// SchemaViolation creates a retryable SCHEMA_VIOLATION error.
func SchemaViolation(message string, violations []FieldViolation, err error) *Error {
	return &Error{
		Kind:       KindSchemaViolation,
		Retryable:  true,
		Message:    message,
		Violations: violations,
		Err:        err,
	}
}

// ContentFiltered creates a non-retryable CONTENT_FILTERED error.
func ContentFiltered(message string) *Error {
	return &Error{
		Kind:    KindContentFiltered,
		Message: message,
	}
}

// ContextOverflow creates a non-retryable CONTEXT_OVERFLOW error.
func ContextOverflow(statusCode int, message string) *Error {
	return &Error{
		Kind:       KindContextOverflow,
		StatusCode: statusCode,
		Message:    message,
	}
}

// APIError creates an API_ERROR for an upstream HTTP failure. It is
// retryable only for 5xx responses.
func APIError(statusCode int, message string) *Error {
	return &Error{
		Kind:       KindAPIError,
		Retryable:  statusCode >= 500,
		StatusCode: statusCode,
		Message:    message,
	}
}

// TransportError creates a retryable API_ERROR for a failure that happened
// before or while reading a response, such as a dropped connection or a
// truncated stream.
func TransportError(message string, err error) *Error {
	return &Error{
		Kind:      KindAPIError,
		Retryable: true,
		Message:   message,
		Err:       err,
	}
}

// ErrStreamTruncated is wrapped when a stream ends without its [DONE] marker.
var ErrStreamTruncated = errors.New("stream ended without completion marker")

// ErrNotConfigured indicates the provider has no credentials.
var ErrNotConfigured = errors.New("ai provider is not configured")

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable returns true if the error is a classified failure marked
// retryable.
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Retryable
}

// KindOf returns the kind of a classified error, or API_ERROR for anything else.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindAPIError
}

// ClassifyTransport converts an error returned by an HTTP round trip or a
// stream read into a classified error. Deadline expiry becomes TIMEOUT.
// Caller cancellation is returned unchanged so the retry loop can stop.
func ClassifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return Timeout(err)
	}
	return TransportError("transport failure", err)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// ClassifyStatus maps an upstream HTTP status and error body message to a
// classified error.
func ClassifyStatus(statusCode int, code, message string) *Error {
	lower := strings.ToLower(code + " " + message)

	switch {
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		e := Timeout(nil)
		e.StatusCode = statusCode
		return e
	case statusCode == http.StatusRequestEntityTooLarge,
		strings.Contains(lower, "context_length_exceeded"),
		strings.Contains(lower, "maximum context length"),
		strings.Contains(lower, "prompt is too long"):
		return ContextOverflow(statusCode, "request exceeds the model context window")
	case strings.Contains(lower, "content_filter"),
		strings.Contains(lower, "content_policy"),
		strings.Contains(lower, "content management policy"):
		e := ContentFiltered("content was filtered by the provider")
		e.StatusCode = statusCode
		return e
	}

	if message == "" {
		message = http.StatusText(statusCode)
	}
	return APIError(statusCode, message)
}

// UserMessage returns a message suitable for showing to an end user. It
// never includes upstream bodies.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindContentFiltered:
		return "The request was blocked by the content filter. Please rephrase and try again."
	case KindContextOverflow:
		return "The request is too large. Please shorten the input and try again."
	case KindTimeout:
		return "The content service took too long to respond. Please try again."
	case KindSchemaViolation:
		return "The generated content could not be read. Please try again."
	default:
		return "The content service is having trouble right now. Please try again."
	}
}
