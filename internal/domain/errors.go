package domain

import (
	"errors"
	"fmt"
)

// Application error codes. Each maps to one HTTP status in the handler layer.
const (
	EINVALID      = "invalid"      // Malformed request or content
	EUNAUTHORIZED = "unauthorized" // Missing or rejected bearer token
	EPAYMENT      = "payment"      // Tier quota exhausted
	EFORBIDDEN    = "forbidden"    // Feature not in the user's tier
	ENOTFOUND     = "not_found"    // Unknown route or object
	ETOOLARGE     = "too_large"    // Upload above the tier's size cap
	ERATELIMIT    = "rate_limit"   // Per-user request rate exceeded
	EINTERNAL     = "internal"     // Bug or storage fault
	EUPSTREAM     = "upstream"     // LLM endpoint failed after retries
	EUNAVAILABLE  = "unavailable"  // LLM, renderer or ledger not usable right now
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "generation.generate")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		// For internal errors, return generic message
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// TooLarge creates a request entity too large error.
func TooLarge(op, message string) *Error {
	return &Error{
		Code:    ETOOLARGE,
		Op:      op,
		Message: message,
	}
}

// Unavailable creates an error for a dependency that is not configured or
// not reachable right now.
func Unavailable(err error, op, message string) *Error {
	return &Error{
		Code:    EUNAVAILABLE,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Upstream creates an error for a failed call to an upstream service.
func Upstream(err error, op, message string) *Error {
	return &Error{
		Code:    EUPSTREAM,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents field-level validation errors.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{
		Op: op,
		Fields: map[string]string{
			field: message,
		},
	}
}

// Add records another field error and returns e for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
	return e
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}
