package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an error for callers and the HTTP boundary.
type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeValidation        ErrorCode = "VALIDATION"
	ErrCodeStorage           ErrorCode = "STORAGE"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal          ErrorCode = "INTERNAL"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// InvalidTransition reports a role/state precondition failure. The message
// carries the current status and what the operation required, so the caller
// can see why the transition was refused.
func InvalidTransition(current, required string) *Error {
	return &Error{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("invalid transition: current status is %q, %s", current, required),
	}
}

// InvalidInput reports a validation failure on a named field.
func InvalidInput(field, message string) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("%s: %s", field, message),
	}
}

// Storage wraps a database/transaction failure. Surfaced generically; the
// full cause stays available for logging via Unwrap.
func Storage(err error, message string) *Error {
	return &Error{Code: ErrCodeStorage, Message: message, Err: err}
}

// Code extracts the ErrorCode from err, or ErrCodeInternal for uncoded errors.
func Code(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsNotFound reports whether err carries ErrCodeNotFound.
func IsNotFound(err error) bool { return Code(err) == ErrCodeNotFound }

// IsInvalidTransition reports whether err carries ErrCodeInvalidTransition.
func IsInvalidTransition(err error) bool { return Code(err) == ErrCodeInvalidTransition }

// HTTPStatus maps an error to the status code the HTTP boundary should return.
func HTTPStatus(err error) int {
	switch Code(err) {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidTransition:
		return http.StatusConflict
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the coded message without the wrapped cause, suitable for
// client responses. Storage and internal errors are reported generically.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case ErrCodeStorage, ErrCodeInternal:
			return "internal error"
		default:
			return e.Message
		}
	}
	return "internal error"
}
