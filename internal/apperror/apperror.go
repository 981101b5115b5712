// Package apperror defines the error kinds shared by the service and handler layers.
//
// Every domain failure wraps one of the sentinel kinds below. Handlers use
// errors.Is on the kind to pick an HTTP status and errors.As on *AppError to
// get the client-facing message, so the service layer never knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

// Error kinds. Each maps to exactly one HTTP status in handler.writeError.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrDependency   = errors.New("dependency failure")
)

// AppError is a classified, client-safe error.
type AppError struct {
	Err     error  // kind sentinel, one of the Err* values above
	Code    string // stable machine-readable code, e.g. "duplicate_email"
	Message string // human-readable message sent to the client
	Field   string // optional: request field causing the error
	cause   error  // optional: underlying error, logged but never sent
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}

// Is matches two AppErrors with the same non-empty code, so package-level
// values like service.ErrDuplicateEmail can be compared after WithCause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// WithCause returns a copy of e carrying cause for logging.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.cause = cause
	return &cp
}

// New builds an AppError of the given kind.
func New(kind error, code, message string) *AppError {
	return &AppError{Err: kind, Code: code, Message: message}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    "not_found",
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    "validation_failed",
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, value string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    "conflict",
		Message: fmt.Sprintf("%s %q already exists", resource, value),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Code:    "forbidden",
		Message: message,
	}
}

// Unauthorized returns an AppError for bad credentials or a missing session.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Code:    "unauthorized",
		Message: message,
	}
}

// Dependency wraps a failure of the store, mailer or identity provider.
// The cause is kept for logs; the client only sees a generic message.
func Dependency(what string, cause error) *AppError {
	return &AppError{
		Err:     ErrDependency,
		Code:    "dependency_failure",
		Message: what + " unavailable",
		cause:   cause,
	}
}
