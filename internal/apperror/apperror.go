// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services return these errors; only the handler package translates them
// into HTTP status codes (see handler/response.go).
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrHighlight    = errors.New("highlight error")
)

type AppError struct {
	Err     error             // actual error
	Message string            // Human-readable error message
	Field   string            // Optional: field causing the error
	Fields  map[string]string // Optional: one message per offending field
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  map[string]string{field: message},
	}
}

// Invalid reports several field errors at once. The message lists the
// offending fields in a stable order.
func Invalid(fields map[string]string) *AppError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	e := &AppError{
		Err:     ErrValidation,
		Message: "invalid fields: " + strings.Join(names, ", "),
		Fields:  fields,
	}
	if len(names) == 1 {
		e.Field = names[0]
		e.Message = fields[names[0]]
	}
	return e
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized marks a failed login or a missing identity on a route that
// needs one.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// HighlightFailed wraps a renderer failure. Nothing is persisted when a
// save returns this error.
func HighlightFailed(cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrHighlight, cause),
		Message: "could not render highlighted snippet",
	}
}

// Malformed reports a request body that could not be decoded at all. It is
// a validation failure with no field attached.
func Malformed(message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
	}
}
