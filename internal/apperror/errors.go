// Package apperror defines the error kinds shared by the services and the HTTP layer.
package apperror

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrDuplicateUser        = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrAuthenticationFailed = errors.New("invalid credentials")
	ErrTodoNotFound         = errors.New("todo not found")
	ErrUnauthorizedAccess   = errors.New("you are not allowed to access this todo")
	ErrValidationFailed     = errors.New("validation failed")
)

// ValidationError carries per-field messages and matches ErrValidationFailed.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidationFailed.Error()
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// detailedError keeps the error kind while replacing the user-facing message.
type detailedError struct {
	kind error
	msg  string
}

func (e *detailedError) Error() string { return e.msg }
func (e *detailedError) Unwrap() error { return e.kind }

// WithMessage returns an error that matches kind but reports msg.
func WithMessage(kind error, msg string) error {
	return &detailedError{kind: kind, msg: msg}
}

// StatusCode maps an error kind to the HTTP status the API returns for it.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorizedAccess):
		return http.StatusForbidden
	case errors.Is(err, ErrTodoNotFound), errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateUser):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show to API clients.
func Message(err error) string {
	if StatusCode(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

// IsDomain reports whether err is one of the known error kinds.
func IsDomain(err error) bool {
	return err != nil && StatusCode(err) != http.StatusInternalServerError
}
