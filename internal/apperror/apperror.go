// Package apperror defines the error kinds surfaced by the service layer and
// their mapping onto HTTP responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError carries every violation found in a request.
type ValidationError struct {
	Message    string
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Violations, "; "))
}

// Validation builds a ValidationError. An empty message defaults to "Validation failed".
func Validation(message string, violations ...string) *ValidationError {
	if message == "" {
		message = "Validation failed"
	}
	return &ValidationError{Message: message, Violations: violations}
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports a uniqueness or state conflict.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// Conflict builds a ConflictError.
func Conflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// UnauthorizedError reports missing or rejected credentials.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string { return e.Message }

// Unauthorized builds an UnauthorizedError.
func Unauthorized(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

// InternalError wraps a store or transport failure. Its detail is never sent to clients.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Internal wraps err as an InternalError unless it already carries a known kind.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}

// Classified reports whether err is one of the kinds defined in this package.
func Classified(err error) bool {
	var v *ValidationError
	var n *NotFoundError
	var c *ConflictError
	var u *UnauthorizedError
	var i *InternalError
	return errors.As(err, &v) || errors.As(err, &n) || errors.As(err, &c) || errors.As(err, &u) || errors.As(err, &i)
}

// HTTPStatus maps an error onto its response code. Unknown errors are 500.
func HTTPStatus(err error) int {
	var v *ValidationError
	var n *NotFoundError
	var c *ConflictError
	var u *UnauthorizedError
	switch {
	case errors.As(err, &v):
		return http.StatusBadRequest
	case errors.As(err, &u):
		return http.StatusUnauthorized
	case errors.As(err, &n):
		return http.StatusNotFound
	case errors.As(err, &c):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-safe message for err.
func PublicMessage(err error) string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message
	}
	if HTTPStatus(err) >= http.StatusInternalServerError {
		return "An internal error occurred"
	}
	return err.Error()
}

// Violations returns the individual violations of a ValidationError, if any.
func Violations(err error) []string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Violations
	}
	return nil
}
