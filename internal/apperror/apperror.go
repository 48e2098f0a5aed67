// Package apperror provides the closed set of error kinds returned by the
// shift and reporting operations. Callers switch on Kind, never on message text.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError.
type Kind string

const (
	KindValidation   Kind = "VALIDATION_ERROR"
	KindConflict     Kind = "CONFLICT"
	KindInvalidState Kind = "INVALID_STATE"
	KindNotFound     Kind = "NOT_FOUND"
	KindInternal     Kind = "INTERNAL_ERROR"
	KindTimeout      Kind = "TIMEOUT_ERROR"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
)

// AppError is the standard error type for the station backend.
type AppError struct {
	// Code is a machine-readable error identifier
	Code Kind `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (shortfall, entity ids, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func NewValidation(message string) *AppError {
	return &AppError{Code: KindValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

func NewValidationf(format string, args ...any) *AppError {
	return NewValidation(fmt.Sprintf(format, args...))
}

func NewConflict(message string) *AppError {
	return &AppError{Code: KindConflict, Message: message, HTTPStatus: http.StatusConflict}
}

// NewInvalidState is returned for operations attempted against a record whose
// lifecycle no longer allows them, e.g. a closed shift.
func NewInvalidState(message string) *AppError {
	return &AppError{Code: KindInvalidState, Message: message, HTTPStatus: http.StatusBadRequest}
}

func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       KindNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error. The message is generic, the
// cause is kept for logging.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       KindInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewTimeout(operation string, err error) *AppError {
	return &AppError{
		Code:       KindTimeout,
		Message:    fmt.Sprintf("%s timed out", operation),
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

func NewUnauthorized(message string) *AppError {
	return &AppError{Code: KindUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

func NewForbidden(message string) *AppError {
	return &AppError{Code: KindForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

// AsAppError extracts an AppError from the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf reports the kind of err. Deadline errors classify as timeouts and
// anything unrecognised as internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// Wrap converts any error into an AppError, keeping existing ones untouched.
func Wrap(operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsAppError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(operation, err)
	}
	return NewInternal(fmt.Errorf("%s: %w", operation, err))
}

func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsInvalidState(err error) bool { return KindOf(err) == KindInvalidState }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsTimeout(err error) bool      { return KindOf(err) == KindTimeout }
