package common

import (
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithDetails attaches structured details rendered alongside the error payload.
func (e *AppError) WithDetails(details any) *AppError {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Validation reports a missing or malformed field. No remote call should have been made.
func Validation(message string) *AppError {
	return NewAppError("VALIDATION_ERROR", message, http.StatusBadRequest, nil)
}

// Unauthorized reports a missing or expired session.
func Unauthorized() *AppError {
	return NewAppError("UNAUTHORIZED", "please log in", http.StatusUnauthorized, nil)
}

// NotFound reports a missing resource owned by the caller.
func NotFound(what string) *AppError {
	return NewAppError("NOT_FOUND", what+" not found", http.StatusNotFound, nil)
}

// Unavailable reports an ineligible operation with a specific, user-facing reason.
func Unavailable(code, reason string, err error) *AppError {
	return NewAppError(code, reason, http.StatusConflict, err)
}

// Upstream reports a backend or network failure. The message stays generic.
func Upstream(err error) *AppError {
	return NewAppError("UPSTREAM_ERROR", "something went wrong, please try again", http.StatusBadGateway, err)
}

// PayloadTooLarge reports a request body over the configured cap.
func PayloadTooLarge(limit int64) *AppError {
	return NewAppError("PAYLOAD_TOO_LARGE", "request body too large", http.StatusRequestEntityTooLarge, nil).
		WithDetails(map[string]any{"limit_bytes": limit})
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// AsAppError extracts the AppError from err, if any.
func AsAppError(err error) (*AppError, bool) {
	var target *AppError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
