// Package apperr provides a structured application error type shared across
// the pipeline stages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. Status mirrors an HTTP status for classification purposes
// even though this core exposes no HTTP surface of its own.
const (
	CodeConfigurationMissing = "CONFIGURATION_MISSING"
	CodeAuthorizationRevoked = "AUTHORIZATION_REVOKED"
	CodeTransientUpstream    = "TRANSIENT_UPSTREAM"
	CodeQuotaExceeded        = "QUOTA_EXCEEDED"
	CodeCircuitOpen          = "CIRCUIT_OPEN"
	CodeIntegrityViolation   = "INTEGRITY_VIOLATION"
	CodeUnclassified         = "UNCLASSIFIED"

	CodeNotFound      = "NOT_FOUND"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeExternalError = "EXTERNAL_ERROR"
	CodeInternalError = "INTERNAL_ERROR"
)

// AppError represents a structured application error.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func New(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// ConfigurationMissing is fatal at startup: a required credential or key is absent.
func ConfigurationMissing(what string) *AppError {
	return &AppError{
		Code:    CodeConfigurationMissing,
		Message: fmt.Sprintf("missing required configuration: %s", what),
		Status:  http.StatusInternalServerError,
	}
}

// AuthorizationRevoked marks a user as needing re-authorization; not retried automatically.
func AuthorizationRevoked(userID string, err error) *AppError {
	return &AppError{
		Code:    CodeAuthorizationRevoked,
		Message: fmt.Sprintf("authorization revoked for user %s", userID),
		Status:  http.StatusUnauthorized,
		Details: map[string]any{"user_id": userID},
		Err:     err,
	}
}

// TransientUpstream indicates a retryable upstream failure (network, 5xx, 429).
func TransientUpstream(service string, err error) *AppError {
	return &AppError{
		Code:    CodeTransientUpstream,
		Message: fmt.Sprintf("transient upstream failure: %s", service),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

// QuotaExceeded means the daily unit budget is exhausted; no further retries this window.
func QuotaExceeded(service string) *AppError {
	return &AppError{
		Code:    CodeQuotaExceeded,
		Message: fmt.Sprintf("quota exceeded: %s", service),
		Status:  http.StatusTooManyRequests,
		Details: map[string]any{"service": service},
	}
}

// CircuitOpen is returned when a breaker fast-fails a call.
func CircuitOpen(name string) *AppError {
	return &AppError{
		Code:    CodeCircuitOpen,
		Message: fmt.Sprintf("circuit open: %s", name),
		Status:  http.StatusServiceUnavailable,
		Details: map[string]any{"breaker": name},
	}
}

// IntegrityViolation wraps a unique-constraint hit, proof of idempotent redelivery.
func IntegrityViolation(constraint string, err error) *AppError {
	return &AppError{
		Code:    CodeIntegrityViolation,
		Message: fmt.Sprintf("integrity violation: %s", constraint),
		Status:  http.StatusConflict,
		Details: map[string]any{"constraint": constraint},
		Err:     err,
	}
}

// Unclassified is logged with stack context and surfaced as a failed job.
func Unclassified(err error) *AppError {
	return &AppError{
		Code:    CodeUnclassified,
		Message: "unclassified failure",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s not found", resource), Status: http.StatusNotFound}
}

func InvalidInput(field, reason string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("invalid input for '%s': %s", field, reason),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

func DatabaseError(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeDatabaseError,
		Message: fmt.Sprintf("database error: %s", operation),
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func ExternalError(service string, err error) *AppError {
	return &AppError{
		Code:    CodeExternalError,
		Message: fmt.Sprintf("external service error: %s", service),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

func Internal(message string) *AppError {
	if message == "" {
		message = "internal error"
	}
	return &AppError{Code: CodeInternalError, Message: message, Status: http.StatusInternalServerError}
}

func InternalWithError(err error) *AppError {
	return &AppError{Code: CodeInternalError, Message: "internal error", Status: http.StatusInternalServerError, Err: err}
}

// IsAppError reports whether err is (or wraps) an *AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts err to *AppError, wrapping unclassified errors.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Unclassified(err)
}

// Code extracts the error code from err, or CodeUnclassified if err isn't an AppError.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnclassified
}
