// Package errors defines the service error taxonomy shared by the HTTP layer.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

const (
	// Authentication errors (401)
	ErrCodeMissingCredential ErrorCode = "MISSING_CREDENTIAL"
	ErrCodeInvalidToken      ErrorCode = "INVALID_TOKEN"

	// Validation errors (400)
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeEmptyBatch      ErrorCode = "EMPTY_BATCH"
	ErrCodeJaggedMatrix    ErrorCode = "JAGGED_MATRIX"
	ErrCodeNoNumericValues ErrorCode = "NO_NUMERIC_VALUES"

	// Routing errors
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"

	// Server errors (500)
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is an error that knows how it should be rendered over HTTP.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with an extra detail attached.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value

	cp := *e
	cp.Details = details
	return &cp
}

// New creates a ServiceError.
func New(code ErrorCode, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap creates a ServiceError around an underlying cause.
func Wrap(code ErrorCode, message string, status int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// =============================================================================
// Authentication
// =============================================================================

// MissingCredential reports an absent bearer token or an unexpected scheme.
func MissingCredential(message string) *ServiceError {
	if message == "" {
		message = "missing or invalid Authorization"
	}
	return New(ErrCodeMissingCredential, message, http.StatusUnauthorized)
}

// InvalidToken reports a token that failed signature, structure or expiry checks.
func InvalidToken(err error) *ServiceError {
	return Wrap(ErrCodeInvalidToken, "invalid token", http.StatusUnauthorized, err)
}

// =============================================================================
// Validation
// =============================================================================

// BadRequest reports a generic client error.
func BadRequest(message string) *ServiceError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

// EmptyBatch reports a request that carried no matrices.
func EmptyBatch() *ServiceError {
	return New(ErrCodeEmptyBatch, "empty batch", http.StatusBadRequest)
}

// JaggedMatrix reports the first non-rectangular matrix found in a batch.
func JaggedMatrix(matrix, row, want, got int) *ServiceError {
	return New(ErrCodeJaggedMatrix, "jagged matrix", http.StatusBadRequest).
		WithDetails("matrix", matrix).
		WithDetails("row", row).
		WithDetails("expected_columns", want).
		WithDetails("actual_columns", got)
}

// NoNumericValues reports an aggregate that was poisoned by a non-numeric cell.
func NoNumericValues() *ServiceError {
	return New(ErrCodeNoNumericValues, "no numeric values", http.StatusBadRequest)
}

// =============================================================================
// Routing / Server
// =============================================================================

// NotFound reports an unknown route.
func NotFound() *ServiceError {
	return New(ErrCodeNotFound, "not found", http.StatusNotFound)
}

// MethodNotAllowed reports a known route hit with the wrong method.
func MethodNotAllowed() *ServiceError {
	return New(ErrCodeMethodNotAllowed, "method not allowed", http.StatusMethodNotAllowed)
}

// Internal reports an unanticipated fault. The message is shown to clients,
// the cause is only logged.
func Internal(message string, err error) *ServiceError {
	if message == "" {
		message = "internal server error"
	}
	return Wrap(ErrCodeInternal, message, http.StatusInternalServerError, err)
}

// =============================================================================
// Helpers
// =============================================================================

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}

// IsValidationError reports whether err should be answered with 400.
func IsValidationError(err error) bool {
	se := GetServiceError(err)
	return se != nil && se.HTTPStatus == http.StatusBadRequest
}
