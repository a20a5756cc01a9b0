package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific error type returned by the HTTP API.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodePolicyViolation indicates a span outside working hours.
	ErrCodePolicyViolation ErrorCode = "POLICY_VIOLATION"
	// ErrCodeConflict indicates a span overlapping an existing event.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeNotFound indicates no event matched.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeStoreUnavailable indicates the event store could not be read or written.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeInternal indicates an unexpected server error.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

var httpStatus = map[ErrorCode]int{
	ErrCodeInvalidArgument:   http.StatusBadRequest,
	ErrCodePolicyViolation:   http.StatusUnprocessableEntity,
	ErrCodeConflict:          http.StatusConflict,
	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodeStoreUnavailable:  http.StatusServiceUnavailable,
	ErrCodeRateLimitExceeded: http.StatusTooManyRequests,
	ErrCodeInternal:          http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status for the code, 500 for unknown codes.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := httpStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// APIError represents a structured error for API operations.
type APIError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *APIError) WithContext(key string, value any) *APIError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *APIError) GetCode() ErrorCode {
	return e.Code
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *APIError {
	return &APIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// InvalidArgumentf creates an invalid argument error with a formatted message.
func InvalidArgumentf(format string, args ...any) *APIError {
	return &APIError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// PolicyViolation creates a policy violation error.
func PolicyViolation(msg string) *APIError {
	return &APIError{Code: ErrCodePolicyViolation, Message: msg}
}

// Conflict creates a conflict error.
func Conflict(msg string) *APIError {
	return &APIError{Code: ErrCodeConflict, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *APIError {
	return &APIError{Code: ErrCodeNotFound, Message: msg}
}

// StoreUnavailable creates a store unavailable error.
func StoreUnavailable(cause error) *APIError {
	return &APIError{Code: ErrCodeStoreUnavailable, Message: "event store unavailable", Cause: cause}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *APIError {
	return &APIError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *APIError {
	return &APIError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an APIError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return defaultCode
}
