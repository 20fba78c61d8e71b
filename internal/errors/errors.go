// Package errors provides error code definitions shared across the client core.
package errors

import "fmt"

// ErrorCode represents a unique error code surfaced to the UI layer.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Persistence errors
	ErrStore      ErrorCode = "STORE_ERROR"
	ErrStoreWrite ErrorCode = "STORE_WRITE_FAILED"
	ErrCorrupted  ErrorCode = "STORE_CORRUPTED"

	// Queue errors
	ErrQueueAppend    ErrorCode = "QUEUE_APPEND_FAILED"
	ErrQueueDraining  ErrorCode = "QUEUE_DRAIN_IN_PROGRESS"
	ErrQueueCorrupted ErrorCode = "QUEUE_CORRUPTED"

	// Cache errors
	ErrCacheRead  ErrorCode = "CACHE_READ_FAILED"
	ErrCacheWrite ErrorCode = "CACHE_WRITE_FAILED"

	// Network and remote API errors
	ErrOffline      ErrorCode = "NETWORK_OFFLINE"
	ErrAPITransient ErrorCode = "API_TRANSIENT"
	ErrAPITerminal  ErrorCode = "API_TERMINAL"
	ErrAPIAuth      ErrorCode = "API_AUTH_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}
