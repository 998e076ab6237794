package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from an upstream service (AI backend, ledger node)
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeTimeout indicates an upstream call exceeded its deadline
	ErrorTypeTimeout ErrorType = "TIMEOUT"

	// ErrorTypeMalformedResponse indicates an upstream reply that could not be decoded
	ErrorTypeMalformedResponse ErrorType = "MALFORMED_RESPONSE"

	// ErrorTypeMethodNotAllowed indicates the route exists but not for this method
	ErrorTypeMethodNotAllowed ErrorType = "METHOD_NOT_ALLOWED"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeTimeout,
		Message: message,
		Err:     err,
	}
}

// NewMalformedResponseError creates a new malformed response error
func NewMalformedResponseError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeMalformedResponse,
		Message: message,
		Err:     err,
	}
}

// NewMethodNotAllowedError creates a new method not allowed error
func NewMethodNotAllowedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeMethodNotAllowed,
		Message: message,
	}
}

// FromUpstream classifies an error returned by a remote call. Deadline
// expiry becomes a timeout; everything else is an external failure.
// AppErrors pass through untouched.
func FromUpstream(message string, err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(message, err)
	}
	return NewExternalError(message, err)
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal when err is not an AppError.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Is reports whether err is an AppError of type t.
func Is(err error, t ErrorType) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Type == t
}

// As unwraps err into an AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}
