package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes carried by AppError.Code.
const (
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeProfileInactive        = "PROFILE_INACTIVE"
	CodeProfileNotFound        = "PROFILE_NOT_FOUND"
	CodeExtractionFailed       = "EXTRACTION_FAILED"
	CodeTenantContextNotSet    = "TENANT_CONTEXT_NOT_SET"
	CodePersistenceFailed      = "PERSISTENCE_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeAlreadyReviewed        = "ALREADY_REVIEWED"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeConfig                 = "CONFIG_ERROR"
	CodeInternal               = "INTERNAL"
)

// Common application errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInternal      = errors.New("internal error")
	ErrDatabase      = errors.New("database error")
	ErrValidation    = errors.New("validation failed")
	ErrTenantContext = errors.New("tenant context not established")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the outermost AppError in err's chain, or "" if none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// AsPersistence wraps err as PERSISTENCE_FAILED unless it already carries a code.
func AsPersistence(err error, message string) error {
	if err == nil {
		return nil
	}
	if CodeOf(err) != "" {
		return err
	}
	return NewAppError(CodePersistenceFailed, message, err)
}

// ValidationFailed is shorthand for a VALIDATION_FAILED error without a cause.
func ValidationFailed(format string, args ...any) *AppError {
	return NewAppError(CodeValidationFailed, fmt.Sprintf(format, args...), ErrValidation)
}
