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

// Error codes stored with failures.
const (
	CodeConfig       = "CONFIG_ERROR"
	CodeTransport    = "TRANSPORT_ERROR"
	CodeMalformed    = "MALFORMED_OUTPUT"
	CodeValidation   = "VALIDATION_ERROR"
	CodeAggregate    = "AGGREGATE_FAILURE"
	CodePrecondition = "PRECONDITION_FAILED"
	CodeDatabase     = "DATABASE_ERROR"
)

// Common application errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrDatabase        = errors.New("database error")
	ErrValidation      = errors.New("validation failed")
	ErrPrecondition    = errors.New("precondition failed")
	ErrProviderConfig  = errors.New("provider not configured")
	ErrTransport       = errors.New("provider transport failure")
	ErrMalformedOutput = errors.New("malformed provider output")
	ErrAllProviders    = errors.New("all providers failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func PreconditionError(format string, args ...any) *AppError {
	return NewAppError(CodePrecondition, fmt.Sprintf(format, args...), ErrPrecondition)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf returns the AppError code found in err's chain, or "".
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
