package common

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the store, the scheduler, and the HTTP
// layer. Handlers map these onto response status codes.
var (
	ErrNotFound           = errors.New("job not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotReady           = errors.New("result not ready")
	ErrSchedulerSaturated = errors.New("scheduler saturated")
	ErrTerminalRecord     = errors.New("job already terminal")
	ErrValidation         = errors.New("validation failed")
)

// AppError carries a stable machine-readable code alongside the
// human-readable message and the underlying cause.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WrapError annotates err with context, keeping the cause visible to
// errors.Is and errors.As.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
