package utils

import (
	"errors"
	"fmt"
)

// ErrValidation marks records rejected at the normalization boundary. They
// never reach storage.
var ErrValidation = errors.New("validation failed")

// ErrBackendUnavailable marks storage calls that failed; callers degrade
// (skip a cycle, log at warning) rather than crash.
var ErrBackendUnavailable = errors.New("backend unavailable")

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// ValidationError builds a field-level rejection carrying ErrValidation.
func ValidationError(field, msg string) error {
	return fmt.Errorf("%s: %s: %w", field, msg, ErrValidation)
}

// IsValidation reports whether err belongs to the validation taxonomy.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
