package utils

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError represents structurally invalid input that cannot be safely defaulted.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
//
// Parameters:
//   - message: The validation error message.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
//
// Parameters:
//   - format: The format string.
//   - args: Arguments for the format string.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// NewFieldValidationError creates a ValidationError bound to a named input field.
//
// Parameters:
//   - field: The offending input field.
//   - message: What is wrong with it.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewFieldValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError reports whether err, or anything it wraps, is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Warning kinds carried by StaleDataWarning.
const (
	WarningMissingInput = "missing_input"
	WarningClampedInput = "clamped_input"
	WarningNearExpiry   = "near_expiry"
	WarningUnknownInput = "unknown_input"
)

// StaleDataWarning flags a non-fatal condition such as partial inputs or a cache
// entry served close to its expiry. It never blocks a computation.
type StaleDataWarning struct {
	Kind     string    `json:"kind"`
	Subject  string    `json:"subject"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
}

// NewStaleDataWarning creates a warning stamped with the current time.
func NewStaleDataWarning(kind, subject, message string) StaleDataWarning {
	return StaleDataWarning{
		Kind:     kind,
		Subject:  subject,
		Message:  message,
		RaisedAt: time.Now(),
	}
}

// String renders the warning for log lines.
func (w StaleDataWarning) String() string {
	return fmt.Sprintf("%s[%s]: %s", w.Kind, w.Subject, w.Message)
}
