package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidFormat indicates a raw value could not be parsed into its canonical form.
var ErrInvalidFormat = errors.New("invalid format")

// ValidationError reports a malformed field on a command, value object, or entity.
// It is always raised before any state mutation takes place.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// NewValidationError constructs a ValidationError for the supplied field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
