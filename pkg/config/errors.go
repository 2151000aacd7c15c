package config

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRequiredField indicates a required environment variable was not set.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidValue indicates an environment variable held a value outside
	// its accepted range or enum.
	ErrInvalidValue = errors.New("invalid field value")
)

// ValidationError wraps a single configuration field failure with enough
// context to point an operator at the offending environment variable.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: field %q: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}
