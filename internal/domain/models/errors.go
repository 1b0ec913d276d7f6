package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches every *ValidationError via errors.Is.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned by lookups that have nothing to return.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports the first invariant a value failed.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets callers test with errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// AsValidationError unwraps err into a *ValidationError if it carries one.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
