package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrDuplicateIdentifier means a registration code is already held by a
	// member or a user.
	ErrDuplicateIdentifier = errors.New("registration code already in use")

	// ErrAllocationExhausted means no free registration code was found within
	// the attempt bound. Retrying the whole request is safe.
	ErrAllocationExhausted = errors.New("registration code allocation exhausted")

	ErrNotFound = errors.New("record not found")

	ErrDuplicateEmail = errors.New("email already registered")

	// ErrStorageConflict is returned by stores when their own uniqueness
	// constraint rejects a write. Services translate it to ErrDuplicateIdentifier.
	ErrStorageConflict = errors.New("storage uniqueness conflict")
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
