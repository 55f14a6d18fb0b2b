package domain

import "errors"

var ErrInvalidInput = errors.New("invalid input")

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError returns an error matching ErrInvalidInput.
func NewValidationError(msg string) error {
	return &ValidationError{msg: msg}
}

func validationError(msg string) error {
	return NewValidationError(msg)
}
