package common

import (
	"errors"
	"fmt"
)

var (

	// store specific errors
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// access errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// input errors
	ErrValidation = errors.New("validation error")

	// plan lifecycle errors; all of them are conflicts from the caller's point of view
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrConflict)
	ErrPhaseClosed       = fmt.Errorf("%w: plan phase does not allow this action", ErrConflict)
	ErrAlreadyInvited    = fmt.Errorf("%w: already invited", ErrConflict)
	ErrAlreadyResolved   = fmt.Errorf("%w: invitation already resolved", ErrConflict)
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a *ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
