package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthenticated indicates that the request carries no caller identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates that the caller lacks the required authority.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState indicates the workflow is not at the stage an
	// operation requires. Never auto-corrected; the caller must advance or
	// reset the workflow through the proper path.
	ErrInvalidState = errors.New("invalid workflow state")

	// ErrInternalError indicates an internal server error.
	ErrInternalError = errors.New("internal error")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AlreadyExistsError provides details about a duplicate entity.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// InvalidStateError names the exact stage an operation requires, so the
// client error can state what the workflow must be at rather than a vague
// refusal.
type InvalidStateError struct {
	Operation     string
	CurrentStage  WorkflowStage
	RequiredStage WorkflowStage
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s requires workflow stage %q, current stage is %q",
		e.Operation, e.RequiredStage, e.CurrentStage)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewInvalidStateError creates a new InvalidStateError.
func NewInvalidStateError(operation string, current, required WorkflowStage) *InvalidStateError {
	return &InvalidStateError{
		Operation:     operation,
		CurrentStage:  current,
		RequiredStage: required,
	}
}
