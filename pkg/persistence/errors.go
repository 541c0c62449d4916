package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlujoNotFound indicates a flujo was not found by the given identifier.
	ErrFlujoNotFound = errors.New("flujo not found")

	// ErrStepNotFound indicates no step record exists for the given flujo.
	ErrStepNotFound = errors.New("step not found")

	// ErrStepAlreadyExists indicates a different record of the same kind is already stored for the flujo.
	ErrStepAlreadyExists = errors.New("step already exists")
)

// FlujoError wraps flujo-related errors with additional context.
type FlujoError struct {
	Op      string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	FlujoID string
	Err     error
}

func (e *FlujoError) Error() string {
	return fmt.Sprintf("%s operation failed for flujo %s: %v", e.Op, e.FlujoID, e.Err)
}

func (e *FlujoError) Unwrap() error {
	return e.Err
}

// NewFlujoError creates a new flujo error with context.
func NewFlujoError(op, flujoID string, err error) *FlujoError {
	return &FlujoError{
		Op:      op,
		FlujoID: flujoID,
		Err:     err,
	}
}

// StepError wraps step record errors with the step kind and owning flujo.
type StepError struct {
	Op      string
	Kind    string
	FlujoID string
	Err     error
}

func (e *StepError) Error() string {
	if e.FlujoID == "" {
		return fmt.Sprintf("%s operation failed for %s step: %v", e.Op, e.Kind, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s step of flujo %s: %v", e.Op, e.Kind, e.FlujoID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError creates a new step error with context.
func NewStepError(op, kind, flujoID string, err error) *StepError {
	return &StepError{
		Op:      op,
		Kind:    kind,
		FlujoID: flujoID,
		Err:     err,
	}
}

// IsFlujoNotFound checks if an error indicates a flujo was not found.
func IsFlujoNotFound(err error) bool {
	return errors.Is(err, ErrFlujoNotFound)
}

// IsStepNotFound checks if an error indicates a step record was not found.
func IsStepNotFound(err error) bool {
	return errors.Is(err, ErrStepNotFound)
}

// IsStepAlreadyExists checks if an error reports a second record of one kind for a flujo.
func IsStepAlreadyExists(err error) bool {
	return errors.Is(err, ErrStepAlreadyExists)
}
