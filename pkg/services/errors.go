// Package services implements the flujo lifecycle and the step completion protocol.
package services

import (
	"errors"
	"fmt"
)

// Error classes. Every ServiceError wraps exactly one of them.
var (
	// ErrNotFound means the referenced flujo or step record is absent (404).
	ErrNotFound = errors.New("not found")
	// ErrConflict means the flujo's status or required steps forbid the operation (409).
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized means a missing, invalid or mismatched token, or a wrong passcode (401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidRequest means malformed input (400).
	ErrInvalidRequest = errors.New("invalid request")
)

// Error codes carried by ServiceError.Code.
const (
	CodeFlujoNotFound       = "FLUJO_NOT_FOUND"
	CodeStepNotFound        = "STEP_NOT_FOUND"
	CodeStepNotRequired     = "STEP_NOT_REQUIRED"
	CodeStepAlreadyExists   = "STEP_ALREADY_EXISTS"
	CodeFlujoNotStarted     = "FLUJO_NOT_STARTED"
	CodeFlujoClosed         = "FLUJO_CLOSED"
	CodeDeadlinePassed      = "DEADLINE_PASSED"
	CodeFaceIDNotUploaded   = "FACE_ID_NOT_UPLOADED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeTokenMismatch       = "TOKEN_MISMATCH"
	CodeWrongPasscode       = "WRONG_PASSCODE"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeInvalidCompletion   = "INVALID_COMPLETION_TIME"
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeEmptyFile           = "EMPTY_FILE"
	CodeUnsupportedStepKind = "UNSUPPORTED_STEP_KIND"
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsNotFound checks if an error should return HTTP 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsUnauthorized checks if an error should return HTTP 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// ErrorCode returns the code of the ServiceError in err's chain, or "".
func ErrorCode(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code
	}

	return ""
}

func newNotFoundError(op, code, message string) *ServiceError {
	return &ServiceError{Op: op, Code: code, Message: message, Err: ErrNotFound}
}

func newConflictError(op, code, message string) *ServiceError {
	return &ServiceError{Op: op, Code: code, Message: message, Err: ErrConflict}
}

func newUnauthorizedError(op, code, message string) *ServiceError {
	return &ServiceError{Op: op, Code: code, Message: message, Err: ErrUnauthorized}
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string) *ServiceError {
	return &ServiceError{Op: op, Code: code, Message: message, Err: ErrInvalidRequest}
}
