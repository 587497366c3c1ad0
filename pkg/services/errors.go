// Package services implements the operations behind the HTTP API.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidTrigger  = errors.New("invalid trigger")
	ErrInvalidReport   = errors.New("invalid run report")
	ErrNotURLTrigger   = errors.New("trigger is not a URL trigger of this kind")
	ErrTriggerRequired = errors.New("trigger id is required")

	// Business Logic Conflicts (409 Conflict).
	ErrRunNotRunning = errors.New("run is not running")
	ErrRunFinished   = errors.New("run is already finished")
	ErrRunChanged    = errors.New("run changed while it was being updated")
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

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidTrigger) ||
		errors.Is(err, ErrInvalidReport) ||
		errors.Is(err, ErrNotURLTrigger) ||
		errors.Is(err, ErrTriggerRequired)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrRunNotRunning) ||
		errors.Is(err, ErrRunFinished) ||
		errors.Is(err, ErrRunChanged)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
