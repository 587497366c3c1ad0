package persistence

import (
	"errors"
	"fmt"

	"github.com/zachsents/minus-sub000/pkg/models"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrTriggerNotFound indicates a trigger was not found by the given identifier.
	ErrTriggerNotFound = errors.New("trigger not found")

	// ErrRunNotFound indicates a workflow run was not found by the given identifier.
	ErrRunNotFound = errors.New("workflow run not found")

	// ErrRunAlreadyExists indicates a workflow run with the same identifier already exists.
	ErrRunAlreadyExists = errors.New("workflow run already exists")

	// ErrStatusConflict indicates a guarded transition found the run in another status.
	ErrStatusConflict = errors.New("workflow run status changed concurrently")

	ErrWorkflowNotFound     = errors.New("workflow not found")
	ErrOrganizationNotFound = errors.New("organization not found")
)

// RunError wraps workflow run errors with additional context.
type RunError struct {
	Op       string           // Operation being performed (e.g., "RunByID", "TransitionRun")
	RunID    string           // Run ID if applicable
	Expected models.RunStatus // Status the caller expected, for conflicts
	Actual   models.RunStatus // Status found in the store, for conflicts
	Err      error            // Underlying error
}

func (e *RunError) Error() string {
	if errors.Is(e.Err, ErrStatusConflict) {
		return fmt.Sprintf("%s operation failed for run %s: expected status %s, found %s: %v", e.Op, e.RunID, e.Expected, e.Actual, e.Err)
	}

	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for run errors.
func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewRunError(op, runID string, err error) *RunError {
	return &RunError{
		Op:    op,
		RunID: runID,
		Err:   err,
	}
}

// NewStatusConflict reports a guarded transition that found the run in another status.
func NewStatusConflict(op, runID string, expected, actual models.RunStatus) *RunError {
	return &RunError{
		Op:       op,
		RunID:    runID,
		Expected: expected,
		Actual:   actual,
		Err:      ErrStatusConflict,
	}
}

// TriggerError wraps trigger errors with additional context.
type TriggerError struct {
	Op        string
	TriggerID string
	Err       error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("%s operation failed for trigger %s: %v", e.Op, e.TriggerID, e.Err)
}

func (e *TriggerError) Unwrap() error {
	return e.Err
}

func (e *TriggerError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewTriggerError(op, triggerID string, err error) *TriggerError {
	return &TriggerError{
		Op:        op,
		TriggerID: triggerID,
		Err:       err,
	}
}

// IsTriggerNotFound checks if an error indicates a trigger was not found.
func IsTriggerNotFound(err error) bool {
	return errors.Is(err, ErrTriggerNotFound)
}

// IsRunNotFound checks if an error indicates a workflow run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsRunAlreadyExists checks if an error indicates a duplicate workflow run.
func IsRunAlreadyExists(err error) bool {
	return errors.Is(err, ErrRunAlreadyExists)
}

// IsStatusConflict checks if an error indicates a lost transition race.
func IsStatusConflict(err error) bool {
	return errors.Is(err, ErrStatusConflict)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsOrganizationNotFound checks if an error indicates an organization was not found.
func IsOrganizationNotFound(err error) bool {
	return errors.Is(err, ErrOrganizationNotFound)
}
