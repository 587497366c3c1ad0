// Package persistence provides the document store abstraction used by the run engine.
package persistence

import (
	"context"
	"time"

	"github.com/zachsents/minus-sub000/pkg/models"
)

type Persistence interface {
	Triggers() TriggerRepository
	WorkflowRuns() WorkflowRunRepository
	Workflows() WorkflowRepository
	Organizations() OrganizationRepository
	Users() UserRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// TriggerChange is the before/after pair of one trigger write. Before is nil on create,
// After is nil on delete.
type TriggerChange struct {
	Before *models.Trigger
	After  *models.Trigger
}

// RunChange is the before/after pair of one workflow run write. Before is nil on create.
type RunChange struct {
	Before *models.WorkflowRun
	After  *models.WorkflowRun
}

type TriggerRepository interface {
	TriggerByID(ctx context.Context, id string) (*models.Trigger, error)
	TriggersByWorkflow(ctx context.Context, workflowID string) ([]*models.Trigger, error)
	// SaveTrigger creates or replaces the trigger.
	SaveTrigger(ctx context.Context, trigger *models.Trigger) (*TriggerChange, error)
	DeleteTrigger(ctx context.Context, id string) (*TriggerChange, error)
}

// RunMutation edits a run inside a guarded transition. Returning an error aborts the write.
type RunMutation func(run *models.WorkflowRun) error

type WorkflowRunRepository interface {
	RunByID(ctx context.Context, id string) (*models.WorkflowRun, error)
	RunsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowRun, error)
	// RunsByStatus returns runs in any of the statuses last updated before the given instant.
	RunsByStatus(ctx context.Context, statuses []models.RunStatus, updatedBefore time.Time) ([]*models.WorkflowRun, error)

	// CreateRun inserts a new run. It fails with ErrRunAlreadyExists when the id is taken.
	CreateRun(ctx context.Context, run *models.WorkflowRun) (*RunChange, error)

	// TransitionRun applies mutate to the run only if its status still equals from, and
	// inserts successor (when not nil and not already present) in the same atomic write.
	// A status mismatch fails with ErrStatusConflict and writes nothing.
	TransitionRun(ctx context.Context, id string, from models.RunStatus, mutate RunMutation, successor *models.WorkflowRun) ([]RunChange, error)

	// CancelFutureRuns cancels, in one atomic batch, every unfinished run of the trigger
	// whose scheduledFor is after now, except the run with id except.
	CancelFutureRuns(ctx context.Context, triggerID, reason string, now time.Time, except string) ([]RunChange, error)
}

type WorkflowRepository interface {
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
}

type OrganizationRepository interface {
	OrganizationByID(ctx context.Context, id string) (*models.Organization, error)
	SaveOrganization(ctx context.Context, organization *models.Organization) error
}

type UserRepository interface {
	// UsersByIDs resolves ids in one lookup. Unknown ids are skipped.
	UsersByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
}

// CancelRun is the mutation shared by implementations of CancelFutureRuns.
func CancelRun(run *models.WorkflowRun, reason string, now time.Time) {
	run.Status = models.RunStatusCancelled
	run.CancelledAt = models.TimePtr(now)
	run.CancellationReason = reason
	run.UpdatedAt = now
}

// IsFutureRunOf reports whether run is an unfinished run of the trigger scheduled after now.
func IsFutureRunOf(run *models.WorkflowRun, triggerID string, now time.Time) bool {
	return run.Trigger == triggerID &&
		!run.Status.IsFinished() &&
		run.ScheduledFor != nil &&
		run.ScheduledFor.After(now)
}
