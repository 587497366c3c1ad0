package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
)

const ReasonCancelledByUser = "Cancelled by user"

// ReportRequest is what the runner writes back when it finishes a run.
type ReportRequest struct {
	Status        models.RunStatus     `json:"status"        validate:"required,oneof=COMPLETED FAILED"`
	Errors        []models.RunError    `json:"errors"`
	FailureReason string               `json:"failureReason"`
	Responses     *models.RunResponses `json:"responses"`
}

// URLRequest is the inbound request captured as the run's trigger data.
type URLRequest struct {
	Method  string
	Headers map[string]string
	Query   map[string]string
	Body    any
}

type Runs struct {
	persistence persistence.Persistence
	now         func() time.Time
}

func NewRuns(p persistence.Persistence) *Runs {
	return &Runs{
		persistence: p,
		now:         time.Now,
	}
}

func (s *Runs) Get(ctx context.Context, id string) (*models.WorkflowRun, error) {
	return s.persistence.WorkflowRuns().RunByID(ctx, id)
}

func (s *Runs) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowRun, error) {
	return s.persistence.WorkflowRuns().RunsByWorkflow(ctx, workflowID)
}

// StartManual queues a run of the workflow with the given input.
func (s *Runs) StartManual(ctx context.Context, workflowID string, triggerData map[string]any) (*models.WorkflowRun, error) {
	_, err := s.persistence.Workflows().WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return s.createPending(ctx, workflowID, "", triggerData)
}

// StartFromURL queues a run for a URL trigger of the given type. A trigger of another type
// is rejected.
func (s *Runs) StartFromURL(ctx context.Context, triggerID string, triggerType models.TriggerType, req URLRequest) (*models.WorkflowRun, error) {
	if triggerID == "" {
		return nil, ErrTriggerRequired
	}

	trigger, err := s.persistence.Triggers().TriggerByID(ctx, triggerID)
	if err != nil {
		return nil, err
	}

	if trigger.Type != triggerType {
		return nil, NewValidationError("StartFromURL", "NOT_URL_TRIGGER",
			fmt.Sprintf("trigger %s is %s, expected %s", trigger.ID, trigger.Type, triggerType), ErrNotURLTrigger)
	}

	return s.createPending(ctx, trigger.Workflow, trigger.ID, map[string]any{
		"method":  req.Method,
		"headers": req.Headers,
		"query":   req.Query,
		"body":    req.Body,
	})
}

func (s *Runs) createPending(ctx context.Context, workflowID, triggerID string, triggerData map[string]any) (*models.WorkflowRun, error) {
	now := s.now().UTC()

	change, err := s.persistence.WorkflowRuns().CreateRun(ctx, &models.WorkflowRun{
		ID:          models.NewRunID(),
		Status:      models.RunStatusPending,
		Workflow:    workflowID,
		Trigger:     triggerID,
		TriggerData: triggerData,
		QueuedAt:    models.TimePtr(now),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return change.After, nil
}

// Report records the outcome of a RUNNING run.
func (s *Runs) Report(ctx context.Context, runID string, req ReportRequest) (*models.WorkflowRun, error) {
	if req.Status != models.RunStatusCompleted && req.Status != models.RunStatusFailed {
		return nil, NewValidationError("ReportRun", "INVALID_STATUS",
			fmt.Sprintf("status must be %s or %s", models.RunStatusCompleted, models.RunStatusFailed), ErrInvalidReport)
	}

	now := s.now().UTC()

	changes, err := s.persistence.WorkflowRuns().TransitionRun(ctx, runID, models.RunStatusRunning, func(run *models.WorkflowRun) error {
		run.Status = req.Status
		run.UpdatedAt = now
		run.Errors = append(run.Errors, req.Errors...)
		run.Responses = req.Responses

		if req.Status == models.RunStatusCompleted {
			run.CompletedAt = models.TimePtr(now)
		} else {
			run.FailedAt = models.TimePtr(now)
			run.FailureReason = req.FailureReason
		}

		return nil
	}, nil)
	if err != nil {
		if persistence.IsStatusConflict(err) {
			return nil, &ServiceError{Op: "ReportRun", Code: "RUN_NOT_RUNNING", Message: err.Error(), Err: ErrRunNotRunning}
		}

		return nil, err
	}

	return changes[0].After, nil
}

// Cancel stops a run that has not finished.
func (s *Runs) Cancel(ctx context.Context, runID, reason string) (*models.WorkflowRun, error) {
	if reason == "" {
		reason = ReasonCancelledByUser
	}

	run, err := s.persistence.WorkflowRuns().RunByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	if run.Status.IsFinished() {
		return nil, &ServiceError{Op: "CancelRun", Code: "RUN_FINISHED", Message: "run is " + string(run.Status), Err: ErrRunFinished}
	}

	now := s.now().UTC()

	changes, err := s.persistence.WorkflowRuns().TransitionRun(ctx, runID, run.Status, func(r *models.WorkflowRun) error {
		persistence.CancelRun(r, reason, now)

		return nil
	}, nil)
	if err != nil {
		if persistence.IsStatusConflict(err) {
			return nil, &ServiceError{Op: "CancelRun", Code: "RUN_CHANGED", Message: err.Error(), Err: ErrRunChanged}
		}

		return nil, err
	}

	return changes[0].After, nil
}

// HealthCheck checks the health of the persistence layer.
func (s *Runs) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}
