package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
	"github.com/zachsents/minus-sub000/pkg/schedule"
)

// TriggerRequest is the editable part of a trigger.
type TriggerRequest struct {
	Type     models.TriggerType        `json:"type"`
	Schedule *models.RecurringSchedule `json:"schedule,omitempty"`
}

type Triggers struct {
	persistence persistence.Persistence
	validate    *validator.Validate
	now         func() time.Time
}

func NewTriggers(p persistence.Persistence) *Triggers {
	validate := validator.New(validator.WithRequiredStructEnabled())
	schedule.RegisterValidation(validate)

	return &Triggers{
		persistence: p,
		validate:    validate,
		now:         time.Now,
	}
}

// Create adds a trigger to an existing workflow.
func (s *Triggers) Create(ctx context.Context, workflowID string, req TriggerRequest) (*models.Trigger, error) {
	_, err := s.persistence.Workflows().WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	trigger := &models.Trigger{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Workflow:  workflowID,
		Schedule:  req.Schedule,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.check("CreateTrigger", trigger)
	if err != nil {
		return nil, err
	}

	change, err := s.persistence.Triggers().SaveTrigger(ctx, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to save trigger: %w", err)
	}

	return change.After, nil
}

func (s *Triggers) Get(ctx context.Context, id string) (*models.Trigger, error) {
	return s.persistence.Triggers().TriggerByID(ctx, id)
}

func (s *Triggers) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Trigger, error) {
	return s.persistence.Triggers().TriggersByWorkflow(ctx, workflowID)
}

// Update replaces the type and schedule of a trigger.
func (s *Triggers) Update(ctx context.Context, id string, req TriggerRequest) (*models.Trigger, error) {
	existing, err := s.persistence.Triggers().TriggerByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Type = req.Type
	updated.Schedule = req.Schedule
	updated.UpdatedAt = s.now().UTC()

	if !updated.UpdatedAt.After(existing.UpdatedAt) {
		updated.UpdatedAt = existing.UpdatedAt.Add(time.Microsecond)
	}

	err = s.check("UpdateTrigger", &updated)
	if err != nil {
		return nil, err
	}

	change, err := s.persistence.Triggers().SaveTrigger(ctx, &updated)
	if err != nil {
		return nil, fmt.Errorf("failed to save trigger: %w", err)
	}

	return change.After, nil
}

func (s *Triggers) Delete(ctx context.Context, id string) error {
	_, err := s.persistence.Triggers().DeleteTrigger(ctx, id)

	return err
}

// check validates the trigger shape. Schedules are only kept on recurring triggers.
func (s *Triggers) check(op string, trigger *models.Trigger) error {
	if !trigger.IsRecurring() {
		trigger.Schedule = nil
	}

	err := s.validate.Struct(trigger)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(op, "INVALID_TRIGGER", validationErrors.Error(), ErrInvalidTrigger)
		}

		return NewValidationError(op, "INVALID_TRIGGER", err.Error(), ErrInvalidTrigger)
	}

	return nil
}
