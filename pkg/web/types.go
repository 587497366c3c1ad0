// Package web provides the HTTP handlers of the minus API.
package web

import (
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/nodes"
)

// TriggerRequest is the body of trigger create and update requests.
type TriggerRequest struct {
	Type     models.TriggerType        `json:"type"               validate:"required"`
	Schedule *models.RecurringSchedule `json:"schedule,omitempty"`
}

// StartRunRequest is the body of a manual run request.
type StartRunRequest struct {
	TriggerData map[string]any `json:"triggerData"`
}

// ReportRunRequest is the body the runner posts when it finishes a run.
type ReportRunRequest struct {
	Status        models.RunStatus     `json:"status"                  validate:"required,oneof=COMPLETED FAILED"`
	Errors        []models.RunError    `json:"errors,omitempty"        validate:"dive"`
	FailureReason string               `json:"failureReason,omitempty"`
	Responses     *models.RunResponses `json:"responses,omitempty"`
}

type CancelRunRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ValidateNodeResponse lists the inputs that failed validation.
type ValidateNodeResponse struct {
	Valid  bool                     `json:"valid"`
	Errors []*nodes.ValidationError `json:"errors"`
}
