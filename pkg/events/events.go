// Package events defines the change and notification events exchanged between services.
package events

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zachsents/minus-sub000/pkg/models"
)

type EventType string

// Topics.
const (
	DocumentsTopic = "minus.documents" // trigger and workflow run change feed
	EmailsTopic    = "minus.emails"    // outgoing email requests
)

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	TriggerChangedEvent     EventType = "trigger.changed"
	WorkflowRunChangedEvent EventType = "workflow_run.changed"
	EmailRequestedEvent     EventType = "email.requested"
)

var (
	ErrMissingDocument  = errors.New("change event has neither before nor after")
	ErrMissingRecipient = errors.New("email has no recipients")
)

// TopicFor returns the topic an event type is published on.
func TopicFor(eventType EventType) string {
	if eventType == EmailRequestedEvent {
		return EmailsTopic
	}

	return DocumentsTopic
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// TriggerChanged carries the before/after pair of one trigger write. Before is nil on
// create and After is nil on delete.
type TriggerChanged struct {
	BaseEvent

	Before *models.Trigger `json:"before,omitempty"`
	After  *models.Trigger `json:"after,omitempty"`
}

func (e TriggerChanged) GetType() EventType {
	return TriggerChangedEvent
}

// TriggerID returns the id of the changed trigger.
func (e TriggerChanged) TriggerID() string {
	if e.After != nil {
		return e.After.ID
	}

	if e.Before != nil {
		return e.Before.ID
	}

	return ""
}

func (e TriggerChanged) Validate() error {
	if e.Before == nil && e.After == nil {
		return ErrMissingDocument
	}

	return nil
}

func NewTriggerChanged(before, after *models.Trigger) TriggerChanged {
	return TriggerChanged{
		BaseEvent: NewBaseEvent(TriggerChangedEvent),
		Before:    before,
		After:     after,
	}
}

// WorkflowRunChanged carries the before/after pair of one workflow run write.
type WorkflowRunChanged struct {
	BaseEvent

	Before *models.WorkflowRun `json:"before,omitempty"`
	After  *models.WorkflowRun `json:"after,omitempty"`
}

func (e WorkflowRunChanged) GetType() EventType {
	return WorkflowRunChangedEvent
}

func (e WorkflowRunChanged) RunID() string {
	if e.After != nil {
		return e.After.ID
	}

	if e.Before != nil {
		return e.Before.ID
	}

	return ""
}

// StatusChanged reports whether the write moved the run into a new status, including creation.
func (e WorkflowRunChanged) StatusChanged() bool {
	if e.After == nil {
		return false
	}

	return e.Before == nil || e.Before.Status != e.After.Status
}

func (e WorkflowRunChanged) Validate() error {
	if e.Before == nil && e.After == nil {
		return ErrMissingDocument
	}

	return nil
}

func NewWorkflowRunChanged(before, after *models.WorkflowRun) WorkflowRunChanged {
	return WorkflowRunChanged{
		BaseEvent: NewBaseEvent(WorkflowRunChangedEvent),
		Before:    before,
		After:     after,
	}
}

// EmailRequested asks the mail service to deliver a message.
type EmailRequested struct {
	BaseEvent

	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
}

func (e EmailRequested) GetType() EventType {
	return EmailRequestedEvent
}

func (e EmailRequested) Validate() error {
	if len(e.To) == 0 {
		return ErrMissingRecipient
	}

	return nil
}

func NewEmailRequested(to []string, subject, text, html string) EmailRequested {
	return EmailRequested{
		BaseEvent: NewBaseEvent(EmailRequestedEvent),
		To:        to,
		Subject:   subject,
		Text:      text,
		HTML:      html,
	}
}
