package models

import "time"

type TriggerType string

const (
	TriggerTypeManual            TriggerType = "manual"
	TriggerTypeRecurringSchedule TriggerType = "recurring-schedule"
	TriggerTypeAsyncURL          TriggerType = "async-url"
	TriggerTypeSyncURL           TriggerType = "sync-url"
	TriggerTypeInboundEmail      TriggerType = "inbound-email"
)

// IsURL reports whether the trigger is fired by an inbound HTTP request.
func (t TriggerType) IsURL() bool {
	return t == TriggerTypeAsyncURL || t == TriggerTypeSyncURL
}

type IntervalUnit string

const (
	IntervalMinute IntervalUnit = "minute"
	IntervalHour   IntervalUnit = "hour"
	IntervalDay    IntervalUnit = "day"
	IntervalWeek   IntervalUnit = "week"
	IntervalMonth  IntervalUnit = "month"
)

// RecurringSchedule describes when a recurring-schedule trigger fires.
// Only the anchor fields matching IntervalUnit are meaningful:
// AtMinute for hour, AtTime for day/week/month, OnWeekday for week and OnDay for month.
type RecurringSchedule struct {
	Interval     int          `json:"interval"            validate:"min=1"`
	IntervalUnit IntervalUnit `json:"intervalUnit"        validate:"required,oneof=minute hour day week month"`
	AtMinute     int          `json:"atMinute,omitempty"`
	AtTime       string       `json:"atTime,omitempty"`
	OnWeekday    int          `json:"onWeekday,omitempty"`
	OnDay        int          `json:"onDay,omitempty"`
}

// Trigger describes what causes a workflow to execute.
type Trigger struct {
	ID        string             `json:"id"`
	Type      TriggerType        `json:"type"               validate:"required,oneof=manual recurring-schedule async-url sync-url inbound-email"`
	Workflow  string             `json:"workflow"           validate:"required"`
	Schedule  *RecurringSchedule `json:"schedule,omitempty" validate:"required_if=Type recurring-schedule"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// IsRecurring reports whether t is a recurring-schedule trigger. A nil trigger is not recurring.
func (t *Trigger) IsRecurring() bool {
	return t != nil && t.Type == TriggerTypeRecurringSchedule
}
