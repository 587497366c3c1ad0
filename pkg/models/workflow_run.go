package models

import "time"

type RunStatus string

const (
	RunStatusPending           RunStatus = "PENDING"
	RunStatusPendingScheduling RunStatus = "PENDING_SCHEDULING"
	RunStatusScheduled         RunStatus = "SCHEDULED"
	RunStatusRunning           RunStatus = "RUNNING"
	RunStatusCompleted         RunStatus = "COMPLETED"
	RunStatusFailed            RunStatus = "FAILED"
	RunStatusCancelled         RunStatus = "CANCELLED"
)

// IsFinished reports whether s is terminal. No transitions leave a terminal status.
func (s RunStatus) IsFinished() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusPendingScheduling, RunStatusScheduled, RunStatusRunning,
		RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

type RunError struct {
	Message string `json:"message"`
	Node    string `json:"node,omitempty"`
}

// URLResponse is the envelope the runner attaches for synchronous URL triggers.
type URLResponse struct {
	StatusCode int `json:"statusCode"`
	Body       any `json:"body,omitempty"`
}

type RunResponses struct {
	URL *URLResponse `json:"url,omitempty"`
}

// WorkflowRun is one execution attempt of a workflow. Field names are shared with the remote runner.
type WorkflowRun struct {
	ID                 string         `json:"id"`
	Status             RunStatus      `json:"status"`
	Workflow           string         `json:"workflow"`
	Trigger            string         `json:"trigger,omitempty"`
	TriggerData        map[string]any `json:"triggerData,omitempty"`
	// TriggerVersion is the UpdatedAt of the trigger this run's chain was started from.
	TriggerVersion     *time.Time     `json:"triggerVersion,omitempty"`
	QueuedAt           *time.Time     `json:"queuedAt,omitempty"`
	StartedAt          *time.Time     `json:"startedAt,omitempty"`
	DispatchedAt       *time.Time     `json:"dispatchedAt,omitempty"`
	ScheduledAt        *time.Time     `json:"scheduledAt,omitempty"`
	ScheduledFor       *time.Time     `json:"scheduledFor,omitempty"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
	FailedAt           *time.Time     `json:"failedAt,omitempty"`
	CancelledAt        *time.Time     `json:"cancelledAt,omitempty"`
	CancellationReason string         `json:"cancellationReason,omitempty"`
	FailureReason      string         `json:"failureReason,omitempty"`
	Errors             []RunError     `json:"errors,omitempty"`
	Responses          *RunResponses  `json:"responses,omitempty"`
	NotifiedAt         *time.Time     `json:"notifiedAt,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// URLResponse returns the runner supplied response envelope, if any.
func (r *WorkflowRun) URLResponse() *URLResponse {
	if r.Responses == nil {
		return nil
	}

	return r.Responses.URL
}

// Clone returns a copy of the run that shares no mutable state with r.
func (r *WorkflowRun) Clone() *WorkflowRun {
	if r == nil {
		return nil
	}

	clone := *r
	clone.QueuedAt = cloneTime(r.QueuedAt)
	clone.StartedAt = cloneTime(r.StartedAt)
	clone.ScheduledAt = cloneTime(r.ScheduledAt)
	clone.ScheduledFor = cloneTime(r.ScheduledFor)
	clone.CompletedAt = cloneTime(r.CompletedAt)
	clone.FailedAt = cloneTime(r.FailedAt)
	clone.CancelledAt = cloneTime(r.CancelledAt)
	clone.NotifiedAt = cloneTime(r.NotifiedAt)

	if r.Errors != nil {
		clone.Errors = append([]RunError(nil), r.Errors...)
	}

	if r.TriggerData != nil {
		clone.TriggerData = make(map[string]any, len(r.TriggerData))
		for k, v := range r.TriggerData {
			clone.TriggerData[k] = v
		}
	}

	if r.Responses != nil {
		responses := *r.Responses
		if responses.URL != nil {
			url := *responses.URL
			responses.URL = &url
		}

		clone.Responses = &responses
	}

	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	v := *t

	return &v
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}
