// Package runs drives workflow runs through their lifecycle.
package runs

import (
	"slices"

	"github.com/zachsents/minus-sub000/pkg/models"
)

// Event is something that happened to a run.
type Event string

const (
	// EventObserved is a committed write to the run.
	EventObserved Event = "observed"
	// EventScheduledTaskFired is the delayed task of a scheduled run coming due.
	EventScheduledTaskFired Event = "scheduled-task-fired"
)

// Effect is a side effect that follows a transition.
type Effect string

const (
	EffectEnqueueExecution Effect = "enqueue-execution"
	EffectEnqueueScheduled Effect = "enqueue-scheduled"
	EffectNotifyFailure    Effect = "notify-failure"
	EffectSpawnSuccessor   Effect = "spawn-successor"
)

// Step is the outcome of a transition.
type Step struct {
	Next    models.RunStatus
	Effects []Effect
}

// Has reports whether the step carries effect.
func (s Step) Has(effect Effect) bool {
	return slices.Contains(s.Effects, effect)
}

type transitionKey struct {
	status models.RunStatus
	event  Event
}

var transitions = map[transitionKey]Step{
	{models.RunStatusPending, EventObserved}: {
		Next:    models.RunStatusRunning,
		Effects: []Effect{EffectEnqueueExecution},
	},
	{models.RunStatusPendingScheduling, EventObserved}: {
		Next:    models.RunStatusScheduled,
		Effects: []Effect{EffectEnqueueScheduled},
	},
	{models.RunStatusFailed, EventObserved}: {
		Next:    models.RunStatusFailed,
		Effects: []Effect{EffectNotifyFailure},
	},
	{models.RunStatusScheduled, EventScheduledTaskFired}: {
		Next:    models.RunStatusPending,
		Effects: []Effect{EffectSpawnSuccessor},
	},
}

// Transition returns the step a run in status takes on event. ok is false when the event
// does not apply to the status, which callers treat as a no-op.
func Transition(status models.RunStatus, event Event) (Step, bool) {
	step, ok := transitions[transitionKey{status, event}]
	if !ok {
		return Step{}, false
	}

	step.Effects = slices.Clone(step.Effects)

	return step, true
}
