// Package triggers reacts to trigger writes by keeping the chain of scheduled runs of
// recurring-schedule triggers in line with the trigger document.
package triggers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zachsents/minus-sub000/pkg/events"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/otelhelper"
	"github.com/zachsents/minus-sub000/pkg/persistence"
	"github.com/zachsents/minus-sub000/pkg/schedule"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Cancellation reasons written on superseded runs.
const (
	ReasonTriggerChanged = "Trigger changed"
	ReasonTriggerDeleted = "Trigger deleted"
)

type Dispatcher struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	tracer      trace.Tracer
	location    *time.Location
	now         func() time.Time
}

type Option func(*Dispatcher)

// WithLocation sets the time zone schedule anchors are interpreted in. UTC by default.
func WithLocation(location *time.Location) Option {
	return func(d *Dispatcher) { d.location = location }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = tracer }
}

func NewDispatcher(logger *slog.Logger, p persistence.Persistence, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		persistence: p,
		logger:      logger.With("module", "trigger_dispatcher"),
		tracer:      otelhelper.DefaultTracer(),
		location:    time.UTC,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// HandleEvent adapts HandleTriggerChanged to the event bus.
func (d *Dispatcher) HandleEvent(ctx context.Context, event any) error {
	change, ok := event.(*events.TriggerChanged)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	return d.HandleTriggerChanged(ctx, change)
}

// HandleTriggerChanged cancels the future runs of the previous trigger version and starts a
// new chain for the current one. Only recurring-schedule triggers are handled.
//
// The run it creates has an id derived from the event id, so a redelivered event finds the
// run already there and creates nothing. Events older than the stored trigger are dropped;
// the newer event that superseded them does the work.
func (d *Dispatcher) HandleTriggerChanged(ctx context.Context, change *events.TriggerChanged) error {
	if !change.Before.IsRecurring() && !change.After.IsRecurring() {
		return nil
	}

	triggerID := change.TriggerID()

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "triggers.dispatch",
		attribute.String(otelhelper.TriggerIDKey, triggerID),
		attribute.String(otelhelper.EventIDKey, change.ID),
	)
	defer span.End()

	stale, err := d.isStale(ctx, change)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if stale {
		d.logger.InfoContext(ctx, "Skipping outdated trigger change", "trigger_id", triggerID, "event_id", change.ID)

		return nil
	}

	now := d.now()
	runID := models.DerivedRunID(change.ID)

	if change.Before.IsRecurring() {
		reason := ReasonTriggerChanged
		if change.After == nil {
			reason = ReasonTriggerDeleted
		}

		cancelled, err := d.persistence.WorkflowRuns().CancelFutureRuns(ctx, triggerID, reason, now, runID)
		if err != nil {
			otelhelper.SetError(span, err)

			return fmt.Errorf("failed to cancel future runs of trigger %s: %w", triggerID, err)
		}

		if len(cancelled) > 0 {
			d.logger.InfoContext(ctx, "Cancelled future runs", "trigger_id", triggerID, "count", len(cancelled), "reason", reason)
		}
	}

	if !change.After.IsRecurring() || change.After.Schedule == nil {
		return nil
	}

	// Redelivery cannot repair a schedule the validator would have rejected, so the change is
	// acked and the trigger is left without a chain.
	first, err := schedule.ComputeFirstRun(*change.After.Schedule, now.In(d.location))
	if err != nil {
		otelhelper.SetError(span, err)
		d.logger.ErrorContext(ctx, "Cannot compute first run", "trigger_id", triggerID, "error", err)

		return nil
	}

	_, err = d.persistence.WorkflowRuns().CreateRun(ctx, &models.WorkflowRun{
		ID:             runID,
		Status:         models.RunStatusPendingScheduling,
		Workflow:       change.After.Workflow,
		Trigger:        triggerID,
		TriggerVersion: models.TimePtr(change.After.UpdatedAt),
		ScheduledFor:   models.TimePtr(first),
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if persistence.IsRunAlreadyExists(err) {
			d.logger.DebugContext(ctx, "Run of trigger change already created", "trigger_id", triggerID, "run_id", runID)

			return nil
		}

		otelhelper.SetError(span, err)

		return err
	}

	d.logger.InfoContext(ctx, "Scheduled first run", "trigger_id", triggerID, "run_id", runID, "scheduled_for", first)

	return nil
}

// isStale reports whether the stored trigger no longer matches the state the event ends in.
func (d *Dispatcher) isStale(ctx context.Context, change *events.TriggerChanged) (bool, error) {
	current, err := d.persistence.Triggers().TriggerByID(ctx, change.TriggerID())
	if err != nil {
		if persistence.IsTriggerNotFound(err) {
			return change.After != nil, nil
		}

		return false, err
	}

	if change.After == nil {
		return true, nil
	}

	return !current.UpdatedAt.Equal(change.After.UpdatedAt), nil
}
