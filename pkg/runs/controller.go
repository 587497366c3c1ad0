package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zachsents/minus-sub000/pkg/events"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/otelhelper"
	"github.com/zachsents/minus-sub000/pkg/persistence"
	"github.com/zachsents/minus-sub000/pkg/runner"
	"github.com/zachsents/minus-sub000/pkg/schedule"
	"github.com/zachsents/minus-sub000/pkg/tasks"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Failure reasons written by the controller.
const (
	ReasonInfrastructureError = "infrastructure error"
	ReasonTimedOut            = "timed out"
)

// FailureNotifier tells people about a failed run.
type FailureNotifier interface {
	NotifyRunFailed(ctx context.Context, run *models.WorkflowRun) error
}

// TaskPayload is the body of every run task.
type TaskPayload struct {
	RunID string `json:"runId"`
}

// Controller applies the transition table to stored runs and performs the side effects.
// Every mutation is a guarded transition, so concurrent or repeated deliveries of the same
// event converge: the loser of a race sees a status conflict and does nothing.
type Controller struct {
	persistence persistence.Persistence
	tasks       tasks.Dispatcher
	executor    runner.Executor
	notifier    FailureNotifier
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
	newBackOff  func() backoff.BackOff
}

type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithBackOff sets the retry policy used around side effects.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Controller) { c.newBackOff = newBackOff }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) { c.tracer = tracer }
}

// DefaultBackOff retries a side effect up to five times over roughly ten seconds.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.WithMaxRetries(b, 5)
}

func NewController(
	logger *slog.Logger,
	p persistence.Persistence,
	dispatcher tasks.Dispatcher,
	executor runner.Executor,
	notifier FailureNotifier,
	opts ...Option,
) *Controller {
	c := &Controller{
		persistence: p,
		tasks:       dispatcher,
		executor:    executor,
		notifier:    notifier,
		logger:      logger.With("module", "run_controller"),
		tracer:      otelhelper.DefaultTracer(),
		now:         time.Now,
		newBackOff:  DefaultBackOff,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// HandleEvent adapts HandleRunChanged to the event bus.
func (c *Controller) HandleEvent(ctx context.Context, event any) error {
	change, ok := event.(*events.WorkflowRunChanged)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	return c.HandleRunChanged(ctx, change)
}

// HandleRunChanged reacts to a committed write of a run.
func (c *Controller) HandleRunChanged(ctx context.Context, change *events.WorkflowRunChanged) error {
	run := change.After
	if run == nil {
		return nil
	}

	step, ok := Transition(run.Status, EventObserved)
	if !ok {
		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "runs.observe",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.RunStatusKey, string(run.Status)),
	)
	defer span.End()

	var err error

	switch {
	case step.Has(EffectNotifyFailure):
		err = c.notifyFailure(ctx, run.ID)
	default:
		err = c.advance(ctx, run, step)
	}

	if err != nil {
		otelhelper.SetError(span, err)
	}

	return err
}

// advance moves the run to step.Next and then performs the step's enqueue effect.
func (c *Controller) advance(ctx context.Context, run *models.WorkflowRun, step Step) error {
	now := c.now()

	changes, err := c.persistence.WorkflowRuns().TransitionRun(ctx, run.ID, run.Status, func(r *models.WorkflowRun) error {
		stamp(r, step.Next, now)

		return nil
	}, nil)
	if err != nil {
		if persistence.IsStatusConflict(err) || persistence.IsRunNotFound(err) {
			c.logger.DebugContext(ctx, "Run already moved on", "run_id", run.ID, "error", err)

			return nil
		}

		return err
	}

	advanced := changes[0].After

	c.logger.InfoContext(ctx, "Run advanced", "run_id", advanced.ID, "from", run.Status, "to", advanced.Status)

	var enqueue func() error

	switch {
	case step.Has(EffectEnqueueExecution):
		enqueue = func() error {
			return c.tasks.Enqueue(ctx, tasks.QueueExecuteWorkflowRun, advanced.ID, TaskPayload{RunID: advanced.ID}, now)
		}
	case step.Has(EffectEnqueueScheduled):
		fireAt := now
		if advanced.ScheduledFor != nil {
			fireAt = *advanced.ScheduledFor
		}

		enqueue = func() error {
			return c.tasks.Enqueue(ctx, tasks.QueueRunScheduledScript, advanced.ID, TaskPayload{RunID: advanced.ID}, fireAt)
		}
	default:
		return nil
	}

	err = c.retry(ctx, enqueue)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to enqueue run task", "run_id", advanced.ID, "error", err)

		return c.Fail(ctx, advanced.ID, advanced.Status, ReasonInfrastructureError, err)
	}

	return nil
}

// notifyFailure sends the failure notification once per run.
func (c *Controller) notifyFailure(ctx context.Context, runID string) error {
	run, err := c.persistence.WorkflowRuns().RunByID(ctx, runID)
	if err != nil {
		if persistence.IsRunNotFound(err) {
			return nil
		}

		return err
	}

	if run.Status != models.RunStatusFailed || run.NotifiedAt != nil {
		return nil
	}

	err = c.retry(ctx, func() error {
		err := c.notifier.NotifyRunFailed(ctx, run)
		if persistence.IsWorkflowNotFound(err) || persistence.IsOrganizationNotFound(err) {
			return backoff.Permanent(err)
		}

		return err
	})
	if err != nil {
		if persistence.IsWorkflowNotFound(err) || persistence.IsOrganizationNotFound(err) {
			c.logger.ErrorContext(ctx, "Cannot notify run failure", "run_id", run.ID, "error", err)

			return nil
		}

		return fmt.Errorf("failed to notify failure of run %s: %w", run.ID, err)
	}

	now := c.now()

	_, err = c.persistence.WorkflowRuns().TransitionRun(ctx, run.ID, models.RunStatusFailed, func(r *models.WorkflowRun) error {
		r.NotifiedAt = models.TimePtr(now)
		r.UpdatedAt = now

		return nil
	}, nil)
	if err != nil && !persistence.IsStatusConflict(err) {
		return err
	}

	c.logger.InfoContext(ctx, "Run failure notified", "run_id", run.ID)

	return nil
}

// FireScheduled handles the delayed task of a scheduled run. A run that is no longer
// SCHEDULED is left alone. Otherwise it goes back to PENDING and, for a recurring trigger,
// its successor is created in the same write.
func (c *Controller) FireScheduled(ctx context.Context, runID string) error {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "runs.fire_scheduled", attribute.String(otelhelper.RunIDKey, runID))
	defer span.End()

	run, err := c.persistence.WorkflowRuns().RunByID(ctx, runID)
	if err != nil {
		if persistence.IsRunNotFound(err) {
			c.logger.WarnContext(ctx, "Scheduled run not found", "run_id", runID)

			return nil
		}

		return err
	}

	step, ok := Transition(run.Status, EventScheduledTaskFired)
	if !ok {
		c.logger.InfoContext(ctx, "Scheduled task fired for run in another status", "run_id", runID, "status", run.Status)

		return nil
	}

	now := c.now()

	var successor *models.WorkflowRun

	if step.Has(EffectSpawnSuccessor) {
		successor, err = c.successor(ctx, run, now)
		if err != nil {
			otelhelper.SetError(span, err)

			return err
		}
	}

	_, err = c.persistence.WorkflowRuns().TransitionRun(ctx, runID, run.Status, func(r *models.WorkflowRun) error {
		stamp(r, step.Next, now)

		return nil
	}, successor)
	if err != nil {
		if persistence.IsStatusConflict(err) {
			return nil
		}

		otelhelper.SetError(span, err)

		return err
	}

	c.logger.InfoContext(ctx, "Scheduled run queued", "run_id", runID, "successor", successor != nil)

	return nil
}

// successor builds the next run of a recurring trigger, or nil when the chain ends here.
// The chain ends when the trigger is gone, is no longer recurring, or is no longer the
// version the chain was started from; in the last case the trigger change already started
// a new chain.
func (c *Controller) successor(ctx context.Context, run *models.WorkflowRun, now time.Time) (*models.WorkflowRun, error) {
	if run.Trigger == "" {
		return nil, nil
	}

	trigger, err := c.persistence.Triggers().TriggerByID(ctx, run.Trigger)
	if err != nil {
		if persistence.IsTriggerNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	if !trigger.IsRecurring() || trigger.Schedule == nil || !sameTriggerVersion(trigger, run) {
		return nil, nil
	}

	last := now
	if run.ScheduledFor != nil {
		last = *run.ScheduledFor
	}

	next, err := schedule.ComputeNextRun(*trigger.Schedule, last)
	if err != nil {
		return nil, fmt.Errorf("failed to compute next run of trigger %s: %w", trigger.ID, err)
	}

	return &models.WorkflowRun{
		ID:             models.DerivedRunID(run.ID + ":next"),
		Status:         models.RunStatusPendingScheduling,
		Workflow:       run.Workflow,
		Trigger:        run.Trigger,
		TriggerVersion: models.TimePtr(trigger.UpdatedAt),
		ScheduledFor:   models.TimePtr(next),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// sameTriggerVersion reports whether trigger is still the version run was scheduled from.
// Runs written without a version fall back to comparing against their creation time.
func sameTriggerVersion(trigger *models.Trigger, run *models.WorkflowRun) bool {
	if run.TriggerVersion != nil {
		return trigger.UpdatedAt.Equal(*run.TriggerVersion)
	}

	return !trigger.UpdatedAt.After(run.CreatedAt)
}

// Execute hands a RUNNING run to the runner. When the runner stays unreachable the run fails.
func (c *Controller) Execute(ctx context.Context, runID string) error {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "runs.execute", attribute.String(otelhelper.RunIDKey, runID))
	defer span.End()

	run, err := c.persistence.WorkflowRuns().RunByID(ctx, runID)
	if err != nil {
		if persistence.IsRunNotFound(err) {
			return nil
		}

		return err
	}

	if run.Status != models.RunStatusRunning || run.DispatchedAt != nil {
		c.logger.InfoContext(ctx, "Skipping execution of run", "run_id", runID, "status", run.Status)

		return nil
	}

	err = c.retry(ctx, func() error {
		err := c.executor.Execute(ctx, runID)
		if errors.Is(err, runner.ErrRunnerRejected) {
			return backoff.Permanent(err)
		}

		return err
	})
	if err != nil {
		otelhelper.SetError(span, err)
		c.logger.ErrorContext(ctx, "Runner did not accept run", "run_id", runID, "error", err)

		return c.Fail(ctx, runID, models.RunStatusRunning, ReasonInfrastructureError, err)
	}

	now := c.now()

	// A run the runner already finished is no longer RUNNING and keeps its outcome.
	_, err = c.persistence.WorkflowRuns().TransitionRun(ctx, runID, models.RunStatusRunning, func(r *models.WorkflowRun) error {
		r.DispatchedAt = models.TimePtr(now)
		r.UpdatedAt = now

		return nil
	}, nil)
	if err != nil && !persistence.IsStatusConflict(err) && !persistence.IsRunNotFound(err) {
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

// requeueExecution enqueues the execution task of a RUNNING run again. The queue keeps one
// task per run id.
func (c *Controller) requeueExecution(ctx context.Context, runID string) error {
	return c.retry(ctx, func() error {
		return c.tasks.Enqueue(ctx, tasks.QueueExecuteWorkflowRun, runID, TaskPayload{RunID: runID}, c.now())
	})
}

// Fail moves the run from status to FAILED with reason. A run that already left status is
// left alone.
func (c *Controller) Fail(ctx context.Context, runID string, from models.RunStatus, reason string, cause error) error {
	now := c.now()

	_, err := c.persistence.WorkflowRuns().TransitionRun(ctx, runID, from, func(r *models.WorkflowRun) error {
		stamp(r, models.RunStatusFailed, now)
		r.FailureReason = reason

		if cause != nil {
			r.Errors = append(r.Errors, models.RunError{Message: cause.Error()})
		}

		return nil
	}, nil)
	if err != nil && !persistence.IsStatusConflict(err) {
		return err
	}

	return nil
}

// HandleExecuteTask consumes the executeWorkflowRun queue.
func (c *Controller) HandleExecuteTask(ctx context.Context, task tasks.Task) error {
	var payload TaskPayload

	err := task.Decode(&payload)
	if err != nil {
		return err
	}

	return c.Execute(ctx, payload.RunID)
}

// HandleScheduledTask consumes the runScheduledScript queue.
func (c *Controller) HandleScheduledTask(ctx context.Context, task tasks.Task) error {
	var payload TaskPayload

	err := task.Decode(&payload)
	if err != nil {
		return err
	}

	return c.FireScheduled(ctx, payload.RunID)
}

func (c *Controller) retry(ctx context.Context, operation func() error) error {
	return backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx))
}

// stamp sets the status and the timestamp that goes with it.
func stamp(run *models.WorkflowRun, status models.RunStatus, now time.Time) {
	run.Status = status
	run.UpdatedAt = now

	switch status {
	case models.RunStatusPending:
		run.QueuedAt = models.TimePtr(now)
	case models.RunStatusRunning:
		run.StartedAt = models.TimePtr(now)
	case models.RunStatusScheduled:
		run.ScheduledAt = models.TimePtr(now)
	case models.RunStatusCompleted:
		run.CompletedAt = models.TimePtr(now)
	case models.RunStatusFailed:
		run.FailedAt = models.TimePtr(now)
	case models.RunStatusCancelled:
		run.CancelledAt = models.TimePtr(now)
	case models.RunStatusPendingScheduling:
	}
}
