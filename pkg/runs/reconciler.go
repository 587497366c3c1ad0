package runs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zachsents/minus-sub000/pkg/events"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
)

// ReconcilerConfig bounds what the reconciler considers stuck.
type ReconcilerConfig struct {
	// Schedule is a robfig/cron spec, "@every 1m" by default.
	Schedule string
	// StaleAfter is how long a run may sit in PENDING, PENDING_SCHEDULING, an overdue
	// SCHEDULED status, or RUNNING without reaching the runner before it is pushed again.
	StaleAfter time.Duration
	// RunTimeout fails RUNNING runs not updated for this long. Zero disables it.
	RunTimeout time.Duration
	// NotifyWindow limits the retry of missing failure notifications to recent failures.
	NotifyWindow time.Duration
}

// Reconciler re-drives runs whose change event or task was lost.
type Reconciler struct {
	controller *Controller
	runs       persistence.WorkflowRunRepository
	config     ReconcilerConfig
	logger     *slog.Logger
	cron       *cron.Cron
}

func NewReconciler(logger *slog.Logger, controller *Controller, runs persistence.WorkflowRunRepository, config ReconcilerConfig) *Reconciler {
	if config.Schedule == "" {
		config.Schedule = "@every 1m"
	}

	if config.StaleAfter <= 0 {
		config.StaleAfter = 2 * time.Minute
	}

	if config.NotifyWindow <= 0 {
		config.NotifyWindow = 24 * time.Hour
	}

	return &Reconciler{
		controller: controller,
		runs:       runs,
		config:     config,
		logger:     logger.With("module", "run_reconciler"),
	}
}

func (r *Reconciler) Start(ctx context.Context) error {
	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	background := context.WithoutCancel(ctx)

	_, err := r.cron.AddFunc(r.config.Schedule, func() {
		err := r.Reconcile(background)
		if err != nil {
			r.logger.ErrorContext(background, "Reconcile pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.config.Schedule, err)
	}

	r.cron.Start()
	r.logger.InfoContext(ctx, "Reconciler started", "schedule", r.config.Schedule)

	return nil
}

func (r *Reconciler) Stop(ctx context.Context) {
	if r.cron != nil {
		select {
		case <-r.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
}

// Reconcile runs one pass. Errors on single runs are logged and the pass continues.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	now := r.controller.now()
	staleBefore := now.Add(-r.config.StaleAfter)

	waiting, err := r.runs.RunsByStatus(ctx, []models.RunStatus{
		models.RunStatusPending,
		models.RunStatusPendingScheduling,
	}, staleBefore)
	if err != nil {
		return err
	}

	for _, run := range waiting {
		r.logger.InfoContext(ctx, "Re-driving stale run", "run_id", run.ID, "status", run.Status)
		r.logError(ctx, run, r.controller.HandleRunChanged(ctx, &events.WorkflowRunChanged{After: run}))
	}

	scheduled, err := r.runs.RunsByStatus(ctx, []models.RunStatus{models.RunStatusScheduled}, now)
	if err != nil {
		return err
	}

	for _, run := range scheduled {
		if run.ScheduledFor == nil || !run.ScheduledFor.Before(staleBefore) {
			continue
		}

		r.logger.InfoContext(ctx, "Firing overdue scheduled run", "run_id", run.ID, "scheduled_for", run.ScheduledFor)
		r.logError(ctx, run, r.controller.FireScheduled(ctx, run.ID))
	}

	if r.config.RunTimeout > 0 {
		running, err := r.runs.RunsByStatus(ctx, []models.RunStatus{models.RunStatusRunning}, now.Add(-r.config.RunTimeout))
		if err != nil {
			return err
		}

		for _, run := range running {
			r.logger.WarnContext(ctx, "Failing run that timed out", "run_id", run.ID)
			r.logError(ctx, run, r.controller.Fail(ctx, run.ID, models.RunStatusRunning, ReasonTimedOut, nil))
		}
	}

	running, err := r.runs.RunsByStatus(ctx, []models.RunStatus{models.RunStatusRunning}, staleBefore)
	if err != nil {
		return err
	}

	for _, run := range running {
		if run.DispatchedAt != nil {
			continue
		}

		r.logger.InfoContext(ctx, "Re-queueing execution of run", "run_id", run.ID)
		r.logError(ctx, run, r.controller.requeueExecution(ctx, run.ID))
	}

	failed, err := r.runs.RunsByStatus(ctx, []models.RunStatus{models.RunStatusFailed}, staleBefore)
	if err != nil {
		return err
	}

	for _, run := range failed {
		if run.NotifiedAt != nil || run.FailedAt == nil || run.FailedAt.Before(now.Add(-r.config.NotifyWindow)) {
			continue
		}

		r.logger.InfoContext(ctx, "Retrying failure notification", "run_id", run.ID)
		r.logError(ctx, run, r.controller.HandleRunChanged(ctx, &events.WorkflowRunChanged{After: run}))
	}

	return nil
}

func (r *Reconciler) logError(ctx context.Context, run *models.WorkflowRun, err error) {
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to reconcile run", "run_id", run.ID, "status", run.Status, "error", err)
	}
}
