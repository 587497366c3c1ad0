package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zachsents/minus-sub000/pkg/events"
	"github.com/zachsents/minus-sub000/pkg/notify"
	"github.com/zachsents/minus-sub000/pkg/runner"
	"github.com/zachsents/minus-sub000/pkg/runs"
	"github.com/zachsents/minus-sub000/pkg/tasks"
	"github.com/zachsents/minus-sub000/pkg/triggers"
)

// Worker drives runs: it reacts to trigger and run changes, consumes the task queues and
// reconciles stuck runs.
type Worker struct {
	queue      tasks.Queue
	reconciler *runs.Reconciler
	logger     *slog.Logger
}

// NewWorker wires the worker on stack. Call it before stack.Subscribe.
func NewWorker(ctx context.Context, logger *slog.Logger, stack *Stack, queue tasks.Queue) (*Worker, error) {
	config := stack.Config

	if config.RunnerURL == "" {
		return nil, ErrRunnerURLRequired
	}

	sender, err := newSender(logger, stack, config.EmailSender)
	if err != nil {
		return nil, err
	}

	if config.Location == nil {
		config.Location = time.UTC
	}

	dispatcher := triggers.NewDispatcher(logger, stack.Persistence,
		triggers.WithLocation(config.Location),
		triggers.WithTracer(stack.Tracer),
	)

	timeout := config.RunnerTimeout
	if timeout <= 0 {
		timeout = defaultRunnerTimeout
	}

	controller := runs.NewController(
		logger,
		stack.Persistence,
		queue,
		runner.NewClient(logger, config.RunnerURL, timeout),
		notify.NewNotifier(logger, stack.Persistence, sender),
		runs.WithTracer(stack.Tracer),
	)

	stack.On(events.TriggerChangedEvent, dispatcher.HandleEvent)
	stack.On(events.WorkflowRunChangedEvent, controller.HandleEvent)

	queue.Handle(tasks.QueueExecuteWorkflowRun, controller.HandleExecuteTask)
	queue.Handle(tasks.QueueRunScheduledScript, controller.HandleScheduledTask)

	reconciler := runs.NewReconciler(logger, controller, stack.Persistence.WorkflowRuns(), runs.ReconcilerConfig{
		Schedule:   config.ReconcileSchedule,
		RunTimeout: config.RunTimeout,
	})

	logger.InfoContext(ctx, "Worker configured", "runner_url", config.RunnerURL, "timezone", config.Location.String())

	return &Worker{
		queue:      queue,
		reconciler: reconciler,
		logger:     logger,
	}, nil
}

func (w *Worker) Start(ctx context.Context) error {
	err := w.queue.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start task queue: %w", err)
	}

	err = w.reconciler.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	return nil
}

func (w *Worker) Stop(ctx context.Context) error {
	w.reconciler.Stop(ctx)

	return w.queue.Stop(ctx)
}

// nolint:ireturn
func newSender(logger *slog.Logger, stack *Stack, kind string) (notify.Sender, error) {
	switch kind {
	case "bus", "":
		return notify.NewBusSender(stack.Bus), nil
	case "log":
		return notify.NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("%w: email sender %q", ErrUnsupportedProvider, kind)
	}
}
