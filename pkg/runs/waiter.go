package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zachsents/minus-sub000/pkg/events"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
)

var ErrWaitTimeout = errors.New("run did not finish in time")

// Waiter lets a caller block until a run finishes. Change events wake waiters immediately;
// a periodic read of the store covers events that went to another process.
type Waiter struct {
	runs         persistence.WorkflowRunRepository
	logger       *slog.Logger
	pollInterval time.Duration

	mu          sync.Mutex
	subscribers map[string]map[chan *models.WorkflowRun]struct{}
}

func NewWaiter(logger *slog.Logger, runs persistence.WorkflowRunRepository, pollInterval time.Duration) *Waiter {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &Waiter{
		runs:         runs,
		logger:       logger.With("module", "run_waiter"),
		pollInterval: pollInterval,
		subscribers:  make(map[string]map[chan *models.WorkflowRun]struct{}),
	}
}

// HandleEvent wakes the waiters of a run that reached a finished status.
func (w *Waiter) HandleEvent(_ context.Context, event any) error {
	change, ok := event.(*events.WorkflowRunChanged)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	if change.After == nil || !change.After.Status.IsFinished() {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for ch := range w.subscribers[change.After.ID] {
		select {
		case ch <- change.After:
		default:
		}
	}

	return nil
}

// Wait returns the run once it is finished. It fails with ErrWaitTimeout after maxWait and
// with the context error when ctx ends first.
func (w *Waiter) Wait(ctx context.Context, runID string, maxWait time.Duration) (*models.WorkflowRun, error) {
	ch := w.subscribe(runID)
	defer w.unsubscribe(runID, ch)

	timeout := time.NewTimer(maxWait)
	defer timeout.Stop()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		run, err := w.runs.RunByID(ctx, runID)
		if err != nil {
			return nil, err
		}

		if run.Status.IsFinished() {
			return run, nil
		}

		select {
		case run := <-ch:
			return run, nil
		case <-ticker.C:
		case <-timeout.C:
			w.logger.WarnContext(ctx, "Gave up waiting for run", "run_id", runID, "max_wait", maxWait)

			return nil, ErrWaitTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (w *Waiter) subscribe(runID string) chan *models.WorkflowRun {
	ch := make(chan *models.WorkflowRun, 1)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.subscribers[runID] == nil {
		w.subscribers[runID] = make(map[chan *models.WorkflowRun]struct{})
	}

	w.subscribers[runID][ch] = struct{}{}

	return ch
}

func (w *Waiter) unsubscribe(runID string, ch chan *models.WorkflowRun) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.subscribers[runID], ch)

	if len(w.subscribers[runID]) == 0 {
		delete(w.subscribers, runID)
	}
}
