// Package changefeed decorates a persistence layer so every committed trigger or workflow
// run write is published as a before/after change event.
package changefeed

import (
	"context"
	"log/slog"
	"time"

	"github.com/zachsents/minus-sub000/pkg/eventbus"
	"github.com/zachsents/minus-sub000/pkg/events"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
)

// Persistence publishes change events for trigger and run writes and passes everything
// else through. Publishing happens after the write commits; a failed publish is logged and
// the write still succeeds.
type Persistence struct {
	persistence.Persistence

	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func New(logger *slog.Logger, inner persistence.Persistence, publisher eventbus.EventPublisher) *Persistence {
	return &Persistence{
		Persistence: inner,
		publisher:   publisher,
		logger:      logger.With("module", "changefeed"),
	}
}

func (p *Persistence) Triggers() persistence.TriggerRepository {
	return &triggerRepository{TriggerRepository: p.Persistence.Triggers(), feed: p}
}

func (p *Persistence) WorkflowRuns() persistence.WorkflowRunRepository {
	return &runRepository{WorkflowRunRepository: p.Persistence.WorkflowRuns(), feed: p}
}

func (p *Persistence) publishTrigger(ctx context.Context, change *persistence.TriggerChange) {
	event := events.NewTriggerChanged(change.Before, change.After)

	err := p.publisher.Publish(ctx, event.TriggerID(), event)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish trigger change", "trigger_id", event.TriggerID(), "error", err)
	}
}

func (p *Persistence) publishRuns(ctx context.Context, changes ...persistence.RunChange) {
	for _, change := range changes {
		event := events.NewWorkflowRunChanged(change.Before, change.After)

		err := p.publisher.Publish(ctx, event.RunID(), event)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to publish run change", "run_id", event.RunID(), "error", err)
		}
	}
}

type triggerRepository struct {
	persistence.TriggerRepository

	feed *Persistence
}

func (r *triggerRepository) SaveTrigger(ctx context.Context, trigger *models.Trigger) (*persistence.TriggerChange, error) {
	change, err := r.TriggerRepository.SaveTrigger(ctx, trigger)
	if err != nil {
		return nil, err
	}

	r.feed.publishTrigger(ctx, change)

	return change, nil
}

func (r *triggerRepository) DeleteTrigger(ctx context.Context, id string) (*persistence.TriggerChange, error) {
	change, err := r.TriggerRepository.DeleteTrigger(ctx, id)
	if err != nil {
		return nil, err
	}

	r.feed.publishTrigger(ctx, change)

	return change, nil
}

type runRepository struct {
	persistence.WorkflowRunRepository

	feed *Persistence
}

func (r *runRepository) CreateRun(ctx context.Context, run *models.WorkflowRun) (*persistence.RunChange, error) {
	change, err := r.WorkflowRunRepository.CreateRun(ctx, run)
	if err != nil {
		return nil, err
	}

	r.feed.publishRuns(ctx, *change)

	return change, nil
}

func (r *runRepository) TransitionRun(
	ctx context.Context,
	id string,
	from models.RunStatus,
	mutate persistence.RunMutation,
	successor *models.WorkflowRun,
) ([]persistence.RunChange, error) {
	changes, err := r.WorkflowRunRepository.TransitionRun(ctx, id, from, mutate, successor)
	if err != nil {
		return nil, err
	}

	r.feed.publishRuns(ctx, changes...)

	return changes, nil
}

func (r *runRepository) CancelFutureRuns(ctx context.Context, triggerID, reason string, now time.Time, except string) ([]persistence.RunChange, error) {
	changes, err := r.WorkflowRunRepository.CancelFutureRuns(ctx, triggerID, reason, now, except)
	if err != nil {
		return nil, err
	}

	r.feed.publishRuns(ctx, changes...)

	return changes, nil
}
