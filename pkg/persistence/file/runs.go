package file

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
)

type runRepository struct {
	p *Persistence
}

func (r *runRepository) RunByID(_ context.Context, id string) (*models.WorkflowRun, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	run, ok, err := read[models.WorkflowRun](r.p, runsCollection, id)
	if err != nil {
		return nil, persistence.NewRunError("RunByID", id, err)
	}

	if !ok {
		return nil, persistence.NewRunError("RunByID", id, persistence.ErrRunNotFound)
	}

	return run, nil
}

func (r *runRepository) RunsByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowRun, error) {
	return r.filter(func(run *models.WorkflowRun) bool {
		return run.Workflow == workflowID
	})
}

func (r *runRepository) RunsByStatus(_ context.Context, statuses []models.RunStatus, updatedBefore time.Time) ([]*models.WorkflowRun, error) {
	return r.filter(func(run *models.WorkflowRun) bool {
		return slices.Contains(statuses, run.Status) && run.UpdatedAt.Before(updatedBefore)
	})
}

func (r *runRepository) filter(keep func(run *models.WorkflowRun) bool) ([]*models.WorkflowRun, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	all, err := list[models.WorkflowRun](r.p, runsCollection)
	if err != nil {
		return nil, err
	}

	runs := make([]*models.WorkflowRun, 0, len(all))

	for _, run := range all {
		if keep(run) {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})

	return runs, nil
}

func (r *runRepository) CreateRun(_ context.Context, run *models.WorkflowRun) (*persistence.RunChange, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	created, err := r.insert(run)
	if err != nil {
		return nil, persistence.NewRunError("CreateRun", run.ID, err)
	}

	if !created {
		return nil, persistence.NewRunError("CreateRun", run.ID, persistence.ErrRunAlreadyExists)
	}

	return &persistence.RunChange{After: run.Clone()}, nil
}

func (r *runRepository) insert(run *models.WorkflowRun) (bool, error) {
	_, exists, err := read[models.WorkflowRun](r.p, runsCollection, run.ID)
	if err != nil || exists {
		return false, err
	}

	err = write(r.p, runsCollection, run.ID, run)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (r *runRepository) TransitionRun(
	_ context.Context,
	id string,
	from models.RunStatus,
	mutate persistence.RunMutation,
	successor *models.WorkflowRun,
) ([]persistence.RunChange, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	before, ok, err := read[models.WorkflowRun](r.p, runsCollection, id)
	if err != nil {
		return nil, persistence.NewRunError("TransitionRun", id, err)
	}

	if !ok {
		return nil, persistence.NewRunError("TransitionRun", id, persistence.ErrRunNotFound)
	}

	if before.Status != from {
		return nil, persistence.NewStatusConflict("TransitionRun", id, from, before.Status)
	}

	after := before.Clone()

	err = mutate(after)
	if err != nil {
		return nil, persistence.NewRunError("TransitionRun", id, err)
	}

	changes := []persistence.RunChange{{Before: before, After: after}}

	if successor != nil {
		_, exists, err := read[models.WorkflowRun](r.p, runsCollection, successor.ID)
		if err != nil {
			return nil, persistence.NewRunError("TransitionRun", successor.ID, err)
		}

		if !exists {
			changes = append(changes, persistence.RunChange{After: successor.Clone()})
		}
	}

	err = writeRuns(r.p, changes)
	if err != nil {
		return nil, persistence.NewRunError("TransitionRun", id, err)
	}

	return changes, nil
}

// writeRuns writes every change.After in order. When one write fails the runs already
// written are put back to their Before state, or removed when they had none.
func writeRuns(p *Persistence, changes []persistence.RunChange) error {
	for i, change := range changes {
		err := write(p, runsCollection, change.After.ID, change.After)
		if err == nil {
			continue
		}

		for _, written := range changes[:i] {
			var undoErr error
			if written.Before == nil {
				undoErr = remove(p, runsCollection, written.After.ID)
			} else {
				undoErr = write(p, runsCollection, written.Before.ID, written.Before)
			}

			err = errors.Join(err, undoErr)
		}

		return err
	}

	return nil
}

func (r *runRepository) CancelFutureRuns(_ context.Context, triggerID, reason string, now time.Time, except string) ([]persistence.RunChange, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	all, err := list[models.WorkflowRun](r.p, runsCollection)
	if err != nil {
		return nil, err
	}

	var changes []persistence.RunChange

	for _, run := range all {
		if run.ID == except || !persistence.IsFutureRunOf(run, triggerID, now) {
			continue
		}

		after := run.Clone()
		persistence.CancelRun(after, reason, now)
		changes = append(changes, persistence.RunChange{Before: run, After: after})
	}

	err = writeRuns(r.p, changes)
	if err != nil {
		return nil, persistence.NewRunError("CancelFutureRuns", triggerID, err)
	}

	return changes, nil
}
