package file

import (
	"context"
	"sort"

	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
)

type triggerRepository struct {
	p *Persistence
}

func (r *triggerRepository) TriggerByID(_ context.Context, id string) (*models.Trigger, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	trigger, ok, err := read[models.Trigger](r.p, triggersCollection, id)
	if err != nil {
		return nil, persistence.NewTriggerError("TriggerByID", id, err)
	}

	if !ok {
		return nil, persistence.NewTriggerError("TriggerByID", id, persistence.ErrTriggerNotFound)
	}

	return trigger, nil
}

func (r *triggerRepository) TriggersByWorkflow(_ context.Context, workflowID string) ([]*models.Trigger, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	all, err := list[models.Trigger](r.p, triggersCollection)
	if err != nil {
		return nil, err
	}

	triggers := make([]*models.Trigger, 0, len(all))

	for _, trigger := range all {
		if trigger.Workflow == workflowID {
			triggers = append(triggers, trigger)
		}
	}

	sort.Slice(triggers, func(i, j int) bool {
		return triggers[i].CreatedAt.Before(triggers[j].CreatedAt)
	})

	return triggers, nil
}

func (r *triggerRepository) SaveTrigger(_ context.Context, trigger *models.Trigger) (*persistence.TriggerChange, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	before, _, err := read[models.Trigger](r.p, triggersCollection, trigger.ID)
	if err != nil {
		return nil, persistence.NewTriggerError("SaveTrigger", trigger.ID, err)
	}

	err = write(r.p, triggersCollection, trigger.ID, trigger)
	if err != nil {
		return nil, persistence.NewTriggerError("SaveTrigger", trigger.ID, err)
	}

	after := *trigger

	return &persistence.TriggerChange{Before: before, After: &after}, nil
}

func (r *triggerRepository) DeleteTrigger(_ context.Context, id string) (*persistence.TriggerChange, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	before, ok, err := read[models.Trigger](r.p, triggersCollection, id)
	if err != nil {
		return nil, persistence.NewTriggerError("DeleteTrigger", id, err)
	}

	if !ok {
		return nil, persistence.NewTriggerError("DeleteTrigger", id, persistence.ErrTriggerNotFound)
	}

	err = remove(r.p, triggersCollection, id)
	if err != nil {
		return nil, persistence.NewTriggerError("DeleteTrigger", id, err)
	}

	return &persistence.TriggerChange{Before: before}, nil
}
