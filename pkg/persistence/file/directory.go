package file

import (
	"context"
	"fmt"

	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
)

type workflowRepository struct {
	p *Persistence
}

func (r *workflowRepository) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	workflow, ok, err := read[models.Workflow](r.p, workflowsCollection, id)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrWorkflowNotFound, id)
	}

	return workflow, nil
}

func (r *workflowRepository) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return write(r.p, workflowsCollection, workflow.ID, workflow)
}

type organizationRepository struct {
	p *Persistence
}

func (r *organizationRepository) OrganizationByID(_ context.Context, id string) (*models.Organization, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	organization, ok, err := read[models.Organization](r.p, organizationsCollection, id)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrOrganizationNotFound, id)
	}

	return organization, nil
}

func (r *organizationRepository) SaveOrganization(_ context.Context, organization *models.Organization) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return write(r.p, organizationsCollection, organization.ID, organization)
}

type userRepository struct {
	p *Persistence
}

func (r *userRepository) UsersByIDs(_ context.Context, ids []string) ([]*models.User, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	users := make([]*models.User, 0, len(ids))

	for _, id := range ids {
		user, ok, err := read[models.User](r.p, usersCollection, id)
		if err != nil {
			return nil, err
		}

		if ok {
			users = append(users, user)
		}
	}

	return users, nil
}

func (r *userRepository) SaveUser(_ context.Context, user *models.User) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return write(r.p, usersCollection, user.ID, user)
}
