package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
)

type workflowRepository struct {
	db *sql.DB
}

func (r *workflowRepository) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, ok, err := scanDocument[models.Workflow](
		r.db.QueryRowContext(ctx, "SELECT document FROM workflows WHERE id = $1", id),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrWorkflowNotFound, id)
	}

	return workflow, nil
}

func (r *workflowRepository) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	document, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflows (id, organization_id, document)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			document = EXCLUDED.document
	`, workflow.ID, workflow.Organization, document)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

type organizationRepository struct {
	db *sql.DB
}

func (r *organizationRepository) OrganizationByID(ctx context.Context, id string) (*models.Organization, error) {
	organization, ok, err := scanDocument[models.Organization](
		r.db.QueryRowContext(ctx, "SELECT document FROM organizations WHERE id = $1", id),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrOrganizationNotFound, id)
	}

	return organization, nil
}

func (r *organizationRepository) SaveOrganization(ctx context.Context, organization *models.Organization) error {
	document, err := json.Marshal(organization)
	if err != nil {
		return fmt.Errorf("failed to marshal organization: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO organizations (id, document)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document
	`, organization.ID, document)
	if err != nil {
		return fmt.Errorf("failed to save organization: %w", err)
	}

	return nil
}

type userRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *userRepository) UsersByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return []*models.User{}, nil
	}

	return queryDocuments[models.User](ctx, r.logger, r.db, `
		SELECT document
		FROM users
		WHERE id = ANY($1)
		ORDER BY id
	`, pq.Array(ids))
}

func (r *userRepository) SaveUser(ctx context.Context, user *models.User) error {
	document, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, document)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document
	`, user.ID, document)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}
