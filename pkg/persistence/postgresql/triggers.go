package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
)

// TriggerRepository handles trigger-related database operations.
type TriggerRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *TriggerRepository) TriggerByID(ctx context.Context, id string) (*models.Trigger, error) {
	trigger, ok, err := scanDocument[models.Trigger](
		r.db.QueryRowContext(ctx, "SELECT document FROM triggers WHERE id = $1", id),
	)
	if err != nil {
		return nil, persistence.NewTriggerError("TriggerByID", id, err)
	}

	if !ok {
		return nil, persistence.NewTriggerError("TriggerByID", id, persistence.ErrTriggerNotFound)
	}

	return trigger, nil
}

func (r *TriggerRepository) TriggersByWorkflow(ctx context.Context, workflowID string) ([]*models.Trigger, error) {
	return queryDocuments[models.Trigger](ctx, r.logger, r.db, `
		SELECT document
		FROM triggers
		WHERE workflow_id = $1
		ORDER BY created_at
	`, workflowID)
}

func (r *TriggerRepository) SaveTrigger(ctx context.Context, trigger *models.Trigger) (*persistence.TriggerChange, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, r.logger, tx)

	before, _, err := scanDocument[models.Trigger](
		tx.QueryRowContext(ctx, "SELECT document FROM triggers WHERE id = $1 FOR UPDATE", trigger.ID),
	)
	if err != nil {
		return nil, persistence.NewTriggerError("SaveTrigger", trigger.ID, err)
	}

	document, err := json.Marshal(trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO triggers (id, workflow_id, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`, trigger.ID, trigger.Workflow, document, trigger.CreatedAt, trigger.UpdatedAt)
	if err != nil {
		return nil, persistence.NewTriggerError("SaveTrigger", trigger.ID, err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	after := *trigger

	return &persistence.TriggerChange{Before: before, After: &after}, nil
}

func (r *TriggerRepository) DeleteTrigger(ctx context.Context, id string) (*persistence.TriggerChange, error) {
	before, ok, err := scanDocument[models.Trigger](
		r.db.QueryRowContext(ctx, "DELETE FROM triggers WHERE id = $1 RETURNING document", id),
	)
	if err != nil {
		return nil, persistence.NewTriggerError("DeleteTrigger", id, err)
	}

	if !ok {
		return nil, persistence.NewTriggerError("DeleteTrigger", id, persistence.ErrTriggerNotFound)
	}

	return &persistence.TriggerChange{Before: before}, nil
}
