package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
)

// RunRepository handles workflow run database operations.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *RunRepository) RunByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	run, ok, err := scanDocument[models.WorkflowRun](
		r.db.QueryRowContext(ctx, "SELECT document FROM workflow_runs WHERE id = $1", id),
	)
	if err != nil {
		return nil, persistence.NewRunError("RunByID", id, err)
	}

	if !ok {
		return nil, persistence.NewRunError("RunByID", id, persistence.ErrRunNotFound)
	}

	return run, nil
}

func (r *RunRepository) RunsByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowRun, error) {
	return queryDocuments[models.WorkflowRun](ctx, r.logger, r.db, `
		SELECT document
		FROM workflow_runs
		WHERE workflow_id = $1
		ORDER BY created_at
	`, workflowID)
}

func (r *RunRepository) RunsByStatus(ctx context.Context, statuses []models.RunStatus, updatedBefore time.Time) ([]*models.WorkflowRun, error) {
	values := make([]string, len(statuses))
	for i, status := range statuses {
		values[i] = string(status)
	}

	return queryDocuments[models.WorkflowRun](ctx, r.logger, r.db, `
		SELECT document
		FROM workflow_runs
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at
	`, pq.Array(values), updatedBefore)
}

func (r *RunRepository) CreateRun(ctx context.Context, run *models.WorkflowRun) (*persistence.RunChange, error) {
	created, err := insertRun(ctx, r.db, run)
	if err != nil {
		return nil, persistence.NewRunError("CreateRun", run.ID, err)
	}

	if !created {
		return nil, persistence.NewRunError("CreateRun", run.ID, persistence.ErrRunAlreadyExists)
	}

	return &persistence.RunChange{After: run.Clone()}, nil
}

func (r *RunRepository) TransitionRun(
	ctx context.Context,
	id string,
	from models.RunStatus,
	mutate persistence.RunMutation,
	successor *models.WorkflowRun,
) ([]persistence.RunChange, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, r.logger, tx)

	before, ok, err := scanDocument[models.WorkflowRun](
		tx.QueryRowContext(ctx, "SELECT document FROM workflow_runs WHERE id = $1 FOR UPDATE", id),
	)
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

	err = updateRun(ctx, tx, after)
	if err != nil {
		return nil, persistence.NewRunError("TransitionRun", id, err)
	}

	changes := []persistence.RunChange{{Before: before, After: after}}

	if successor != nil {
		created, err := insertRun(ctx, tx, successor)
		if err != nil {
			return nil, persistence.NewRunError("TransitionRun", successor.ID, err)
		}

		if created {
			changes = append(changes, persistence.RunChange{After: successor.Clone()})
		}
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return changes, nil
}

func (r *RunRepository) CancelFutureRuns(ctx context.Context, triggerID, reason string, now time.Time, except string) ([]persistence.RunChange, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, r.logger, tx)

	runs, err := queryDocuments[models.WorkflowRun](ctx, r.logger, tx, `
		SELECT document
		FROM workflow_runs
		WHERE trigger_id = $1
		  AND scheduled_for > $2
		  AND status NOT IN ('COMPLETED', 'FAILED', 'CANCELLED')
		  AND id <> $3
		FOR UPDATE
	`, triggerID, now, except)
	if err != nil {
		return nil, err
	}

	changes := make([]persistence.RunChange, 0, len(runs))

	for _, run := range runs {
		after := run.Clone()
		persistence.CancelRun(after, reason, now)

		err = updateRun(ctx, tx, after)
		if err != nil {
			return nil, persistence.NewRunError("CancelFutureRuns", run.ID, err)
		}

		changes = append(changes, persistence.RunChange{Before: run, After: after})
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return changes, nil
}

func insertRun(ctx context.Context, q queryer, run *models.WorkflowRun) (bool, error) {
	document, err := json.Marshal(run)
	if err != nil {
		return false, fmt.Errorf("failed to marshal run: %w", err)
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO workflow_runs (id, workflow_id, trigger_id, status, scheduled_for, document, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, run.ID, run.Workflow, run.Trigger, run.Status, run.ScheduledFor, document, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

func updateRun(ctx context.Context, q queryer, run *models.WorkflowRun) error {
	document, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		UPDATE workflow_runs
		SET status = $2, scheduled_for = $3, document = $4, updated_at = $5
		WHERE id = $1
	`, run.ID, run.Status, run.ScheduledFor, document, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return nil
}
