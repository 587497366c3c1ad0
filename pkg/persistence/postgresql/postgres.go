// Package postgresql provides PostgreSQL persistence. Documents are stored as JSONB next to
// the columns the run engine filters on, and guarded transitions lock rows with FOR UPDATE.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/zachsents/minus-sub000/pkg/persistence"
	"github.com/zachsents/minus-sub000/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence connects to databaseURL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{db: database, logger: logger}, nil
}

func (p *Persistence) Triggers() persistence.TriggerRepository {
	return &TriggerRepository{db: p.db, logger: p.logger}
}

func (p *Persistence) WorkflowRuns() persistence.WorkflowRunRepository {
	return &RunRepository{db: p.db, logger: p.logger}
}

func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return &workflowRepository{db: p.db}
}

func (p *Persistence) Organizations() persistence.OrganizationRepository {
	return &organizationRepository{db: p.db}
}

func (p *Persistence) Users() persistence.UserRepository {
	return &userRepository{db: p.db, logger: p.logger}
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// scanDocument decodes the single JSONB column of row. It returns false on sql.ErrNoRows.
func scanDocument[T any](row interface{ Scan(dest ...any) error }) (*T, bool, error) {
	var raw []byte

	err := row.Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, err
	}

	var document T

	err = json.Unmarshal(raw, &document)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode document: %w", err)
	}

	return &document, true, nil
}

func queryDocuments[T any](ctx context.Context, logger *slog.Logger, q queryer, query string, args ...any) ([]*T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	documents := make([]*T, 0)

	for rows.Next() {
		document, _, err := scanDocument[T](rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		documents = append(documents, document)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return documents, nil
}

func rollback(ctx context.Context, logger *slog.Logger, tx *sql.Tx) {
	err := tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.ErrorContext(ctx, "failed to rollback transaction", "error", err)
	}
}
