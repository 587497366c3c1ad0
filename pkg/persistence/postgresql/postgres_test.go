package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
	"github.com/zachsents/minus-sub000/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflow_runs", "triggers", "users", "organizations", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("minus_test"),
			postgres.WithUsername("minus"),
			postgres.WithPassword("minus"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func scheduledRun(trigger string, status models.RunStatus, scheduledFor time.Time) *models.WorkflowRun {
	return &models.WorkflowRun{
		ID:           uuid.NewString(),
		Workflow:     "wf-1",
		Trigger:      trigger,
		Status:       status,
		ScheduledFor: models.TimePtr(scheduledFor),
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var count int

	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'workflow_runs')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "workflow_runs table should exist")
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}

func TestTriggers(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	trigger := &models.Trigger{
		ID:        "t-1",
		Type:      models.TriggerTypeRecurringSchedule,
		Workflow:  "wf-1",
		Schedule:  &models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "09:00"},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}

	change, err := p.Triggers().SaveTrigger(ctx, trigger)
	require.NoError(t, err)
	assert.Nil(t, change.Before)

	trigger.Schedule.AtTime = "10:30"

	change, err = p.Triggers().SaveTrigger(ctx, trigger)
	require.NoError(t, err)
	require.NotNil(t, change.Before)
	assert.Equal(t, "09:00", change.Before.Schedule.AtTime)

	triggers, err := p.Triggers().TriggersByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, "10:30", triggers[0].Schedule.AtTime)

	change, err = p.Triggers().DeleteTrigger(ctx, "t-1")
	require.NoError(t, err)
	assert.Nil(t, change.After)

	_, err = p.Triggers().TriggerByID(ctx, "t-1")
	assert.True(t, persistence.IsTriggerNotFound(err))
}

func TestRuns_CreateAndTransition(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	runs := p.WorkflowRuns()

	run := scheduledRun("t-1", models.RunStatusScheduled, testNow)

	_, err := runs.CreateRun(ctx, run)
	require.NoError(t, err)

	_, err = runs.CreateRun(ctx, run)
	assert.True(t, persistence.IsRunAlreadyExists(err))

	successor := scheduledRun("t-1", models.RunStatusScheduled, testNow.Add(time.Hour))

	changes, err := runs.TransitionRun(ctx, run.ID, models.RunStatusScheduled, func(r *models.WorkflowRun) error {
		r.Status = models.RunStatusPending
		r.QueuedAt = models.TimePtr(testNow)
		r.UpdatedAt = testNow

		return nil
	}, successor)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	_, err = runs.TransitionRun(ctx, run.ID, models.RunStatusScheduled, func(r *models.WorkflowRun) error {
		r.Status = models.RunStatusCancelled

		return nil
	}, nil)
	assert.True(t, persistence.IsStatusConflict(err))

	stored, err := runs.RunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, stored.Status)
	assert.True(t, testNow.Equal(*stored.QueuedAt))

	byWorkflow, err := runs.RunsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 2)
}

func TestRuns_ConcurrentTransitionHasOneWinner(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	runs := p.WorkflowRuns()

	run := scheduledRun("t-1", models.RunStatusScheduled, testNow)
	_, err := runs.CreateRun(ctx, run)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)

	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := runs.TransitionRun(ctx, run.ID, models.RunStatusScheduled, func(r *models.WorkflowRun) error {
				r.Status = models.RunStatusPending

				return nil
			}, nil)

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				winners++
			} else if persistence.IsStatusConflict(err) {
				conflicts++
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 4, conflicts)
}

func TestRuns_CancelFutureRuns(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	runs := p.WorkflowRuns()

	future := scheduledRun("t-1", models.RunStatusScheduled, testNow.Add(time.Hour))
	kept := scheduledRun("t-1", models.RunStatusPendingScheduling, testNow.Add(time.Hour))
	past := scheduledRun("t-1", models.RunStatusScheduled, testNow.Add(-time.Hour))
	other := scheduledRun("t-2", models.RunStatusScheduled, testNow.Add(time.Hour))

	for _, run := range []*models.WorkflowRun{future, kept, past, other} {
		_, err := runs.CreateRun(ctx, run)
		require.NoError(t, err)
	}

	changes, err := runs.CancelFutureRuns(ctx, "t-1", "Trigger deleted", testNow, kept.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, future.ID, changes[0].After.ID)
	assert.Equal(t, "Trigger deleted", changes[0].After.CancellationReason)

	stale, err := runs.RunsByStatus(ctx, []models.RunStatus{models.RunStatusScheduled}, testNow.Add(time.Second))
	require.NoError(t, err)

	ids := make([]string, 0, len(stale))
	for _, run := range stale {
		ids = append(ids, run.ID)
	}

	assert.ElementsMatch(t, []string{past.ID, other.ID}, ids)
}

func TestDirectory(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	require.NoError(t, p.Workflows().SaveWorkflow(ctx, &models.Workflow{ID: "wf-1", Organization: "org-1"}))
	require.NoError(t, p.Organizations().SaveOrganization(ctx, &models.Organization{
		ID:                            "org-1",
		Owner:                         "u-1",
		Members:                       []string{"u-2"},
		SendErrorNotificationsToOwner: true,
	}))
	require.NoError(t, p.Users().SaveUser(ctx, &models.User{ID: "u-1", Email: "owner@example.com"}))
	require.NoError(t, p.Users().SaveUser(ctx, &models.User{ID: "u-2", Email: "member@example.com"}))

	organization, err := p.Organizations().OrganizationByID(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, organization.SendErrorNotificationsToOwner)
	assert.Equal(t, []string{"u-2"}, organization.Members)

	_, err = p.Workflows().WorkflowByID(ctx, "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	users, err := p.Users().UsersByIDs(ctx, []string{"u-2", "u-1", "u-3"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "owner@example.com", users[0].Email)
}
