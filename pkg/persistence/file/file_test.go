package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence"
	"github.com/zachsents/minus-sub000/pkg/persistence/file"
)

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) *file.Persistence {
	t.Helper()

	return file.NewPersistence("file://" + t.TempDir())
}

func newRun(id, trigger string, status models.RunStatus, scheduledFor *time.Time) *models.WorkflowRun {
	return &models.WorkflowRun{
		ID:           id,
		Workflow:     "wf-1",
		Trigger:      trigger,
		Status:       status,
		ScheduledFor: scheduledFor,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	p := setup(t)
	assert.NoError(t, p.HealthCheck(context.Background()))

	missing := file.NewPersistence("/does/not/exist/anywhere")
	assert.Error(t, missing.HealthCheck(context.Background()))
}

func TestTriggerLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setup(t).Triggers()

	trigger := &models.Trigger{
		ID:        "t-1",
		Type:      models.TriggerTypeRecurringSchedule,
		Workflow:  "wf-1",
		Schedule:  &models.RecurringSchedule{Interval: 5, IntervalUnit: models.IntervalMinute},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}

	change, err := repo.SaveTrigger(ctx, trigger)
	require.NoError(t, err)
	assert.Nil(t, change.Before)
	assert.Equal(t, "t-1", change.After.ID)

	trigger.Schedule.Interval = 10
	trigger.UpdatedAt = testNow.Add(time.Minute)

	change, err = repo.SaveTrigger(ctx, trigger)
	require.NoError(t, err)
	require.NotNil(t, change.Before)
	assert.Equal(t, 5, change.Before.Schedule.Interval)
	assert.Equal(t, 10, change.After.Schedule.Interval)

	byWorkflow, err := repo.TriggersByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 1)

	change, err = repo.DeleteTrigger(ctx, "t-1")
	require.NoError(t, err)
	assert.Nil(t, change.After)
	assert.Equal(t, 10, change.Before.Schedule.Interval)

	_, err = repo.TriggerByID(ctx, "t-1")
	assert.True(t, persistence.IsTriggerNotFound(err))

	_, err = repo.DeleteTrigger(ctx, "t-1")
	assert.True(t, persistence.IsTriggerNotFound(err))
}

func TestCreateRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setup(t).WorkflowRuns()

	change, err := repo.CreateRun(ctx, newRun("r-1", "t-1", models.RunStatusPending, nil))
	require.NoError(t, err)
	assert.Nil(t, change.Before)
	assert.Equal(t, models.RunStatusPending, change.After.Status)

	_, err = repo.CreateRun(ctx, newRun("r-1", "t-1", models.RunStatusScheduled, nil))
	assert.True(t, persistence.IsRunAlreadyExists(err))

	stored, err := repo.RunByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPending, stored.Status)

	_, err = repo.RunByID(ctx, "missing")
	assert.True(t, persistence.IsRunNotFound(err))
}

func TestTransitionRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setup(t).WorkflowRuns()

	_, err := repo.CreateRun(ctx, newRun("r-1", "t-1", models.RunStatusScheduled, models.TimePtr(testNow)))
	require.NoError(t, err)

	successor := newRun("r-2", "t-1", models.RunStatusScheduled, models.TimePtr(testNow.Add(time.Hour)))

	changes, err := repo.TransitionRun(ctx, "r-1", models.RunStatusScheduled, func(run *models.WorkflowRun) error {
		run.Status = models.RunStatusPending
		run.QueuedAt = models.TimePtr(testNow)

		return nil
	}, successor)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, models.RunStatusScheduled, changes[0].Before.Status)
	assert.Equal(t, models.RunStatusPending, changes[0].After.Status)
	assert.Nil(t, changes[1].Before)
	assert.Equal(t, "r-2", changes[1].After.ID)

	t.Run("status guard", func(t *testing.T) {
		_, err := repo.TransitionRun(ctx, "r-1", models.RunStatusScheduled, func(run *models.WorkflowRun) error {
			run.Status = models.RunStatusCancelled

			return nil
		}, nil)
		assert.True(t, persistence.IsStatusConflict(err))

		stored, err := repo.RunByID(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusPending, stored.Status)
	})

	t.Run("existing successor is not duplicated", func(t *testing.T) {
		changes, err := repo.TransitionRun(ctx, "r-1", models.RunStatusPending, func(run *models.WorkflowRun) error {
			run.Status = models.RunStatusRunning

			return nil
		}, successor)
		require.NoError(t, err)
		assert.Len(t, changes, 1)
	})

	t.Run("failed successor write leaves run unchanged", func(t *testing.T) {
		_, err := repo.CreateRun(ctx, newRun("r-3", "t-1", models.RunStatusScheduled, models.TimePtr(testNow)))
		require.NoError(t, err)

		// a path separator in the id makes the write fail
		broken := newRun("missing/r-4", "t-1", models.RunStatusPendingScheduling, models.TimePtr(testNow.Add(time.Hour)))

		_, err = repo.TransitionRun(ctx, "r-3", models.RunStatusScheduled, func(run *models.WorkflowRun) error {
			run.Status = models.RunStatusPending

			return nil
		}, broken)
		require.Error(t, err)

		stored, err := repo.RunByID(ctx, "r-3")
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusScheduled, stored.Status)
	})

	t.Run("mutation error aborts", func(t *testing.T) {
		_, err := repo.TransitionRun(ctx, "r-1", models.RunStatusRunning, func(*models.WorkflowRun) error {
			return assert.AnError
		}, nil)
		require.ErrorIs(t, err, assert.AnError)

		stored, err := repo.RunByID(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusRunning, stored.Status)
	})
}

func TestCancelFutureRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := setup(t).WorkflowRuns()

	future := models.TimePtr(testNow.Add(time.Hour))
	runs := []*models.WorkflowRun{
		newRun("future", "t-1", models.RunStatusScheduled, future),
		newRun("pending-scheduling", "t-1", models.RunStatusPendingScheduling, future),
		newRun("kept", "t-1", models.RunStatusPendingScheduling, future),
		newRun("past", "t-1", models.RunStatusScheduled, models.TimePtr(testNow.Add(-time.Hour))),
		newRun("other", "t-2", models.RunStatusScheduled, future),
		newRun("done", "t-1", models.RunStatusCompleted, future),
	}

	for _, run := range runs {
		_, err := repo.CreateRun(ctx, run)
		require.NoError(t, err)
	}

	changes, err := repo.CancelFutureRuns(ctx, "t-1", "Trigger changed", testNow, "kept")
	require.NoError(t, err)

	cancelled := map[string]bool{}
	for _, change := range changes {
		cancelled[change.After.ID] = true
		assert.Equal(t, models.RunStatusCancelled, change.After.Status)
		assert.Equal(t, "Trigger changed", change.After.CancellationReason)
		assert.Equal(t, testNow, *change.After.CancelledAt)
	}

	assert.Equal(t, map[string]bool{"future": true, "pending-scheduling": true}, cancelled)

	stale, err := repo.RunsByStatus(ctx, []models.RunStatus{models.RunStatusPendingScheduling, models.RunStatusScheduled}, testNow.Add(time.Second))
	require.NoError(t, err)

	ids := make([]string, 0, len(stale))
	for _, run := range stale {
		ids = append(ids, run.ID)
	}

	assert.ElementsMatch(t, []string{"kept", "past", "other"}, ids)
}

func TestDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := setup(t)

	require.NoError(t, p.Workflows().SaveWorkflow(ctx, &models.Workflow{ID: "wf-1", Name: "Daily report", Organization: "org-1"}))
	require.NoError(t, p.Organizations().SaveOrganization(ctx, &models.Organization{ID: "org-1", Owner: "u-1"}))
	require.NoError(t, p.Users().SaveUser(ctx, &models.User{ID: "u-1", Email: "owner@example.com"}))

	workflow, err := p.Workflows().WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "org-1", workflow.Organization)

	_, err = p.Workflows().WorkflowByID(ctx, "wf-2")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = p.Organizations().OrganizationByID(ctx, "org-2")
	assert.True(t, persistence.IsOrganizationNotFound(err))

	users, err := p.Users().UsersByIDs(ctx, []string{"u-1", "u-unknown"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "owner@example.com", users[0].Email)
}
