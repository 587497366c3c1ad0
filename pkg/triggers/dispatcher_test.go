package triggers_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zachsents/minus-sub000/pkg/events"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/persistence/file"
	"github.com/zachsents/minus-sub000/pkg/triggers"
)

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, opts ...triggers.Option) (*triggers.Dispatcher, *file.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	p := file.NewPersistence(t.TempDir())

	opts = append([]triggers.Option{triggers.WithClock(func() time.Time { return testNow })}, opts...)

	return triggers.NewDispatcher(logger, p, opts...), p
}

func hourlyTrigger(updatedAt time.Time) *models.Trigger {
	return &models.Trigger{
		ID:        "t-1",
		Type:      models.TriggerTypeRecurringSchedule,
		Workflow:  "wf-1",
		Schedule:  &models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalHour, AtMinute: 30},
		CreatedAt: testNow.Add(-24 * time.Hour),
		UpdatedAt: updatedAt,
	}
}

func save(t *testing.T, p *file.Persistence, trigger *models.Trigger) {
	t.Helper()

	_, err := p.Triggers().SaveTrigger(context.Background(), trigger)
	require.NoError(t, err)
}

func futureRun(t *testing.T, p *file.Persistence, id string, scheduledFor time.Time) {
	t.Helper()

	_, err := p.WorkflowRuns().CreateRun(context.Background(), &models.WorkflowRun{
		ID:           id,
		Status:       models.RunStatusScheduled,
		Workflow:     "wf-1",
		Trigger:      "t-1",
		ScheduledFor: &scheduledFor,
		CreatedAt:    testNow.Add(-time.Hour),
		UpdatedAt:    testNow.Add(-time.Hour),
	})
	require.NoError(t, err)
}

func runsOf(t *testing.T, p *file.Persistence) map[models.RunStatus][]*models.WorkflowRun {
	t.Helper()

	all, err := p.WorkflowRuns().RunsByWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)

	byStatus := make(map[models.RunStatus][]*models.WorkflowRun)
	for _, run := range all {
		byStatus[run.Status] = append(byStatus[run.Status], run)
	}

	return byStatus
}

func TestCreateSchedulesFirstRun(t *testing.T) {
	ctx := context.Background()
	dispatcher, p := setup(t)

	trigger := hourlyTrigger(testNow)
	save(t, p, trigger)

	change := events.NewTriggerChanged(nil, trigger)
	require.NoError(t, dispatcher.HandleTriggerChanged(ctx, &change))

	// redelivery of the same event
	require.NoError(t, dispatcher.HandleEvent(ctx, &change))

	byStatus := runsOf(t, p)
	require.Len(t, byStatus[models.RunStatusPendingScheduling], 1)

	run := byStatus[models.RunStatusPendingScheduling][0]
	assert.Equal(t, models.DerivedRunID(change.ID), run.ID)
	assert.Equal(t, "t-1", run.Trigger)
	assert.True(t, testNow.Add(30*time.Minute).Equal(*run.ScheduledFor))
	require.NotNil(t, run.TriggerVersion)
	assert.True(t, trigger.UpdatedAt.Equal(*run.TriggerVersion))
}

func TestUpdateReplacesChain(t *testing.T) {
	ctx := context.Background()
	dispatcher, p := setup(t)

	before := hourlyTrigger(testNow.Add(-time.Hour))
	after := hourlyTrigger(testNow)
	after.Schedule = &models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "09:00"}
	save(t, p, after)

	futureRun(t, p, "r-a", testNow.Add(30*time.Minute))
	futureRun(t, p, "r-b", testNow.Add(90*time.Minute))

	change := events.NewTriggerChanged(before, after)
	require.NoError(t, dispatcher.HandleTriggerChanged(ctx, &change))

	byStatus := runsOf(t, p)
	require.Len(t, byStatus[models.RunStatusCancelled], 2)

	for _, run := range byStatus[models.RunStatusCancelled] {
		assert.Equal(t, triggers.ReasonTriggerChanged, run.CancellationReason)
	}

	require.Len(t, byStatus[models.RunStatusPendingScheduling], 1)
	assert.True(t, time.Date(2024, time.March, 2, 9, 0, 0, 0, time.UTC).Equal(*byStatus[models.RunStatusPendingScheduling][0].ScheduledFor))
}

func TestDeleteCancelsChain(t *testing.T) {
	ctx := context.Background()
	dispatcher, p := setup(t)

	futureRun(t, p, "r-a", testNow.Add(30*time.Minute))
	futureRun(t, p, "r-b", testNow.Add(90*time.Minute))

	change := events.NewTriggerChanged(hourlyTrigger(testNow), nil)
	require.NoError(t, dispatcher.HandleTriggerChanged(ctx, &change))

	byStatus := runsOf(t, p)
	assert.Len(t, byStatus[models.RunStatusCancelled], 2)
	assert.Empty(t, byStatus[models.RunStatusPendingScheduling])
	assert.Empty(t, byStatus[models.RunStatusScheduled])

	for _, run := range byStatus[models.RunStatusCancelled] {
		assert.Equal(t, triggers.ReasonTriggerDeleted, run.CancellationReason)
	}
}

func TestIgnoresNonRecurringTriggers(t *testing.T) {
	ctx := context.Background()
	dispatcher, p := setup(t)

	manual := &models.Trigger{ID: "t-1", Type: models.TriggerTypeManual, Workflow: "wf-1", CreatedAt: testNow, UpdatedAt: testNow}
	save(t, p, manual)

	change := events.NewTriggerChanged(nil, manual)
	require.NoError(t, dispatcher.HandleTriggerChanged(ctx, &change))

	assert.Empty(t, runsOf(t, p))
}

func TestSkipsOutdatedChange(t *testing.T) {
	ctx := context.Background()
	dispatcher, p := setup(t)

	save(t, p, hourlyTrigger(testNow))
	futureRun(t, p, "r-current", testNow.Add(30*time.Minute))

	outdated := events.NewTriggerChanged(hourlyTrigger(testNow.Add(-2*time.Hour)), hourlyTrigger(testNow.Add(-time.Hour)))
	require.NoError(t, dispatcher.HandleTriggerChanged(ctx, &outdated))

	byStatus := runsOf(t, p)
	assert.Len(t, byStatus[models.RunStatusScheduled], 1)
	assert.Empty(t, byStatus[models.RunStatusCancelled])
	assert.Empty(t, byStatus[models.RunStatusPendingScheduling])
}

func TestAnchorsUseConfiguredLocation(t *testing.T) {
	ctx := context.Background()
	eastern := time.FixedZone("EST", -5*60*60)
	dispatcher, p := setup(t, triggers.WithLocation(eastern))

	trigger := hourlyTrigger(testNow)
	trigger.Schedule = &models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "09:00"}
	save(t, p, trigger)

	change := events.NewTriggerChanged(nil, trigger)
	require.NoError(t, dispatcher.HandleTriggerChanged(ctx, &change))

	byStatus := runsOf(t, p)
	require.Len(t, byStatus[models.RunStatusPendingScheduling], 1)
	assert.True(t, time.Date(2024, time.March, 1, 14, 0, 0, 0, time.UTC).Equal(*byStatus[models.RunStatusPendingScheduling][0].ScheduledFor))
}

func TestInvalidScheduleEndsChain(t *testing.T) {
	ctx := context.Background()
	dispatcher, p := setup(t)

	before := hourlyTrigger(testNow.Add(-time.Hour))
	after := hourlyTrigger(testNow)
	after.Schedule = &models.RecurringSchedule{Interval: 1, IntervalUnit: models.IntervalDay, AtTime: "25:99"}
	save(t, p, after)

	futureRun(t, p, "r-a", testNow.Add(30*time.Minute))

	change := events.NewTriggerChanged(before, after)
	require.NoError(t, dispatcher.HandleTriggerChanged(ctx, &change))

	byStatus := runsOf(t, p)
	assert.Len(t, byStatus[models.RunStatusCancelled], 1)
	assert.Empty(t, byStatus[models.RunStatusPendingScheduling])
}

func TestHandleEventRejectsOtherEvents(t *testing.T) {
	dispatcher, _ := setup(t)

	assert.Error(t, dispatcher.HandleEvent(context.Background(), &events.WorkflowRunChanged{}))
}
