package tasks_test

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zachsents/minus-sub000/pkg/tasks"
)

type runPayload struct {
	RunID string `json:"runId"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fastOptions() tasks.Options {
	return tasks.Options{MaxAttempts: 3, InitialBackoff: 5 * time.Millisecond, MaxBackoff: 10 * time.Millisecond}
}

func TestMemoryQueue_RunsTaskAtDueTime(t *testing.T) {
	ctx := context.Background()
	queue := tasks.NewMemoryQueue(testLogger(), fastOptions())

	received := make(chan string, 1)

	queue.Handle(tasks.QueueRunScheduledScript, func(_ context.Context, task tasks.Task) error {
		var payload runPayload

		require.NoError(t, task.Decode(&payload))
		received <- payload.RunID

		return nil
	})
	require.NoError(t, queue.Start(ctx))

	defer func() { _ = queue.Stop(ctx) }()

	start := time.Now()
	require.NoError(t, queue.Enqueue(ctx, tasks.QueueRunScheduledScript, "run-1", runPayload{RunID: "run-1"}, start.Add(50*time.Millisecond)))

	select {
	case runID := <-received:
		assert.Equal(t, "run-1", runID)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestMemoryQueue_DeduplicatesPendingTasks(t *testing.T) {
	ctx := context.Background()
	queue := tasks.NewMemoryQueue(testLogger(), fastOptions())

	var calls atomic.Int32

	queue.Handle(tasks.QueueExecuteWorkflowRun, func(context.Context, tasks.Task) error {
		calls.Add(1)

		return nil
	})
	require.NoError(t, queue.Start(ctx))

	defer func() { _ = queue.Stop(ctx) }()

	runAt := time.Now().Add(30 * time.Millisecond)
	for range 3 {
		require.NoError(t, queue.Enqueue(ctx, tasks.QueueExecuteWorkflowRun, "run-1", runPayload{RunID: "run-1"}, runAt))
	}

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMemoryQueue_RetriesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	queue := tasks.NewMemoryQueue(testLogger(), fastOptions())

	var attempts atomic.Int32

	queue.Handle(tasks.QueueExecuteWorkflowRun, func(_ context.Context, task tasks.Task) error {
		attempts.Add(1)
		assert.Equal(t, int(attempts.Load()), task.Attempt)

		return assert.AnError
	})
	require.NoError(t, queue.Start(ctx))

	defer func() { _ = queue.Stop(ctx) }()

	require.NoError(t, queue.Enqueue(ctx, tasks.QueueExecuteWorkflowRun, "run-1", runPayload{RunID: "run-1"}, time.Now()))

	assert.Eventually(t, func() bool { return attempts.Load() == 3 }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestMemoryQueue_StopDropsPendingTasks(t *testing.T) {
	ctx := context.Background()
	queue := tasks.NewMemoryQueue(testLogger(), fastOptions())

	var calls atomic.Int32

	queue.Handle(tasks.QueueRunScheduledScript, func(context.Context, tasks.Task) error {
		calls.Add(1)

		return nil
	})
	require.NoError(t, queue.Start(ctx))
	require.NoError(t, queue.Enqueue(ctx, tasks.QueueRunScheduledScript, "run-1", runPayload{}, time.Now().Add(50*time.Millisecond)))
	require.NoError(t, queue.Stop(ctx))

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
