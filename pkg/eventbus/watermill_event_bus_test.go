package eventbus_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zachsents/minus-sub000/pkg/channels/gochannel"
	"github.com/zachsents/minus-sub000/pkg/eventbus"
	"github.com/zachsents/minus-sub000/pkg/events"
	"github.com/zachsents/minus-sub000/pkg/models"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(logger, pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_RoutesByType(t *testing.T) {
	bus := newBus(t)

	var (
		mu       sync.Mutex
		triggers []*events.TriggerChanged
		emails   []*events.EmailRequested
	)

	require.NoError(t, bus.Handle(events.TriggerChangedEvent, func(_ context.Context, event any) error {
		mu.Lock()
		defer mu.Unlock()

		triggers = append(triggers, event.(*events.TriggerChanged))

		return nil
	}))
	require.NoError(t, bus.Handle(events.EmailRequestedEvent, func(_ context.Context, event any) error {
		mu.Lock()
		defer mu.Unlock()

		emails = append(emails, event.(*events.EmailRequested))

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	trigger := &models.Trigger{ID: "t-1", Type: models.TriggerTypeRecurringSchedule}
	require.NoError(t, bus.Publish(ctx, "t-1", events.NewTriggerChanged(nil, trigger)))
	require.NoError(t, bus.Publish(ctx, "r-1", events.NewWorkflowRunChanged(nil, &models.WorkflowRun{ID: "r-1"})))
	require.NoError(t, bus.Publish(ctx, "mail", events.NewEmailRequested([]string{"a@example.com"}, "s", "t", "")))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(triggers) == 1 && len(emails) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, "t-1", triggers[0].After.ID)
	assert.Equal(t, []string{"a@example.com"}, emails[0].To)
}

func TestWatermillEventBus_RedeliversOnError(t *testing.T) {
	bus := newBus(t)

	var (
		mu       sync.Mutex
		attempts int
	)

	require.NoError(t, bus.Handle(events.WorkflowRunChangedEvent, func(_ context.Context, _ any) error {
		mu.Lock()
		defer mu.Unlock()

		attempts++
		if attempts == 1 {
			return assert.AnError
		}

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))
	require.NoError(t, bus.Publish(ctx, "r-1", events.NewWorkflowRunChanged(nil, &models.WorkflowRun{ID: "r-1"})))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return attempts == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatermillEventBus_HandleUnknownType(t *testing.T) {
	bus := newBus(t)

	err := bus.Handle("unknown", func(context.Context, any) error { return nil })
	assert.ErrorIs(t, err, eventbus.ErrUnknownEventType)
}
