package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockDispatcher is a mock implementation of tasks.Dispatcher interface.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Enqueue(ctx context.Context, queue, id string, payload any, runAt time.Time) error {
	args := m.Called(ctx, queue, id, payload, runAt)

	return args.Error(0)
}
