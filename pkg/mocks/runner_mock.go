package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockExecutor is a mock implementation of runner.Executor interface.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, runID string) error {
	args := m.Called(ctx, runID)

	return args.Error(0)
}
