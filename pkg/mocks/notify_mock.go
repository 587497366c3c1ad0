package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/zachsents/minus-sub000/pkg/models"
	"github.com/zachsents/minus-sub000/pkg/notify"
)

// MockSender is a mock implementation of notify.Sender interface.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, email notify.Email) error {
	args := m.Called(ctx, email)

	return args.Error(0)
}

// MockFailureNotifier is a mock implementation of runs.FailureNotifier interface.
type MockFailureNotifier struct {
	mock.Mock
}

func (m *MockFailureNotifier) NotifyRunFailed(ctx context.Context, run *models.WorkflowRun) error {
	args := m.Called(ctx, run)

	return args.Error(0)
}
