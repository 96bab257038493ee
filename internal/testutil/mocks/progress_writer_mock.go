package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/phonicsmastery/internal/models"
)

// MockProgressWriter is a mock implementation of services.ProgressWriter
type MockProgressWriter struct {
	mock.Mock
}

func (m *MockProgressWriter) Enqueue(p models.ActivityProgress) models.SyncStatus {
	args := m.Called(p)
	return args.Get(0).(models.SyncStatus)
}

func (m *MockProgressWriter) Latest(key models.ProgressKey) (models.ActivityProgress, bool) {
	args := m.Called(key)
	return args.Get(0).(models.ActivityProgress), args.Bool(1)
}

func (m *MockProgressWriter) LatestFor(learnerID string) []models.ActivityProgress {
	args := m.Called(learnerID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.ActivityProgress)
}

func (m *MockProgressWriter) Unsynced(learnerID string) []models.UnsyncedWrite {
	args := m.Called(learnerID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.UnsyncedWrite)
}

func (m *MockProgressWriter) Drain(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
