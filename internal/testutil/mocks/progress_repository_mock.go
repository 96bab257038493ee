package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/phonicsmastery/internal/models"
)

// MockProgressRepository is a mock implementation of repository.ProgressRepository
type MockProgressRepository struct {
	mock.Mock
}

func (m *MockProgressRepository) Get(ctx context.Context, key models.ProgressKey) (*models.ActivityProgress, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ActivityProgress), args.Error(1)
}

func (m *MockProgressRepository) Upsert(ctx context.Context, p models.ActivityProgress) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProgressRepository) UpsertBatch(ctx context.Context, rows []models.ActivityProgress) (int, error) {
	args := m.Called(ctx, rows)
	return args.Int(0), args.Error(1)
}

func (m *MockProgressRepository) ListByUnit(ctx context.Context, learnerID, unitID string) ([]models.ActivityProgress, error) {
	args := m.Called(ctx, learnerID, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActivityProgress), args.Error(1)
}

func (m *MockProgressRepository) ListByUnits(ctx context.Context, learnerID string, unitIDs []string) ([]models.ActivityProgress, error) {
	args := m.Called(ctx, learnerID, unitIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActivityProgress), args.Error(1)
}

func (m *MockProgressRepository) ListByLearner(ctx context.Context, learnerID string) ([]models.ActivityProgress, error) {
	args := m.Called(ctx, learnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ActivityProgress), args.Error(1)
}
