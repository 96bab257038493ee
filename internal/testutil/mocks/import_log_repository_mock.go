package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/phonicsmastery/internal/models"
)

// MockImportLogRepository is a mock implementation of repository.ImportLogRepository
type MockImportLogRepository struct {
	mock.Mock
}

func (m *MockImportLogRepository) Record(ctx context.Context, run models.ImportRun) (int64, error) {
	args := m.Called(ctx, run)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockImportLogRepository) List(ctx context.Context, limit int) ([]models.ImportRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ImportRun), args.Error(1)
}
