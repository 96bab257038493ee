package repository

import (
	"context"
	"errors"

	"github.com/vytor/phonicsmastery/internal/models"
)

// ErrStaleWrite is returned by Upsert when the stored row is newer than the
// incoming one and the write changed nothing.
var ErrStaleWrite = errors.New("stored progress is newer than the write")

// ProgressRepository handles activity progress data access. Every write is an
// upsert on (learner_id, unit_id, activity_type); a row whose stored
// updated_at is newer than the incoming one is left untouched.
type ProgressRepository interface {
	// Get returns nil, nil when the key has no row yet.
	Get(ctx context.Context, key models.ProgressKey) (*models.ActivityProgress, error)
	Upsert(ctx context.Context, p models.ActivityProgress) error
	// UpsertBatch writes rows in one transaction and reports how many changed.
	UpsertBatch(ctx context.Context, rows []models.ActivityProgress) (int, error)
	ListByUnit(ctx context.Context, learnerID, unitID string) ([]models.ActivityProgress, error)
	ListByUnits(ctx context.Context, learnerID string, unitIDs []string) ([]models.ActivityProgress, error)
	ListByLearner(ctx context.Context, learnerID string) ([]models.ActivityProgress, error)
}

// ImportLogRepository records legacy import runs.
type ImportLogRepository interface {
	Record(ctx context.Context, run models.ImportRun) (int64, error)
	List(ctx context.Context, limit int) ([]models.ImportRun, error)
}
