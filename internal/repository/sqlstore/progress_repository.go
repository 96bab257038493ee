package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/phonicsmastery/internal/db"
	"github.com/vytor/phonicsmastery/internal/logger"
	"github.com/vytor/phonicsmastery/internal/models"
	"github.com/vytor/phonicsmastery/internal/repository"
)

const progressTable = "activity_progress"

var progressColumns = []string{"learner_id", "unit_id", "activity_type", "percent", "updated_at"}

// Older writes never replace newer ones, so a late retry cannot roll a key back.
const upsertProgressSuffix = `ON CONFLICT (learner_id, unit_id, activity_type) DO UPDATE
SET percent = excluded.percent, updated_at = excluded.updated_at
WHERE activity_progress.updated_at <= excluded.updated_at`

type progressRepository struct {
	db *db.DB
	sb squirrel.StatementBuilderType
}

// NewProgressRepository creates a ProgressRepository for either dialect.
func NewProgressRepository(database *db.DB) repository.ProgressRepository {
	return &progressRepository{db: database, sb: database.Dialect.Builder()}
}

func (r *progressRepository) Get(ctx context.Context, key models.ProgressKey) (*models.ActivityProgress, error) {
	log := logger.FromContext(ctx).WithPrefix("progress_repo")
	log.Debug("getting progress: key=%s", key)

	var p models.ActivityProgress
	err := r.sb.Select(progressColumns...).
		From(progressTable).
		Where(squirrel.Eq{
			"learner_id":    key.LearnerID,
			"unit_id":       key.UnitID,
			"activity_type": string(key.Activity),
		}).
		RunWith(r.db.DB).
		QueryRowContext(ctx).
		Scan(&p.LearnerID, &p.UnitID, &p.Activity, &p.Percent, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("no progress yet: key=%s", key)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get progress: %v", err)
		return nil, err
	}
	return &p, nil
}

func (r *progressRepository) upsertQuery(p models.ActivityProgress) squirrel.InsertBuilder {
	return r.sb.Insert(progressTable).
		Columns(progressColumns...).
		Values(p.LearnerID, p.UnitID, string(p.Activity), p.Percent, p.UpdatedAt.UTC()).
		Suffix(upsertProgressSuffix)
}

func (r *progressRepository) Upsert(ctx context.Context, p models.ActivityProgress) error {
	log := logger.FromContext(ctx).WithPrefix("progress_repo")
	log.Debug("upserting progress: key=%s, percent=%d", p.Key(), p.Percent)

	res, err := r.upsertQuery(p).RunWith(r.db.DB).ExecContext(ctx)
	if err != nil {
		log.Error("failed to upsert progress: %v", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		log.Error("failed to read upsert result: %v", err)
		return err
	}
	if n == 0 {
		log.Warn("stale progress write rejected: key=%s, updated_at=%s", p.Key(), p.UpdatedAt.UTC().Format(time.RFC3339Nano))
		return repository.ErrStaleWrite
	}
	return nil
}

func (r *progressRepository) UpsertBatch(ctx context.Context, rows []models.ActivityProgress) (int, error) {
	log := logger.FromContext(ctx).WithPrefix("progress_repo")
	log.Debug("upserting %d progress rows", len(rows))

	changed := 0
	err := r.db.Tx(ctx, func(tx *sql.Tx) error {
		for _, p := range rows {
			res, err := r.upsertQuery(p).RunWith(tx).ExecContext(ctx)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			changed += int(n)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to upsert progress batch: %v", err)
		return 0, err
	}
	log.Debug("progress batch applied: changed=%d", changed)
	return changed, nil
}

func (r *progressRepository) ListByUnit(ctx context.Context, learnerID, unitID string) ([]models.ActivityProgress, error) {
	return r.list(ctx, squirrel.Eq{"learner_id": learnerID, "unit_id": unitID})
}

func (r *progressRepository) ListByUnits(ctx context.Context, learnerID string, unitIDs []string) ([]models.ActivityProgress, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	return r.list(ctx, squirrel.Eq{"learner_id": learnerID, "unit_id": unitIDs})
}

func (r *progressRepository) ListByLearner(ctx context.Context, learnerID string) ([]models.ActivityProgress, error) {
	return r.list(ctx, squirrel.Eq{"learner_id": learnerID})
}

func (r *progressRepository) list(ctx context.Context, where squirrel.Eq) ([]models.ActivityProgress, error) {
	log := logger.FromContext(ctx).WithPrefix("progress_repo")
	log.Debug("listing progress: filter=%v", where)

	rows, err := r.sb.Select(progressColumns...).
		From(progressTable).
		Where(where).
		OrderBy("unit_id", "activity_type").
		RunWith(r.db.DB).
		QueryContext(ctx)
	if err != nil {
		log.Error("failed to query progress: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []models.ActivityProgress
	for rows.Next() {
		var p models.ActivityProgress
		if err := rows.Scan(&p.LearnerID, &p.UnitID, &p.Activity, &p.Percent, &p.UpdatedAt); err != nil {
			log.Error("failed to scan progress row: %v", err)
			return nil, err
		}
		out = append(out, p)
	}
	log.Debug("found %d progress rows", len(out))
	return out, rows.Err()
}
