package sqlstore

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/vytor/phonicsmastery/internal/db"
	"github.com/vytor/phonicsmastery/internal/logger"
	"github.com/vytor/phonicsmastery/internal/models"
	"github.com/vytor/phonicsmastery/internal/repository"
)

type importLogRepository struct {
	db *db.DB
	sb squirrel.StatementBuilderType
}

// NewImportLogRepository creates a new ImportLogRepository implementation
func NewImportLogRepository(database *db.DB) repository.ImportLogRepository {
	return &importLogRepository{db: database, sb: database.Dialect.Builder()}
}

func (r *importLogRepository) Record(ctx context.Context, run models.ImportRun) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("import_log_repo")
	log.Debug("recording import run: source=%s, read=%d, imported=%d", run.Source, run.RowsRead, run.RowsImported)

	if run.ImportedAt.IsZero() {
		run.ImportedAt = time.Now()
	}

	var id int64
	err := r.sb.Insert("legacy_imports").
		Columns("source", "rows_read", "rows_imported", "rows_skipped", "imported_at").
		Values(run.Source, run.RowsRead, run.RowsImported, run.RowsSkipped, run.ImportedAt.UTC()).
		Suffix("RETURNING id").
		RunWith(r.db.DB).
		QueryRowContext(ctx).
		Scan(&id)
	if err != nil {
		log.Error("failed to record import run: %v", err)
		return 0, err
	}
	return id, nil
}

func (r *importLogRepository) List(ctx context.Context, limit int) ([]models.ImportRun, error) {
	log := logger.FromContext(ctx).WithPrefix("import_log_repo")

	q := r.sb.Select("id", "source", "rows_read", "rows_imported", "rows_skipped", "imported_at").
		From("legacy_imports").
		OrderBy("id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	rows, err := q.RunWith(r.db.DB).QueryContext(ctx)
	if err != nil {
		log.Error("failed to list import runs: %v", err)
		return nil, err
	}
	defer rows.Close()

	var runs []models.ImportRun
	for rows.Next() {
		var run models.ImportRun
		if err := rows.Scan(&run.ID, &run.Source, &run.RowsRead, &run.RowsImported, &run.RowsSkipped, &run.ImportedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
