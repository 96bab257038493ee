package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vytor/phonicsmastery/internal/curriculum"
	"github.com/vytor/phonicsmastery/internal/errors"
	"github.com/vytor/phonicsmastery/internal/logger"
	"github.com/vytor/phonicsmastery/internal/mastery"
	"github.com/vytor/phonicsmastery/internal/models"
	"github.com/vytor/phonicsmastery/internal/repository"
)

const importBatchSize = 500

// Columns of the legacy progress export, matched by header name.
const (
	colLearnerID  = "learner_id"
	colUnitNumber = "unit_number"
	colGameType   = "game_type"
	colPercent    = "progress_percent"
	colUpdatedAt  = "updated_at"
)

var legacyTimeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

// ImportService loads progress exported from the legacy table, which keys
// rows by unit number instead of unit ID.
type ImportService interface {
	ImportFile(ctx context.Context, path string) (*models.ImportRun, error)
	ImportCSV(ctx context.Context, source string, r io.Reader) (*models.ImportRun, error)
	ImportXLSX(ctx context.Context, source string, r io.Reader) (*models.ImportRun, error)
	History(ctx context.Context, limit int) ([]models.ImportRun, error)
}

type importService struct {
	progressRepo repository.ProgressRepository
	importRepo   repository.ImportLogRepository
	content      *curriculum.Curriculum
	now          func() time.Time
}

// NewImportService creates a new ImportService
func NewImportService(progressRepo repository.ProgressRepository, importRepo repository.ImportLogRepository, content *curriculum.Curriculum) ImportService {
	return &importService{
		progressRepo: progressRepo,
		importRepo:   importRepo,
		content:      content,
		now:          time.Now,
	}
}

// ImportFile picks the reader from the file extension.
func (s *importService) ImportFile(ctx context.Context, path string) (*models.ImportRun, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewBadRequestError(fmt.Sprintf("cannot open %s: %v", path, err))
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return s.ImportCSV(ctx, filepath.Base(path), file)
	case ".xlsx":
		return s.ImportXLSX(ctx, filepath.Base(path), file)
	default:
		return nil, errors.NewBadRequestError("unsupported import file type: " + filepath.Ext(path))
	}
}

func (s *importService) ImportCSV(ctx context.Context, source string, r io.Reader) (*models.ImportRun, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewBadRequestError(fmt.Sprintf("read csv: %v", err))
	}
	return s.importRecords(ctx, source, records)
}

func (s *importService) ImportXLSX(ctx context.Context, source string, r io.Reader) (*models.ImportRun, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.NewBadRequestError(fmt.Sprintf("open workbook: %v", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewBadRequestError("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.NewBadRequestError(fmt.Sprintf("read sheet %s: %v", sheets[0], err))
	}
	return s.importRecords(ctx, source, rows)
}

func (s *importService) History(ctx context.Context, limit int) ([]models.ImportRun, error) {
	runs, err := s.importRepo.List(ctx, limit)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list import runs: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return runs, nil
}

func (s *importService) importRecords(ctx context.Context, source string, records [][]string) (*models.ImportRun, error) {
	log := logger.FromContext(ctx).WithField("source", source)
	log.Info("importing legacy progress")

	if len(records) == 0 {
		return nil, errors.NewBadRequestError("import file is empty")
	}
	cols, err := headerIndex(records[0])
	if err != nil {
		return nil, errors.NewBadRequestError(err.Error())
	}

	importedAt := s.now().UTC()
	run := &models.ImportRun{Source: source, ImportedAt: importedAt}
	var batch []models.ActivityProgress

	for i, record := range records[1:] {
		line := i + 2
		if blank(record) {
			continue
		}
		run.RowsRead++

		row, err := parseLegacyRow(line, record, cols, importedAt)
		if err == nil {
			var p models.ActivityProgress
			p, err = s.translate(row)
			if err == nil {
				batch = append(batch, p)
			}
		}
		if err != nil {
			run.Problems = append(run.Problems, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		if len(batch) == importBatchSize {
			if err := s.flush(ctx, run, batch); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}
	if err := s.flush(ctx, run, batch); err != nil {
		return nil, err
	}
	run.RowsSkipped = run.RowsRead - run.RowsImported

	id, err := s.importRepo.Record(ctx, *run)
	if err != nil {
		log.Error("failed to record import run: %v", err)
		return nil, errors.NewInternalError(err)
	}
	run.ID = id

	log.Info("import finished: read=%d imported=%d skipped=%d", run.RowsRead, run.RowsImported, run.RowsSkipped)
	return run, nil
}

func (s *importService) flush(ctx context.Context, run *models.ImportRun, batch []models.ActivityProgress) error {
	if len(batch) == 0 {
		return nil
	}
	changed, err := s.progressRepo.UpsertBatch(ctx, batch)
	if err != nil {
		logger.FromContext(ctx).Error("failed to import batch: %v", err)
		return errors.NewInternalError(err)
	}
	run.RowsImported += changed
	return nil
}

// translate maps a legacy row onto the canonical key. Percents outside
// 0..100 written by older clients are clamped before rounding.
func (s *importService) translate(row models.LegacyRow) (models.ActivityProgress, error) {
	unit, err := s.content.UnitByNumber(row.UnitNumber)
	if err != nil {
		return models.ActivityProgress{}, err
	}
	activity, ok := models.ParseActivityType(row.GameType)
	if !ok || !s.content.Offers(activity) {
		return models.ActivityProgress{}, fmt.Errorf("unknown game type %q", row.GameType)
	}
	return models.ActivityProgress{
		LearnerID: row.LearnerID,
		UnitID:    unit.ID,
		Activity:  activity,
		Percent:   int(math.Round(math.Max(mastery.MinPercent, math.Min(mastery.MaxPercent, row.ProgressPercent)))),
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, name := range []string{colLearnerID, colUnitNumber, colGameType, colPercent} {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseLegacyRow(line int, record []string, cols map[string]int, fallback time.Time) (models.LegacyRow, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := models.LegacyRow{Line: line, LearnerID: models.NormalizeLearnerID(get(colLearnerID)), GameType: get(colGameType), UpdatedAt: fallback}
	if row.LearnerID == "" {
		return row, fmt.Errorf("missing %s", colLearnerID)
	}

	n, err := strconv.Atoi(get(colUnitNumber))
	if err != nil {
		return row, fmt.Errorf("invalid %s %q", colUnitNumber, get(colUnitNumber))
	}
	row.UnitNumber = n

	pct, err := strconv.ParseFloat(get(colPercent), 64)
	if err != nil || math.IsNaN(pct) || math.IsInf(pct, 0) {
		return row, fmt.Errorf("invalid %s %q", colPercent, get(colPercent))
	}
	row.ProgressPercent = pct

	if raw := get(colUpdatedAt); raw != "" {
		ts, err := parseLegacyTime(raw)
		if err != nil {
			return row, err
		}
		row.UpdatedAt = ts
	}
	return row, nil
}

func parseLegacyTime(raw string) (time.Time, error) {
	for _, layout := range legacyTimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q", colUpdatedAt, raw)
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
