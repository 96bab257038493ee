package services

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/vytor/phonicsmastery/internal/curriculum"
	"github.com/vytor/phonicsmastery/internal/errors"
	"github.com/vytor/phonicsmastery/internal/logger"
)

const summarySheet = "Summary"

// ReportService renders a learner's progress as a spreadsheet for educators
// and parents.
type ReportService interface {
	ExportProgress(ctx context.Context, learnerID string, w io.Writer) error
}

type reportService struct {
	mastery MasteryService
	content *curriculum.Curriculum
}

// NewReportService creates a new ReportService
func NewReportService(mastery MasteryService, content *curriculum.Curriculum) ReportService {
	return &reportService{mastery: mastery, content: content}
}

// ExportProgress writes an XLSX workbook with a summary sheet and one sheet
// per level listing every unit's activity percents.
func (s *reportService) ExportProgress(ctx context.Context, learnerID string, w io.Writer) error {
	log := logger.FromContext(ctx)
	log.Debug("exporting progress report: learner_id=%s", learnerID)

	stats, err := s.mastery.Stats(ctx, learnerID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Warn("failed to close workbook: %v", cerr)
		}
	}()
	f.SetSheetName("Sheet1", summarySheet)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.NewInternalError(err)
	}

	summary := [][]any{
		{"Learner", stats.LearnerID},
		{"Activities started", stats.ActivitiesStarted},
		{"Activities completed", stats.ActivitiesCompleted},
		{"Units completed", stats.UnitsCompleted},
		{"Total points", stats.TotalPoints},
		{"Current level", stats.CurrentLevelID},
		{"Current unit", stats.CurrentUnitID},
	}
	for i, row := range summary {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return errors.NewInternalError(err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return errors.NewInternalError(err)
	}

	roster := s.content.Roster()
	for _, level := range s.content.Levels() {
		lp, err := s.mastery.LevelProgress(ctx, learnerID, level.ID)
		if err != nil {
			return err
		}
		sheet := sheetName(level.ID, level.Title)
		if _, err := f.NewSheet(sheet); err != nil {
			return errors.NewInternalError(err)
		}

		header := []any{"Unit", "Title"}
		for _, a := range roster {
			header = append(header, string(a))
		}
		header = append(header, "Unit %")
		if err := setRow(f, sheet, 1, header); err != nil {
			return errors.NewInternalError(err)
		}
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return errors.NewInternalError(err)
		}

		for i, up := range lp.Units {
			row := []any{up.UnitNumber, up.Title}
			for _, a := range roster {
				row = append(row, up.Activities[a])
			}
			row = append(row, up.Percent)
			if err := setRow(f, sheet, i+2, row); err != nil {
				return errors.NewInternalError(err)
			}
		}
		if err := setRow(f, sheet, len(lp.Units)+2, []any{"Level", lp.Title, lp.Percent}); err != nil {
			return errors.NewInternalError(err)
		}
	}

	if err := f.Write(w); err != nil {
		log.Error("failed to write workbook: %v", err)
		return errors.NewInternalError(err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// sheetName strips characters Excel rejects and trims to its 31 rune limit.
func sheetName(id, title string) string {
	name := id
	if title != "" {
		name = id + " " + title
	}
	var out []rune
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			continue
		}
		out = append(out, r)
	}
	if len(out) > 31 {
		out = out[:31]
	}
	return string(out)
}
