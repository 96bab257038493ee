package models

import "time"

// LegacyRow is one progress row exported from the old relational table,
// keyed by unit number rather than unit ID.
type LegacyRow struct {
	Line            int
	LearnerID       string
	UnitNumber      int
	GameType        string
	ProgressPercent float64
	UpdatedAt       time.Time
}

// ImportRun summarizes one legacy import.
type ImportRun struct {
	ID           int64     `json:"id"`
	Source       string    `json:"source"`
	RowsRead     int       `json:"rows_read"`
	RowsImported int       `json:"rows_imported"`
	RowsSkipped  int       `json:"rows_skipped"`
	Problems     []string  `json:"problems,omitempty"`
	ImportedAt   time.Time `json:"imported_at"`
}
