package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vytor/phonicsmastery/internal/db"
	"github.com/vytor/phonicsmastery/internal/models"
)

// NewTestDB opens a private in-memory SQLite database with all migrations
// applied. It is closed when the test ends.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	database, err := db.Open(string(db.DialectSQLite), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// MustClose closes a resource and fails the test on error.
func MustClose(t *testing.T, closer interface{ Close() error }) {
	require.NoError(t, closer.Close())
}

// Key builds a progress key for the given learner and unit.
func Key(learnerID, unitID string, a models.ActivityType) models.ProgressKey {
	return models.ProgressKey{LearnerID: learnerID, UnitID: unitID, Activity: a}
}

// Progress builds a row stamped at the given offset from a fixed instant.
func Progress(key models.ProgressKey, percent int, offset time.Duration) models.ActivityProgress {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return models.ActivityProgress{
		LearnerID: key.LearnerID,
		UnitID:    key.UnitID,
		Activity:  key.Activity,
		Percent:   percent,
		UpdatedAt: base.Add(offset),
	}
}
