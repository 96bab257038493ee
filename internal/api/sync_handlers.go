package api

import (
	"context"
	"net/http"
	"time"

	"github.com/vytor/phonicsmastery/internal/models"
)

const defaultFlushTimeout = 5 * time.Second

type syncResponse struct {
	Synced   bool                   `json:"synced"`
	Unsynced []models.UnsyncedWrite `json:"unsynced"`
}

// handleSyncStatus lists the learner's writes that gave up after retrying.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	failed := s.MasteryService.Unsynced(r.Context(), learnerFromContext(r.Context()))
	if failed == nil {
		failed = []models.UnsyncedWrite{}
	}
	writeJSON(w, r, http.StatusOK, syncResponse{Synced: len(failed) == 0, Unsynced: failed})
}

// handleFlush blocks until queued writes finish, failing with 503 if any of
// the learner's writes could not be saved.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	timeout := s.FlushTimeout
	if timeout <= 0 {
		timeout = defaultFlushTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	if err := s.MasteryService.Flush(ctx, learnerFromContext(r.Context())); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, syncResponse{Synced: true, Unsynced: []models.UnsyncedWrite{}})
}
