package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vytor/phonicsmastery/internal/errors"
	"github.com/vytor/phonicsmastery/internal/models"
)

type outcomeRequest struct {
	Outcome string `json:"outcome"`
}

// activityTarget reads the unit and activity path parameters.
func activityTarget(r *http.Request) (string, models.ActivityType, error) {
	unitID := chi.URLParam(r, "unitID")
	raw := chi.URLParam(r, "activity")
	activity, ok := models.ParseActivityType(raw)
	if !ok {
		return "", "", errors.NewValidationError("activity", "unknown activity type "+raw)
	}
	return unitID, activity, nil
}

func (s *Server) handleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	unitID, activity, err := activityTarget(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	var req outcomeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<12)).Decode(&req); err != nil {
		handleError(w, r, errors.NewBadRequestError("invalid JSON body"))
		return
	}
	outcome, ok := models.ParseOutcome(req.Outcome)
	if !ok {
		handleError(w, r, errors.NewValidationError("outcome", "must be correct or incorrect"))
		return
	}

	res, err := s.MasteryService.RecordOutcome(r.Context(), learnerFromContext(r.Context()), unitID, activity, outcome)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleCompleteActivity(w http.ResponseWriter, r *http.Request) {
	unitID, activity, err := activityTarget(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	res, err := s.MasteryService.CompleteActivity(r.Context(), learnerFromContext(r.Context()), unitID, activity)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleResetActivity(w http.ResponseWriter, r *http.Request) {
	unitID, activity, err := activityTarget(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	res, err := s.MasteryService.ResetActivity(r.Context(), learnerFromContext(r.Context()), unitID, activity)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	unitID, activity, err := activityTarget(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	rp, err := s.MasteryService.Resume(r.Context(), learnerFromContext(r.Context()), unitID, activity)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rp)
}

func (s *Server) handleUnitProgress(w http.ResponseWriter, r *http.Request) {
	up, err := s.MasteryService.UnitProgress(r.Context(), learnerFromContext(r.Context()), chi.URLParam(r, "unitID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, up)
}

func (s *Server) handleLevelProgress(w http.ResponseWriter, r *http.Request) {
	lp, err := s.MasteryService.LevelProgress(r.Context(), learnerFromContext(r.Context()), chi.URLParam(r, "levelID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.MasteryService.Stats(r.Context(), learnerFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}
