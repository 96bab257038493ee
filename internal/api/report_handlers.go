package api

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"

	"github.com/vytor/phonicsmastery/internal/errors"
	"github.com/vytor/phonicsmastery/internal/logger"
	"github.com/vytor/phonicsmastery/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	learnerID := learnerFromContext(r.Context())

	var buf bytes.Buffer
	if err := s.ReportService.ExportProgress(r.Context(), learnerID, &buf); err != nil {
		handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "progress-" + learnerID + ".xlsx"}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		log.Error("failed to write report: %v", err)
	}
}

func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			handleError(w, r, errors.NewValidationError("limit", "must be between 1 and 200"))
			return
		}
		limit = n
	}
	runs, err := s.ImportService.History(r.Context(), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if runs == nil {
		runs = []models.ImportRun{}
	}
	writeJSON(w, r, http.StatusOK, runs)
}
