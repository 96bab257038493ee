package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultRequestTimeout = 15 * time.Second

func (s *Server) Routes() http.Handler {
	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(learnerMiddleware)
		r.Use(timeoutMiddleware(timeout))

		r.Route("/units/{unitID}", func(r chi.Router) {
			r.Get("/progress", s.handleUnitProgress)
			r.Route("/activities/{activity}", func(r chi.Router) {
				r.Post("/outcomes", s.handleRecordOutcome)
				r.Post("/complete", s.handleCompleteActivity)
				r.Post("/reset", s.handleResetActivity)
				r.Get("/resume", s.handleResume)
			})
		})
		r.Get("/levels/{levelID}/progress", s.handleLevelProgress)
		r.Get("/stats", s.handleStats)
		r.Get("/sync", s.handleSyncStatus)
		r.Post("/sync/flush", s.handleFlush)
		r.Get("/report.xlsx", s.handleReport)
		r.Get("/imports", s.handleImportHistory)
	})
	return r
}
