package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter mounts every route under /api/v1.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.withRequestID, s.accessLog, s.cors, limitBody)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

		r.Get("/devices", s.handleListDevices)
		r.Post("/control", s.handleControl)

		r.Post("/schedule", s.handleCreateSchedule)
		r.Get("/schedules", s.handleListSchedules)
		r.Delete("/schedule/{id}", s.handleCancelSchedule)

		r.Get("/audit", s.handleListAuditLogs)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}
