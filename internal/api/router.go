package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/config-entries", func(r chi.Router) {
			r.Get("/", s.handleListConfigEntries)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetConfigEntry)
				r.Post("/migrate", s.handleMigrateConfigEntry)
			})
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Delete("/", s.handleDeleteDevice)
			})
		})

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetEntity)
				r.Delete("/", s.handleDeleteEntity)
			})
		})

		r.Get("/audit", s.handleListAuditLogs)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
