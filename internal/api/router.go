package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	// Operational endpoints (no auth required). Static segments take
	// precedence over /{id} in chi's tree.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.With(s.wsAuthMiddleware).Get(s.wsCfg.Path, s.handleWebSocket)

	// Reading resource
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/", s.handleListReadings)
		r.Post("/", s.handleCreateReadings)

		r.Get("/{id}", s.handleGetReading)
		r.Put("/{id}", s.handleUpdateReading)
		r.Delete("/{id}", s.handleDeleteReading)

		r.Get("/audit", s.handleListAudit)
	})

	return r
}
