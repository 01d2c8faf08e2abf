package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the operational HTTP surface.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	r.Get("/report", h.LatestReport)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/batches", func(r chi.Router) {
		r.Post("/", h.StartBatch)
		r.Get("/{id}", h.GetBatch)
	})

	return r
}
