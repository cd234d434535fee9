// Package httptransport wires the certificate service onto HTTP. Handlers
// stay thin: decode, delegate to the service or exporter, translate errors.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gascert/internal/platform/middleware"
)

// NewRouter mounts all endpoints. Everything under /certificates requires an
// authenticated actor; authorization beyond that is the service's job.
func NewRouter(h *Handler, validator middleware.TokenValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))

		r.Route("/certificates", func(r chi.Router) {
			r.Post("/", h.HandleCreate)
			r.Get("/", h.HandleList)
			r.Post("/bulk-approve", h.HandleBulkApprove)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.HandleGet)
				r.Put("/", h.HandleUpdate)
				r.Delete("/", h.HandleDelete)
				r.Post("/approve", h.HandleApprove)
				r.Post("/pending", h.HandleSetPending)
				r.Get("/markup", h.HandleMarkup)
				r.Get("/markup/printable", h.HandlePrintableMarkup)
				r.Get("/document", h.HandleDocument)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Post("/admin/template-cache/clear", h.HandleClearTemplateCache)
		})
	})

	return r
}
