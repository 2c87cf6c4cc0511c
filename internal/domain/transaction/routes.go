package transaction

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CheckoutRoutes returns checkout router. limit is applied to the mutating endpoints.
func (h *Handler) CheckoutRoutes(authMiddleware, limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/quote", h.Quote)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(limit)
		r.Post("/", h.Initiate)
		r.Post("/{id}/session", h.CreateSession)
	})

	return r
}

// Routes returns the buyer transaction router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.ListMine)
	r.Get("/{id}", h.Get)

	return r
}

// AdminRoutes returns transaction admin routes. The caller applies auth and role guards.
// stats, when set, is served at /stats.
func (h *Handler) AdminRoutes(stats http.HandlerFunc) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.AdminList)
	if stats != nil {
		r.Get("/stats", stats)
	}
	r.Patch("/{id}/status", h.AdminUpdateStatus)
	return r
}
