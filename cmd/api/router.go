package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/coursehub/coursehub-api/internal/domain/dashboard"
	"github.com/coursehub/coursehub-api/internal/domain/promo"
	"github.com/coursehub/coursehub-api/internal/domain/reconciliation"
	"github.com/coursehub/coursehub-api/internal/domain/transaction"
	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/pkg/jwt"
	"github.com/coursehub/coursehub-api/internal/pkg/metrics"
	pkgresponse "github.com/coursehub/coursehub-api/internal/pkg/response"
)

type routerDeps struct {
	allowedOrigins  []string
	jwt             *jwt.Service
	metrics         *metrics.Metrics
	health          func(ctx context.Context) error
	checkoutLimiter func(http.Handler) http.Handler

	transactions *transaction.Handler
	feed         *transaction.Feed
	webhooks     *reconciliation.Handler
	promos       *promo.Handler
	dashboard    *dashboard.Handler
}

func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.Metrics(d.metrics))
	r.Use(middleware.CORSHandler(d.allowedOrigins))

	authMiddleware := middleware.Auth(d.jwt)
	adminOnly := middleware.RequireAdmin()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.health(ctx); err != nil {
				pkgresponse.ServiceUnavailable(w, "database unavailable")
				return
			}
		}
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	if d.metrics != nil {
		r.Handle("/metrics", d.metrics.Handler())
	}

	// WebSocket: token travels in the query string
	r.With(middleware.AuthQuery(d.jwt)).Get("/ws/transactions/{id}", d.feed.Stream)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/checkout", d.transactions.CheckoutRoutes(authMiddleware, d.checkoutLimiter))
		r.Mount("/transactions", d.transactions.Routes(authMiddleware))
	})

	r.Mount("/webhooks", d.webhooks.Routes())

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(adminOnly)

		r.Mount("/transactions", d.transactions.AdminRoutes(d.dashboard.TransactionStats))
		r.Mount("/promo-codes", promo.AdminRoutes(d.promos))
	})

	return r
}
