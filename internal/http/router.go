package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/usherhq/invitation-core/internal/config"
	"github.com/usherhq/invitation-core/internal/idempotency"
	"github.com/usherhq/invitation-core/internal/observability"
	"github.com/usherhq/invitation-core/internal/rateLimit"
)

func SetupRouter(cfg *config.Config, h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(JWTMiddleware(cfg))
	r.Use(RateLimitMiddleware(rl))
	r.Use(IdempotencyMiddleware(idemp))

	r.Get("/r/{code}", h.ResolveLink)
	r.Post("/v1/tokens/decode", h.DecodeToken)
	r.Post("/v1/tokens/encode", h.EncodeToken)
	r.Post("/v1/guests/check", h.CheckGuest)
	r.Post("/v1/checkouts", h.CreateCheckout)
	r.Post("/v1/checkouts/{id}/payment", h.InitiatePayment)
	r.Get("/v1/checkouts/{id}", h.GetCheckout)
	r.Post("/v1/checkouts/{id}/cancel", h.CancelCheckout)
	r.Get("/v1/links/{code}/resolutions", h.ListResolutions)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
