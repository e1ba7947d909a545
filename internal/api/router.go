package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careslot/booking/internal/auth"
	"github.com/careslot/booking/internal/booking"
	"github.com/careslot/booking/internal/metrics"
)

type RouterConfig struct {
	Service   *booking.Service
	Tokens    *auth.TokenManager
	Collector *metrics.Collector
	Logger    zerolog.Logger
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Logger))
	if cfg.Collector != nil {
		r.Use(MetricsMiddleware(cfg.Collector))
	}

	// Health and metrics
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Collector != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	// Public provider directory
	r.Get("/providers", listProvidersHandler(cfg.Service))
	r.Get("/providers/{id}", getProviderHandler(cfg.Service))
	r.Get("/providers/{id}/slots/available", listAvailableSlotsHandler(cfg.Service))

	// Authenticated surface
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Tokens))

		r.Post("/appointments", bookAppointmentHandler(cfg.Service, cfg.Collector))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Put("/appointments/{id}", transitionAppointmentHandler(cfg.Service, cfg.Collector))
		r.Delete("/appointments/{id}", cancelAppointmentHandler(cfg.Service))

		r.Put("/providers/{id}/slots", publishSlotsHandler(cfg.Service, cfg.Collector))
	})

	return r
}
