package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

type RouterConfig struct {
	Templates    *schedule.TemplateStore
	Slots        *schedule.SlotAdmin
	Generator    *schedule.Generator
	Availability *schedule.Availability
	Appointments *appointment.Service
	Verifier     *auth.TokenVerifier

	PgPool *pgxpool.Pool // nil in memory mode
	Redis  *redis.Client // nil when the slot lock is disabled

	Logger         zerolog.Logger
	RateLimitRPS   float64
	RateLimitBurst int
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Verifier))
		r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

		r.Route("/doctor-schedule", func(r chi.Router) {
			r.Post("/", createTemplateHandler(cfg.Templates))
			r.Get("/", listTemplatesHandler(cfg.Templates))
			r.Get("/{id}", getTemplateHandler(cfg.Templates))
			r.Patch("/{id}", updateTemplateHandler(cfg.Templates))
			r.Delete("/{id}", deleteTemplateHandler(cfg.Templates))
		})

		r.Route("/appointment-slots", func(r chi.Router) {
			r.Post("/", createSlotHandler(cfg.Slots))
			r.Get("/", listSlotsHandler(cfg.Slots))
			r.Get("/available", availableSlotsHandler(cfg.Availability))
			r.Get("/{id}", getSlotHandler(cfg.Slots))
			r.Patch("/{id}", updateSlotHandler(cfg.Slots))
			r.Delete("/{id}", deleteSlotHandler(cfg.Slots))
		})

		r.Post("/schedule/generate-slots", generateSlotsHandler(cfg.Generator))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(cfg.Appointments))
			r.Get("/", listAppointmentsHandler(cfg.Appointments))
			r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
			r.Patch("/{id}/status", updateStatusHandler(cfg.Appointments))
			r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
			r.Patch("/{id}/payment", updatePaymentHandler(cfg.Appointments))
		})
	})

	return r
}
