package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/leadrail/leadrail/internal/http/handlers"
	"github.com/leadrail/leadrail/internal/tenancy"
	"github.com/leadrail/leadrail/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	TenantID       string
	VoiceWebhook   *handlers.VoiceWebhookHandler
	ChatWebhook    *handlers.ChatWebhookHandler
	SMSWebhook     *handlers.SMSWebhookHandler
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(tenancy.Middleware(cfg.TenantID))

	r.Get("/health", handlers.Health)

	r.Route("/webhooks", func(r chi.Router) {
		if cfg.VoiceWebhook != nil {
			r.Post("/voice", cfg.VoiceWebhook.Handle)
		}
		if cfg.ChatWebhook != nil {
			r.Post("/whatsapp", cfg.ChatWebhook.Handle)
		}
		if cfg.SMSWebhook != nil {
			r.Post("/sms", cfg.SMSWebhook.Handle)
		}
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
