package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpmiddleware "github.com/wolfman30/odonto-agent/internal/http/middleware"
	"github.com/wolfman30/odonto-agent/internal/leads"
	"github.com/wolfman30/odonto-agent/internal/messaging"
	"github.com/wolfman30/odonto-agent/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	MessagingHandler *messaging.Handler
	MetaHandler      *messaging.MetaHandler
	LeadsHandler     *leads.Handler
	AdminAuthSecret  string
	MetricsHandler   http.Handler

	// WebhookRateLimit is requests per second per sender; zero disables it.
	WebhookRateLimit float64
	WebhookRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", messaging.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.MessagingHandler != nil {
		twilio := r.With(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookRateBurst, httpmiddleware.KeyByFormField("From")))
		twilio.Post("/twilio/whatsapp", cfg.MessagingHandler.TwilioWhatsApp)
		twilio.Post("/messaging/twilio/webhook", cfg.MessagingHandler.TwilioWhatsApp)
	}

	if cfg.MetaHandler != nil {
		r.Route("/meta/webhook", func(meta chi.Router) {
			meta.Get("/", cfg.MetaHandler.Verify)
			meta.With(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookRateBurst, httpmiddleware.KeyByRealIP)).
				Post("/", cfg.MetaHandler.Receive)
		})
	}

	if cfg.LeadsHandler != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(middleware.Compress(5))
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/leads", cfg.LeadsHandler.ListLeads)
			admin.Get("/leads/{leadID}", cfg.LeadsHandler.GetLead)
		})
	}

	return otelhttp.NewHandler(r, "odonto-api",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}
