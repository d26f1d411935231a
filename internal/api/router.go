package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capso-ai/capso/internal/database"
	mw "github.com/capso-ai/capso/internal/middleware"
	inats "github.com/capso-ai/capso/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Audio generation handlers
	Generate        http.HandlerFunc
	GenerateSummary http.HandlerFunc
	ExtractText     http.HandlerFunc
	Usage           http.HandlerFunc
	History         http.HandlerFunc
	Download        http.HandlerFunc

	// Billing handlers
	CreateCheckoutSession http.HandlerFunc
	VerifyCheckoutSession http.HandlerFunc
	CreatePortalSession   http.HandlerFunc
	StripeWebhook         http.HandlerFunc

	// Account handlers
	Profile             http.HandlerFunc
	UpdateProfile       http.HandlerFunc
	Notifications       http.HandlerFunc
	UpdateNotifications http.HandlerFunc
	ExportData          http.HandlerFunc
	DeleteAccount       http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, always 200 with no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Stripe calls this without a bearer token; it authenticates by signature.
	r.Post("/api/v1/webhooks/stripe", h.StripeWebhook)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes are public and optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/audio", func(r chi.Router) {
				r.Post("/generate", h.Generate)
				r.Post("/generate-summary", h.GenerateSummary)
				r.Post("/extract-text", h.ExtractText)
				r.Get("/usage", h.Usage)
				r.Get("/history", h.History)
				r.Get("/download/{audioID}", h.Download)
			})

			r.Route("/billing", func(r chi.Router) {
				r.Post("/checkout-session", h.CreateCheckoutSession)
				r.Post("/verify-session", h.VerifyCheckoutSession)
				r.Post("/portal-session", h.CreatePortalSession)
			})

			r.Route("/user", func(r chi.Router) {
				r.Get("/profile", h.Profile)
				r.Put("/profile", h.UpdateProfile)
				r.Get("/notifications", h.Notifications)
				r.Put("/notifications", h.UpdateNotifications)
				r.Get("/export-data", h.ExportData)
				r.Post("/delete-account", h.DeleteAccount)
			})
		})
	})

	return r
}
