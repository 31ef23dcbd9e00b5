package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evento-ems/access/internal/domain"
	"github.com/evento-ems/access/internal/service"
	"github.com/evento-ems/access/pkg/health"
	"github.com/evento-ems/access/pkg/middleware"
)

// AccountService is the account behaviour the handlers depend on.
type AccountService interface {
	Register(ctx context.Context, input service.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, input service.LoginInput) (*domain.User, string, error)
	Logout(ctx context.Context, identity *domain.Identity) error
	Me(ctx context.Context, identity *domain.Identity) (*domain.User, error)
}

// ResetService is the password reset behaviour the handlers depend on.
type ResetService interface {
	BeginReset(ctx context.Context, email string) error
	CompleteReset(ctx context.Context, token, newPassword string) error
}

// AdminService is the admin behaviour the handlers depend on.
type AdminService interface {
	AssignRole(ctx context.Context, actor *domain.Identity, userID, role string) (*domain.User, error)
	DeleteUser(ctx context.Context, actor *domain.Identity, userID string) error
}

// SessionAuthenticator resolves a session token to the caller's identity.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Identity, error)
}

// Services groups the collaborators served over HTTP.
type Services struct {
	Accounts AccountService
	Resets   ResetService
	Admin    AdminService
	Gate     SessionAuthenticator
}

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	CORS                   middleware.CORSConfig
	Cookie                 CookieConfig
	AuthRateLimitPerMinute int
	Production             bool

	// Metrics is optional. Gatherer defaults to prometheus.DefaultGatherer.
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
}

// NewRouter creates a chi router with all access service routes registered.
func NewRouter(svcs Services, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(SecurityHeaders(cfg.Production, logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check and metrics endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	authHandler := NewAuthHandler(svcs.Accounts, svcs.Resets, svcs.Gate, cfg.Cookie, logger)
	adminHandler := NewAdminHandler(svcs.Admin, logger)

	limit := cfg.AuthRateLimitPerMinute
	if limit < 1 {
		limit = 10
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)

		// Credential-accepting endpoints share a per-IP budget.
		r.Group(func(r chi.Router) {
			r.Use(RateLimit(limit))

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/forgot-password", authHandler.ForgotPassword)
			r.Post("/reset-password", authHandler.ResetPassword)
		})

		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(svcs.Gate, logger))

			r.Get("/me", authHandler.Me)
		})
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)
		r.Use(Authenticate(svcs.Gate, logger))
		r.Use(RequireAdmin(logger))

		r.Put("/users/{id}/role", adminHandler.AssignRole)
		r.Delete("/users/{id}", adminHandler.DeleteUser)
	})

	return r
}
