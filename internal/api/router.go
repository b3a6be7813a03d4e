package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/acumant/ai-portal/internal/api/handlers"
	"github.com/acumant/ai-portal/internal/api/middleware"
	"github.com/acumant/ai-portal/internal/auth"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
	limiter     *middleware.RateLimiter
	userLimiter *middleware.RateLimiter
}

type RouterConfig struct {
	DB             *gorm.DB      // nil with the memory store
	Redis          *redis.Client // nil when Redis is unreachable
	Queue          handlers.QueueInspector
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	Entitlements   *entitlement.Service
	Metrics        *middleware.Metrics
	AllowedOrigins []string
	RateLimitReqs  int
	RateLimitWin   time.Duration
	TrustProxy     bool
	SecureCookies  bool
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()
	router := &Router{Router: r}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(metrics.Middleware)

	if cfg.RateLimitReqs > 0 {
		router.limiter = middleware.NewRateLimiter(cfg.RateLimitReqs, cfg.RateLimitWin)
		router.limiter.TrustProxyHeaders(cfg.TrustProxy)
		r.Use(middleware.RateLimit(router.limiter))

		// Authenticated requests are also budgeted per account, so one user
		// can't spread load over many addresses.
		router.userLimiter = middleware.NewRateLimiter(cfg.RateLimitReqs, cfg.RateLimitWin)
		router.userLimiter.TrustProxyHeaders(cfg.TrustProxy)
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Auth-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis, cfg.Queue)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.Entitlements, cfg.SecureCookies, cfg.JWTService.Expiry())
	meHandler := handlers.NewMeHandler(cfg.Entitlements)
	userHandler := handlers.NewUserHandler(cfg.Entitlements)
	orgHandler := handlers.NewOrganizationHandler(cfg.Entitlements)
	toolHandler := handlers.NewToolHandler(cfg.Entitlements)
	auditHandler := handlers.NewAuditHandler(cfg.DB)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	csrfStore := middleware.NewCSRFStore()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CSRF(csrfStore, cfg.SecureCookies))

		// Public auth endpoints
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.With(middleware.OptionalAuth(cfg.JWTService)).Get("/session", authHandler.Session)

		// Every route below reloads the user, so the role and status used for
		// authorization are the stored ones, not the token's.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			if router.userLimiter != nil {
				r.Use(middleware.RateLimitByUser(router.userLimiter))
			}
			r.Use(middleware.LoadUser(cfg.Entitlements))

			r.Get("/me", meHandler.Get)
			r.Get("/me/tools", meHandler.Tools)
			r.Get("/me/navigation", meHandler.Navigation)
			r.Get("/tools/{tool}/access", meHandler.Access)

			// Admins see their own organization; the service narrows scope.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin())

				r.Route("/users", func(r chi.Router) {
					r.Get("/", userHandler.List)
					r.Post("/", userHandler.Create)
					r.Get("/{id}", userHandler.Get)
					r.Put("/{id}", userHandler.Update)
					r.Post("/{id}/deactivate", userHandler.Deactivate)
					r.Get("/{id}/tools", userHandler.Tools)
					r.Put("/{id}/tools", userHandler.UpdateTools)
				})

				r.Get("/tools", toolHandler.List)
				r.Get("/organizations/{id}/users", orgHandler.Users)
				r.Get("/organizations/{id}/tools", orgHandler.Tools)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSuperAdmin())

				r.Get("/organizations", orgHandler.List)
				r.Post("/organizations", orgHandler.Create)
				r.Get("/organizations/{id}", orgHandler.Get)
				r.Put("/organizations/{id}", orgHandler.Update)
				r.Put("/organizations/{id}/tools", orgHandler.UpdateTools)
				r.Post("/organizations/{id}/logo", orgHandler.UploadLogo)

				r.Post("/tools", toolHandler.Create)
				r.Put("/tools/{tool}", toolHandler.Update)
				r.Post("/tools/{tool}/test", toolHandler.Test)

				r.Get("/audit", auditHandler.List)
			})
		})
	})

	return router
}

// Close stops background work owned by the router.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Stop()
	}
	if r.userLimiter != nil {
		r.userLimiter.Stop()
	}
}
