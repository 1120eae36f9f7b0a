package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/access-platform-auth/internal/infra/config"
	"github.com/arklim/access-platform-auth/internal/infra/security"
	"github.com/arklim/access-platform-auth/internal/transport/http/handlers"
	"github.com/arklim/access-platform-auth/internal/transport/http/middleware"
	"github.com/arklim/access-platform-auth/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth      *usecase.AuthService
	Tokens    *usecase.TokenService
	TwoFactor *usecase.TwoFactorService
	Passwords *usecase.PasswordService
	Sessions  *usecase.SessionService
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	KeyProvider security.KeyProvider
	AuthMetrics *middleware.AuthMetrics
	HTTPMetrics *middleware.HTTPMetrics
	Database    DatabaseChecker
	Cache       CacheChecker
}

// Register configures the gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}

	authGuard := middleware.RequireAuth(deps.Services.Tokens, deps.Services.Sessions)

	checks := map[string]handlers.DependencyChecker{}
	if deps.Database != nil {
		checks["database"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}
	healthHandler := handlers.NewHealthHandler(checks)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jwksHandler := handlers.NewJWKSHandler(deps.KeyProvider)
	r.GET("/.well-known/jwks.json", jwksHandler.Keys)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(
			deps.Services.Auth,
			deps.Services.Tokens,
			deps.Services.TwoFactor,
			deps.Services.Sessions,
			deps.AuthMetrics,
			deps.Logger,
		)
		authHandler.RegisterRoutes(authGroup, authGuard, buildRateLimits(deps))

		twoFactorGroup := api.Group("/2fa", authGuard)
		handlers.NewTwoFactorHandler(deps.Services.TwoFactor, deps.Logger).RegisterRoutes(twoFactorGroup)

		secured := api.Group("", authGuard)
		handlers.NewPasswordHandler(deps.Services.Passwords, deps.Logger).RegisterRoutes(secured)
		handlers.NewSessionHandler(deps.Services.Sessions, deps.Logger).RegisterRoutes(secured)
	}

	return r
}

// buildRateLimits derives per-endpoint sliding-window middleware keyed by
// client IP. An absent limiter disables throttling (useful in tests).
func buildRateLimits(deps Dependencies) map[string]gin.HandlerFunc {
	if deps.RateLimiter == nil {
		return nil
	}

	cfg := deps.Config.RateLimit
	limits := make(map[string]gin.HandlerFunc, 3)

	rule := func(name string, limit int) middleware.RateLimitRule {
		return middleware.RateLimitRule{
			Name:       name,
			Limit:      limit,
			Window:     cfg.WindowDuration,
			Identifier: middleware.ClientIPIdentifier(),
		}
	}

	if cfg.LoginMaxAttempts > 0 {
		limits["login"] = deps.RateLimiter.RateLimit(rule("login", cfg.LoginMaxAttempts))
	}
	if cfg.RefreshMaxAttempts > 0 {
		limits["refresh"] = deps.RateLimiter.RateLimit(rule("refresh", cfg.RefreshMaxAttempts))
	}
	if cfg.TwoFactorMaxAttempts > 0 {
		limits["two_factor"] = deps.RateLimiter.RateLimit(rule("two_factor", cfg.TwoFactorMaxAttempts))
	}

	return limits
}
