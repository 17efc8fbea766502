package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-lockout/internal/infra/config"
	"github.com/arklim/social-platform-lockout/internal/infra/telemetry"
	"github.com/arklim/social-platform-lockout/internal/transport/http/handlers"
	"github.com/arklim/social-platform-lockout/internal/transport/http/middleware"
	"github.com/arklim/social-platform-lockout/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Lockout *usecase.LockoutService
	Queries *usecase.SessionQueryService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config    *config.AppConfig
	Logger    *zap.Logger
	Throttle  *middleware.AttemptThrottle
	Metrics   *middleware.HTTPMetrics
	Telemetry *telemetry.Provider
	Services  ServiceSet
	Database  DatabaseChecker
	Cache     CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.CORS(deps.Config.App.CorsAllowedOrigins))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		lockoutHandler := handlers.NewLockoutHandler(deps.Services.Lockout, deps.Services.Queries).
			WithTelemetry(deps.Telemetry)
		lockoutHandler.RegisterRoutes(api, buildThrottles(deps))
	}

	return r
}

func buildThrottles(deps Dependencies) handlers.RouteThrottles {
	if deps.Throttle == nil || deps.Config == nil {
		return handlers.RouteThrottles{}
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	var throttles handlers.RouteThrottles
	if limit := deps.Config.RateLimit.AttemptMaxRequests; limit > 0 {
		throttles.Attempt = deps.Throttle.Limit(middleware.ThrottleRule{
			Name:   "record_attempt_ip",
			Limit:  limit,
			Window: window,
			Scope:  middleware.ScopeByClientIP(),
		})
	}
	if limit := deps.Config.RateLimit.UnlockMaxRequests; limit > 0 {
		throttles.Unlock = deps.Throttle.Limit(middleware.ThrottleRule{
			Name:   "unlock_session",
			Limit:  limit,
			Window: window,
			Scope:  middleware.ScopeBySession(),
		})
	}
	if limit := deps.Config.RateLimit.StatusMaxRequests; limit > 0 {
		throttles.Status = deps.Throttle.Limit(middleware.ThrottleRule{
			Name:   "status_ip",
			Limit:  limit,
			Window: window,
			Scope:  middleware.ScopeByClientIP(),
		})
	}
	return throttles
}
