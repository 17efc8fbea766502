package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
	"github.com/arklim/social-platform-lockout/internal/core/port"
	"github.com/arklim/social-platform-lockout/internal/infra/config"
	"github.com/arklim/social-platform-lockout/internal/infra/database"
	kafkainfra "github.com/arklim/social-platform-lockout/internal/infra/kafka"
	"github.com/arklim/social-platform-lockout/internal/infra/logger"
	redisinfra "github.com/arklim/social-platform-lockout/internal/infra/redis"
	"github.com/arklim/social-platform-lockout/internal/infra/telemetry"
	postgresrepo "github.com/arklim/social-platform-lockout/internal/repository/postgres"
	redisrepo "github.com/arklim/social-platform-lockout/internal/repository/redis"
	"github.com/arklim/social-platform-lockout/internal/transport/http/middleware"
	"github.com/arklim/social-platform-lockout/internal/transport/http/routes"
	"github.com/arklim/social-platform-lockout/internal/usecase"
)

type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	pool    *pgxpool.Pool
	redis   *redisinfra.Client
	lockout *usecase.LockoutService
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	telemetryProvider, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	policy := domain.LockoutPolicy{
		Window:            cfg.Lockout.WindowDuration,
		MaxFailedAttempts: cfg.Lockout.MaxFailedAttempts,
		LockDuration:      cfg.Lockout.LockDuration,
	}.Normalized()

	repos := postgresrepo.NewRepositories(pool, policy)

	lockStateTTL := cfg.Redis.LockStateTTL
	if lockStateTTL <= 0 {
		lockStateTTL = 2 * time.Minute
	}
	lockoutCache := redisrepo.NewLockoutCacheRepository(redisClient.Client(), cfg.Redis.LockStatePrefix)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	lockoutService := usecase.NewLockoutService(repos.Sessions, eventPublisher, log).
		WithPolicy(policy).
		WithLockoutCache(lockoutCache, lockStateTTL)

	if minLocked := cfg.Lockout.MinLockedForUnlock; minLocked > 0 {
		lockoutService.WithUnlockPolicy(usecase.MinimumLockTimeUnlockPolicy{MinLocked: minLocked})
	}

	queryService := usecase.NewSessionQueryService(repos.SessionStatus, repos.FailedAttempts, log).
		WithLockoutCache(lockoutCache)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	attemptWindowStore := redisrepo.NewAttemptWindowRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.AttemptWindowPrefix,
		TTL:       rateLimitWindow * 2,
	})

	throttle := middleware.NewAttemptThrottle(attemptWindowStore, log)

	metrics := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})

	engine := routes.Register(routes.Dependencies{
		Config:    cfg,
		Logger:    log,
		Throttle:  throttle,
		Metrics:   metrics,
		Telemetry: telemetryProvider,
		Database:  pool,
		Cache:     redisClient,
		Services: routes.ServiceSet{
			Lockout: lockoutService,
			Queries: queryService,
		},
	})

	return &Application{
		cfg:     cfg,
		engine:  engine,
		logger:  log,
		pool:    pool,
		redis:   redisClient,
		lockout: lockoutService,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go a.runRetentionSweeper(sweepCtx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting lockout API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// runRetentionSweeper periodically deletes sessions with no recent activity.
func (a *Application) runRetentionSweeper(ctx context.Context) {
	maxInactivity := a.cfg.Retention.MaxInactivity
	interval := a.cfg.Retention.SweepInterval
	if maxInactivity <= 0 || interval <= 0 {
		a.logger.Info("retention sweeper disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-maxInactivity)
			purged, err := a.lockout.PurgeInactiveSessions(ctx, cutoff)
			if err != nil {
				a.logger.Warn("retention sweep failed", zap.Error(err))
				continue
			}
			if purged > 0 {
				a.logger.Info("retention sweep completed",
					zap.Int("sessions_purged", purged),
					zap.Time("cutoff", cutoff),
				)
			}
		}
	}
}
