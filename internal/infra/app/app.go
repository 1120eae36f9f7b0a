package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/access-platform-auth/internal/core/port"
	"github.com/arklim/access-platform-auth/internal/infra/config"
	"github.com/arklim/access-platform-auth/internal/infra/database"
	kafkainfra "github.com/arklim/access-platform-auth/internal/infra/kafka"
	"github.com/arklim/access-platform-auth/internal/infra/logger"
	"github.com/arklim/access-platform-auth/internal/infra/notification"
	redisinfra "github.com/arklim/access-platform-auth/internal/infra/redis"
	"github.com/arklim/access-platform-auth/internal/infra/security"
	postgresrepo "github.com/arklim/access-platform-auth/internal/repository/postgres"
	redisrepo "github.com/arklim/access-platform-auth/internal/repository/redis"
	"github.com/arklim/access-platform-auth/internal/transport/http/middleware"
	"github.com/arklim/access-platform-auth/internal/transport/http/routes"
	"github.com/arklim/access-platform-auth/internal/usecase"
)

// Application owns the assembled service and its long-lived resources.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	kafka  *kafkainfra.Producer
}

// New wires the full dependency graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	keyProvider, err := newKeyProvider(cfg, log)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	signer := security.NewTokenSigner(keyProvider, cfg.App.Name)

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	passwordValidator := security.NewPasswordValidator(security.PasswordRuleConfig{
		MinLength:      cfg.Password.MinLength,
		MaxLength:      cfg.Password.MaxLength,
		RequireDigit:   cfg.Password.RequireDigit,
		RequireLower:   cfg.Password.RequireLower,
		RequireUpper:   cfg.Password.RequireUpper,
		RequireSymbol:  cfg.Password.RequireSymbol,
		MinZxcvbnScore: cfg.Password.MinZxcvbnScore,
	})

	totpEngine := security.NewTOTPEngine(security.TOTPConfig{
		Issuer: cfg.TwoFactor.Issuer,
		Period: cfg.TwoFactor.Period,
		Digits: cfg.TwoFactor.Digits,
		Skew:   cfg.TwoFactor.Skew,
	})

	var kafkaProducer *kafkainfra.Producer
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err = kafkainfra.NewProducer(cfg.Kafka, log)
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

	cleanup := func() {
		pool.Close()
		_ = redisClient.Close()
		if kafkaProducer != nil {
			_ = kafkaProducer.Close()
		}
	}

	users := postgresrepo.NewUserRepository(pool)
	sessions := postgresrepo.NewSessionRepository(pool)
	twoFactorSettings := postgresrepo.NewTwoFactorRepository(pool)
	roleProvider := postgresrepo.NewRoleProvider(pool)
	auditSink := postgresrepo.NewAuditSink(pool, log)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.KeyPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	notifier := notification.NewLogSender(log)

	// CAPTCHA proofs are validated by an external verifier; without one wired
	// in, supplied proofs pass through unchecked.
	log.Info("captcha verifier not configured, captcha proofs are accepted unchecked")

	tokenService := usecase.NewTokenService(cfg, users, sessions, roleProvider, signer, eventPublisher, log)
	authService := usecase.NewAuthService(cfg, users, hasher, nil, tokenService, auditSink, eventPublisher, log)
	sessionService := usecase.NewSessionService(sessions, tokenService, log)
	twoFactorService := usecase.NewTwoFactorService(cfg, users, twoFactorSettings, totpEngine, hasher, tokenService, auditSink, eventPublisher, notifier, log)
	passwordService := usecase.NewPasswordService(cfg, users, hasher, passwordValidator, tokenService, auditSink, eventPublisher, log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{
		Namespace: cfg.Telemetry.MetricsNamespace,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}
	authMetrics, err := middleware.NewAuthMetrics(nil, cfg.Telemetry.MetricsNamespace)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		KeyProvider: keyProvider,
		AuthMetrics: authMetrics,
		HTTPMetrics: httpMetrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:      authService,
			Tokens:    tokenService,
			TwoFactor: twoFactorService,
			Passwords: passwordService,
			Sessions:  sessionService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		kafka:  kafkaProducer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
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

// newKeyProvider loads RS256 keys from disk, falling back to an ephemeral
// in-memory pair outside production so development never needs key files.
func newKeyProvider(cfg *config.AppConfig, log *zap.Logger) (security.KeyProvider, error) {
	provider, err := security.NewFileKeyProvider(cfg.JWT.KeyDirectory)
	if err == nil {
		return provider, nil
	}

	if cfg.App.Env == "production" {
		return nil, err
	}

	log.Warn("falling back to ephemeral signing keys", zap.Error(err))
	return security.NewEphemeralKeyProvider("dev")
}
