package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/evento-ems/access/internal/auth"
	"github.com/evento-ems/access/internal/config"
	"github.com/evento-ems/access/internal/event"
	handler "github.com/evento-ems/access/internal/handler/http"
	"github.com/evento-ems/access/internal/repository"
	"github.com/evento-ems/access/internal/repository/postgres"
	redisrepo "github.com/evento-ems/access/internal/repository/redis"
	"github.com/evento-ems/access/internal/service"
	"github.com/evento-ems/access/migrations"
	"github.com/evento-ems/access/pkg/database"
	"github.com/evento-ems/access/pkg/health"
	pkgkafka "github.com/evento-ems/access/pkg/kafka"
	"github.com/evento-ems/access/pkg/middleware"
	"github.com/evento-ems/access/pkg/tracing"
)

const serviceName = "access"

// App wires together all dependencies and runs the access service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	sweeper        *service.ResetSweeper
	httpServer     *http.Server
	tracerShutdown func(context.Context) error

	sweeperCancel context.CancelFunc
	sweeperDone   sync.WaitGroup
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(reg, pool, serviceName); err != nil {
		pool.Close()
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Redis backs revocation only. Interface values stay nil when it is off.
	var (
		redisClient *goredis.Client
		denylist    repository.SessionDenylist
	)
	if cfg.SessionRevocationEnabled {
		redisClient, err = database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		denylist = redisrepo.NewSessionDenylist(redisClient)
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	} else {
		logger.Warn("session revocation disabled; logged-out tokens remain valid until they expire")
	}

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(
		pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers),
		logger,
		pkgkafka.NewProducerMetrics(reg),
	)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		closeAll(pool, redisClient, producer)
		return nil, fmt.Errorf("create password hasher: %w", err)
	}

	// Build the dependency graph.
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.SessionTTL)
	userRepo := postgres.NewUserRepository(pool)
	notifier := event.NewProducer(producer, logger)
	metrics := service.NewMetrics(reg)

	gate := service.NewGate(userRepo, issuer, denylist, metrics, logger)
	accounts := service.NewAccountService(userRepo, hasher, issuer, denylist, metrics, logger)
	resets := service.NewResetService(userRepo, hasher, notifier, metrics, logger, service.ResetConfig{
		TokenTTL: cfg.ResetTokenTTL,
		URLBase:  cfg.ResetURLBase,
	})
	admin := service.NewAdminService(userRepo, notifier, metrics, logger)
	sweeper := service.NewResetSweeper(userRepo, cfg.ResetSweepInterval, metrics, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(handler.Services{
		Accounts: accounts,
		Resets:   resets,
		Admin:    admin,
		Gate:     gate,
	}, healthHandler, logger, handler.RouterConfig{
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowCredentials: true,
		},
		Cookie: handler.CookieConfig{
			Secure: cfg.SessionCookieSecure,
			MaxAge: cfg.SessionTTL,
		},
		AuthRateLimitPerMinute: cfg.AuthRateLimitPerMinute,
		Production:             cfg.Environment == "production",
		Metrics:                middleware.NewHTTPMetrics(reg, serviceName),
		Gatherer:               reg,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		sweeper:        sweeper,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and the reset token sweeper and blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	a.sweeperCancel = sweepCancel
	a.sweeperDone.Add(1)
	go func() {
		defer a.sweeperDone.Done()
		a.sweeper.Run(sweepCtx)
	}()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Reset token sweeper
// 3. Tracer (flush pending spans from drained requests)
// 4. Kafka producer
// 5. Redis client
// 6. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Stop the sweeper before its pool goes away.
	if a.sweeperCancel != nil {
		a.sweeperCancel()
		a.sweeperDone.Wait()
	}

	// 3. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4-6. Close Kafka, Redis and PostgreSQL.
	errs = append(errs, closeAll(a.pool, a.redis, a.producer))

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func closeAll(pool *pgxpool.Pool, redisClient *goredis.Client, producer *pkgkafka.Producer) error {
	var errs []error
	if producer != nil {
		if err := producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if pool != nil {
		pool.Close()
	}
	return errors.Join(errs...)
}
