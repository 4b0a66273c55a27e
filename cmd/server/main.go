package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/featureflags"
	"github.com/aryan0dhankhar/landledger/internal/handler"
	"github.com/aryan0dhankhar/landledger/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/landledger/internal/infrastructure/objectstore"
	"github.com/aryan0dhankhar/landledger/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/landledger/internal/observability/tracing"
	"github.com/aryan0dhankhar/landledger/internal/reliability/retry"
	"github.com/aryan0dhankhar/landledger/internal/repository"
	"github.com/aryan0dhankhar/landledger/internal/repository/migrations"
	"github.com/aryan0dhankhar/landledger/internal/security"
	"github.com/aryan0dhankhar/landledger/internal/security/auth"
	"github.com/aryan0dhankhar/landledger/internal/security/ratelimit"
	"github.com/aryan0dhankhar/landledger/internal/service"
	"github.com/aryan0dhankhar/landledger/internal/session"
	"github.com/aryan0dhankhar/landledger/internal/verification"
	"github.com/aryan0dhankhar/landledger/internal/worker"
	"github.com/aryan0dhankhar/landledger/pkg/config"
	"github.com/aryan0dhankhar/landledger/pkg/database"
)

const serviceName = "landledger"

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting LandLedger server",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.StoreBackend),
		slog.Any("flags", featureflags.Snapshot()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("server stopped")
}

// backends holds the connections opened for the configured store
type backends struct {
	store    domain.Store
	redis    *redis.Client
	db       *database.ConnectionPool
	sessions session.Store
	pruner   worker.SessionPruner
}

func (b *backends) close(log *slog.Logger) {
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			log.Warn("failed to close database", slog.String("error", err.Error()))
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			log.Warn("failed to close redis", slog.String("error", err.Error()))
		}
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// 4. Record store and session store
	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close(log)

	// 5. Verification runner
	runner := verification.NewRunner(b.store, buildExecutors(cfg, log), log)

	// 6. Services
	sessions := session.NewManager(auth.NewTokenManager(cfg.JWTSecret, serviceName), b.sessions, cfg.SessionTTL, log)
	authz := security.NewAuthorizationServiceV2(log)

	authService := service.NewAuthService(b.store, sessions, runner, log)
	if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}
	landService := service.NewLandService(b.store, authz, log)
	transferService := service.NewTransferService(b.store, authz.AuthorizationService, log)
	adminService := service.NewAdminService(b.store, authz.AuthorizationService, sessions, runner, log)
	dashboardService := service.NewDashboardService(b.store, log)

	var presigner handler.DocumentPresigner
	if cfg.S3.Bucket != "" {
		p, err := objectstore.NewS3Presigner(ctx, objectstore.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize object storage: %w", err)
		}
		presigner = p
	}

	// 7. Handlers and router
	checks := map[string]handler.Check{}
	if b.redis != nil {
		checks["redis"] = b.redis.Ping
	}
	if b.db != nil {
		checks["database"] = b.db.Health
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	defer limiter.Stop()

	router := handler.NewRouter(handler.RouterDeps{
		Auth:           handler.NewAuthHandler(authService, log),
		Lands:          handler.NewLandHandler(landService, presigner, log),
		Verification:   handler.NewVerificationHandler(runner, log, cfg.CORSAllowedOrigins),
		Transfers:      handler.NewTransferHandler(transferService, log),
		Dashboard:      handler.NewDashboardHandler(dashboardService, log),
		Admin:          handler.NewAdminHandler(adminService, log),
		Health:         handler.NewHealthHandler(checks, log),
		Sessions:       sessions,
		Users:          authService,
		Limiter:        limiter,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 8. Background janitor
	janitor := worker.NewJanitor(runner, b.pruner, log, cfg.JanitorInterval, 0)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting",
			slog.Int("port", cfg.ServerPort),
			slog.String("auth", "jwt"),
			slog.Int("rate_limit", cfg.RateLimitPerMinute),
			slog.Bool("uploads", presigner != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		janitor.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := runner.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("verification shutdown: %w", err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// openBackends connects the configured record store. Sessions go to Redis
// whenever a Redis URL is configured and stay in process otherwise.
func openBackends(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{}
	dial := retry.DefaultConfig()

	if cfg.RedisURL != "" {
		client, err := retry.Do(ctx, dial, log, "redis connect", func(ctx context.Context) (*redis.Client, error) {
			return redis.NewClient(ctx, cfg.RedisURL)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.redis = client
		b.sessions = session.NewRedisStore(client)
	} else {
		memSessions := session.NewMemoryStore()
		b.sessions = memSessions
		b.pruner = memSessions
	}

	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := retry.Do(ctx, dial, log, "postgres connect", func(ctx context.Context) (*database.ConnectionPool, error) {
			return database.NewConnectionPool(ctx, &database.Config{URL: cfg.DatabaseURL}, log)
		})
		if err != nil {
			b.close(log)
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.db = pool
		if err := pool.Migrate(ctx, migrations.Migrations); err != nil {
			b.close(log)
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		b.store = repository.NewPostgresStore(pool.GetDB(), log)

	case config.StoreRedis:
		if b.redis == nil {
			return nil, fmt.Errorf("redis store backend requires REDIS_URL")
		}
		store, err := repository.NewMemoryStore(ctx, repository.NewRedisPersister(b.redis, "landledger:", log), log)
		if err != nil {
			b.close(log)
			return nil, fmt.Errorf("failed to load store from redis: %w", err)
		}
		b.store = store

	default:
		var persister repository.Persister
		if cfg.SnapshotPath != "" {
			fp, err := repository.NewFilePersister(cfg.SnapshotPath)
			if err != nil {
				b.close(log)
				return nil, err
			}
			persister = fp
		}
		store, err := repository.NewMemoryStore(ctx, persister, log)
		if err != nil {
			b.close(log)
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
		b.store = store
	}

	return b, nil
}

// buildExecutors picks stage timing and optional fault injection from config and flags
func buildExecutors(cfg *config.Config, log *slog.Logger) map[verification.Stage]verification.StageExecutor {
	timing := verification.DefaultTiming()
	timing.DocumentDelay = cfg.Verification.DocumentDelay
	timing.NotaryDelay = cfg.Verification.NotaryDelay
	timing.Tick = cfg.Verification.Tick

	if featureflags.Enabled(featureflags.FastVerification) {
		timing = verification.Timing{Tick: 50 * time.Millisecond}
		log.Info("fast verification enabled")
	}

	executors := verification.SimulatedExecutors(timing)
	if featureflags.Enabled(featureflags.VerificationChaos) {
		p := featureflags.Float(featureflags.VerificationChaos, 0.1)
		executors = verification.WithChaos(executors, p, log)
		log.Warn("verification fault injection enabled", slog.Float64("probability", p))
	}
	return executors
}
