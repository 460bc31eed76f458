// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelamos/musicdesk/internal/admin"
	"github.com/angelamos/musicdesk/internal/analysis"
	"github.com/angelamos/musicdesk/internal/audit"
	"github.com/angelamos/musicdesk/internal/auth"
	"github.com/angelamos/musicdesk/internal/bootstrap"
	"github.com/angelamos/musicdesk/internal/config"
	"github.com/angelamos/musicdesk/internal/contractor"
	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/health"
	"github.com/angelamos/musicdesk/internal/jobs"
	"github.com/angelamos/musicdesk/internal/metrics"
	"github.com/angelamos/musicdesk/internal/middleware"
	"github.com/angelamos/musicdesk/internal/notification"
	"github.com/angelamos/musicdesk/internal/request"
	"github.com/angelamos/musicdesk/internal/review"
	"github.com/angelamos/musicdesk/internal/server"
	"github.com/angelamos/musicdesk/internal/storage"
	"github.com/angelamos/musicdesk/internal/task"
	"github.com/angelamos/musicdesk/internal/user"
	"github.com/angelamos/musicdesk/internal/wallet"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // wiring code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	if cfg.Bootstrap.AdminEmail != "" {
		if _, err := bootstrap.EnsureAdmin(ctx, db.DB, bootstrap.AdminSeed{
			Email:    cfg.Bootstrap.AdminEmail,
			Password: cfg.Bootstrap.AdminPassword,
			FullName: cfg.Bootstrap.AdminName,
		}); err != nil {
			return err
		}
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	logger.Info("object storage ready", "driver", cfg.Storage.Driver)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	notificationSvc := notification.NewService(notification.NewRepository(db.DB), logger)
	notificationHandler := notification.NewHandler(notificationSvc)

	userSvc := user.NewService(db.DB, user.NewRepository(db.DB), notificationSvc, logger)
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(auth.NewRepository(db.DB), jwtManager, userSvc, redis.Client)
	authHandler := auth.NewHandler(authSvc)

	idempotent := middleware.Idempotency(redis, cfg.Wallet.IdempotencyTTL)

	walletSvc := wallet.NewService(db.DB, store, notificationSvc, cfg.Wallet, logger)
	walletHandler := wallet.NewHandler(walletSvc, idempotent)

	analyzer := analysis.NewClient(cfg.Analysis, nil)
	requestSvc := request.NewService(db.DB, store, analyzer, notificationSvc, logger)
	requestHandler := request.NewHandler(requestSvc, idempotent)

	reviewHandler := review.NewHandler(review.NewService(review.NewRepository(db.DB)))

	contractorHandler := contractor.NewHandler(contractor.NewService(db.DB, store, logger), idempotent)
	taskHandler := task.NewHandler(task.NewService(db.DB, logger), idempotent)

	auditHandler := audit.NewHandler(audit.NewRepository(db.DB))

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Reports:    admin.NewReports(db.DB),
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
	})

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: db, Critical: true},
		health.Check{Name: "redis", Checker: redis, Critical: true},
	)

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(logger)
		if err := scheduler.Register(cfg.Jobs, authSvc); err != nil {
			return err
		}
		scheduler.Start()
	}

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	if cfg.Metrics.Enabled {
		router.Use(metrics.InstrumentHandler)
	}
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerWindow(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit:    middleware.PerMinute(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthPerMinute),
			Prefix:   "auth:",
			FailOpen: true,
			Applies:  middleware.MatchRoutes(http.MethodPost, "/auth/login", "/auth/register"),
		}).Handler,
	)
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit:    middleware.PerHour(cfg.RateLimit.AnalysisPerHour, cfg.RateLimit.AnalysisPerHour),
			Prefix:   "analysis:",
			KeyFunc:  middleware.KeyBySession,
			FailOpen: true,
			Applies:  middleware.MatchRoutes(http.MethodPost, "/analyze"),
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	if local, ok := store.(*storage.LocalStore); ok {
		local.RegisterRoutes(router)
	}

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	approved := middleware.RequireApproved
	adminOnly := middleware.RequireAdmin

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterRoutes(r, authenticator)
		notificationHandler.RegisterRoutes(r, authenticator)

		walletHandler.RegisterRoutes(r, authenticator, approved)
		requestHandler.RegisterRoutes(r, authenticator, approved)
		reviewHandler.RegisterRoutes(r, authenticator, approved)
		contractorHandler.RegisterRoutes(r, authenticator, approved)
		adminHandler.RegisterRoutes(r, authenticator, approved)

		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		walletHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		requestHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		contractorHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		taskHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		auditHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Error("storage close error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
