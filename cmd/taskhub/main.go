package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/taskhub/pkg/api"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/migrations"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/session"
	"github.com/platinummonkey/taskhub/pkg/storage"
	"github.com/platinummonkey/taskhub/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taskhub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Log.Level), os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	var (
		db          *sql.DB
		redisClient *redis.Client

		credStore    auth.CredentialStore
		profileStore auth.ProfileStore
		taskRepo     tasks.Repository
		sessionStore session.Store
		avatarStore  storage.AvatarStore
	)

	if cfg.DevMode() {
		logger.Warn("no postgres URL configured, running on in-memory stores")
		credStore = auth.NewMemoryCredentialStore(cfg.Auth.AccessTokenTTL, cfg.Auth.RequireEmailConfirmation)
		profileStore = auth.NewMemoryProfileStore()
		taskRepo = tasks.NewMemoryRepository()
		sessionStore = session.NewMemoryStore()
		avatarStore = storage.NewMemoryAvatarStore()
	} else {
		db, err = sql.Open("postgres", cfg.Storage.PostgresURL)
		if err != nil {
			return fmt.Errorf("failed to open postgres: %w", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(cfg.Storage.PostgresMaxConns)
		db.SetMaxIdleConns(cfg.Storage.PostgresMinConns)

		pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Storage.PostgresTimeout)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to ping postgres: %w", err)
		}

		migCtx, cancelMig := context.WithTimeout(context.Background(), time.Minute)
		err = migrations.RunMigrations(migCtx, db)
		cancelMig()
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		redisClient, err = session.NewRedisClient(cfg.Storage.RedisURL, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()

		credStore = auth.NewPostgresCredentialStore(db, cfg.Auth.AccessTokenTTL, cfg.Auth.RequireEmailConfirmation)
		profileStore = auth.NewPostgresProfileStore(db)
		taskRepo = tasks.NewPostgresRepository(db)
		sessionStore = session.NewRedisStore(redisClient)

		avatarStore, err = storage.NewS3AvatarStore(cfg.Storage)
		if err != nil {
			logger.WithError(err).Warn("avatar store unavailable, falling back to in-memory")
			avatarStore = storage.NewMemoryAvatarStore()
		}
	}

	taskService := tasks.NewService(taskRepo, metrics)
	authService := auth.NewService(credStore, profileStore, taskService, logger, metrics)

	sessions := middleware.NewSessionManager(sessionStore, cfg.Auth, logger)
	authMW := middleware.NewAuthMiddleware(authService, cfg.Auth, logger, metrics)

	var loginLimiter *middleware.DistributedRateLimiter
	if redisClient != nil {
		loginLimiter = middleware.NewDistributedRateLimiter(redisClient, middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Auth.LoginRateLimit,
			WindowDuration:    cfg.Auth.LoginRateWindow,
		}, "ratelimit:login", logger)
	}

	server := api.NewServer(api.Deps{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Health:      observability.NewHealthChecker(db, redisClient),
		Sessions:    sessions,
		AuthMW:      authMW,
		LoginLimit:  loginLimiter,
		AuthService: authService,
		TaskService: taskService,
		Avatars:     avatarStore,
	})

	// Hourly sweep of expired and revoked access tokens
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		removed, err := credStore.CleanupExpiredTokens(ctx)
		if err != nil {
			logger.WithError(err).Warn("token cleanup failed")
			return
		}
		if removed > 0 {
			logger.WithField("removed", removed).Info("cleaned up expired access tokens")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule token cleanup: %w", err)
	}
	scheduler.Start()

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		return nil
	})

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("taskhub listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
		}
	}()

	return shutdown.WaitForShutdown()
}
