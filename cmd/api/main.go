package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"contactbook/internal/cache"
	"contactbook/internal/config"
	"contactbook/internal/database"
	"contactbook/internal/handlers"
	"contactbook/internal/jobs"
	"contactbook/internal/log"
	"contactbook/internal/mail"
	"contactbook/internal/repository"
	"contactbook/internal/security"
	"contactbook/internal/server"
	"contactbook/internal/service"
	"contactbook/internal/storage"
	"contactbook/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Environment)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, cfg.Telemetry.Enabled)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.Migrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, cfg.Telemetry.Enabled)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	photoStore, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init photo store")
	}

	mailer, err := newMailer(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init mailer")
	}
	renderer, err := mail.NewRenderer()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load mail templates")
	}

	users := repository.NewUserRepository(dbPool)
	sessions := repository.NewSessionRepository(dbPool)
	contacts := repository.NewContactRepository(dbPool)

	tokens := security.NewTokenIssuer(security.TokenConfig{
		AccessSecret:  cfg.Security.JWTAccessSecret,
		RefreshSecret: cfg.Security.JWTRefreshSecret,
		ResetSecret:   cfg.Security.JWTResetSecret,
		AccessTTL:     cfg.Security.JWTAccessTTL,
		RefreshTTL:    cfg.Security.JWTRefreshTTL,
		ResetTTL:      cfg.Security.ResetTTL,
	})
	hasher := security.NewPasswordHasher(security.DefaultParams)

	authService := service.NewAuthService(users, sessions, tokens, hasher, mailer, renderer, cfg.Domain, logger)
	photoService := service.NewPhotoService(photoStore, cfg.Storage.MaxPhotoSize, logger)
	contactService := service.NewContactService(contacts, photoService, logger)

	handlerSet := handlers.NewHandlerSet(
		logger,
		cfg.Environment,
		authService,
		contactService,
		handlers.CookieConfig{
			Secure: cfg.IsProduction(),
			MaxAge: cfg.Security.JWTRefreshTTL,
		},
		handlers.HealthCheck{Name: "postgres", Check: dbPool.Ping},
		handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	)

	var opts []server.Option
	if local, ok := photoStore.(*storage.LocalStore); ok {
		opts = append(opts, server.WithUploads(local.Root()))
	}
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet, opts...)

	scheduler := jobs.NewScheduler(cfg.Jobs.SessionPurge, sessions, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient, shutdownTracing)
}

func newMailer(cfg *config.AppConfig, redisClient *redis.Client) (mail.Sender, error) {
	switch cfg.Mail.Delivery {
	case "smtp":
		return mail.NewSMTPSender(cfg.Mail.SMTP), nil
	case "queue":
		return mail.NewQueueSender(redisClient, cfg.Queue.Stream), nil
	default:
		return nil, fmt.Errorf("unknown mail delivery %q", cfg.Mail.Delivery)
	}
}

func waitForShutdown(
	logger zerolog.Logger,
	srv *server.HTTPServer,
	scheduler *jobs.Scheduler,
	db *pgxpool.Pool,
	redisClient *redis.Client,
	shutdownTracing telemetry.ShutdownFunc,
) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("session purge still running at shutdown")
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	if err := shutdownTracing(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error().Err(err).Msg("tracer shutdown error")
	}

	logger.Info().Msg("server exited cleanly")
}
