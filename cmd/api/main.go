package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pixelhost/internal/config"
	"pixelhost/internal/database"
	"pixelhost/internal/handlers"
	"pixelhost/internal/ids"
	"pixelhost/internal/jobs"
	"pixelhost/internal/log"
	"pixelhost/internal/metrics"
	"pixelhost/internal/queue"
	"pixelhost/internal/repository"
	"pixelhost/internal/server"
	"pixelhost/internal/service"
	"pixelhost/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(cfg.Postgres.DSN); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate postgres")
		}
	}

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := queue.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	accounts := repository.NewAccountRepository(dbPool)
	images := repository.NewImageRepository(dbPool)
	dispatcher := queue.NewStreamDispatcher(redisClient, cfg.Purge.Stream)

	uploads := service.NewUploadService(
		accounts,
		images,
		objectStore,
		ids.NewGenerator(cfg.Upload.ShortIDLength, cfg.Upload.SecretBytes),
		cfg.Upload,
		m,
		logger.With().Str("component", "upload").Logger(),
	)
	lifecycle := service.NewLifecycleService(
		accounts,
		images,
		objectStore,
		dispatcher,
		cfg.Purge.Concurrency,
		m,
		logger.With().Str("component", "lifecycle").Logger(),
	)

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Dependencies{
		Uploads:   uploads,
		Lifecycle: lifecycle,
		Accounts:  accounts,
		Reconcile: dispatcher,
		Probes: map[string]handlers.Probe{
			"database": dbPool.Ping,
			"cache":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			"storage":  objectStore.Ping,
		},
		Gatherer: registry,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	var scheduler *jobs.Scheduler
	if cfg.Reconcile.Enabled {
		scheduler = jobs.NewScheduler(dispatcher, cfg.Reconcile.Schedule, logger)
		if err := scheduler.Start(); err != nil {
			logger.Error().Err(err).Msg("scheduler start failed")
		}
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
