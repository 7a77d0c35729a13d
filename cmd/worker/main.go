package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"pixelhost/internal/config"
	"pixelhost/internal/database"
	"pixelhost/internal/log"
	"pixelhost/internal/metrics"
	"pixelhost/internal/queue"
	"pixelhost/internal/repository"
	"pixelhost/internal/service"
	"pixelhost/internal/storage"
	"pixelhost/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	client, err := queue.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	lifecycle := service.NewLifecycleService(
		repository.NewAccountRepository(dbPool),
		repository.NewImageRepository(dbPool),
		objectStore,
		queue.NewStreamDispatcher(client, cfg.Purge.Stream),
		cfg.Purge.Concurrency,
		m,
		logger,
	)

	processor := tasks.NewProcessor(lifecycle, cfg.Purge.JobTimeout, logger)
	consumer := queue.NewConsumer(client, queue.ConsumerConfig{
		Stream:        cfg.Purge.Stream,
		Group:         cfg.Purge.Group,
		Name:          consumerName(cfg.Purge.Consumer),
		Workers:       cfg.Purge.Workers,
		ClaimInterval: cfg.Purge.ClaimInterval,
		ClaimMinIdle:  cfg.Purge.JobTimeout + time.Minute,
	}, logger, processor)

	metricsServer := &http.Server{
		Addr:              cfg.Metrics.WorkerAddr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := consumer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		for failure := range consumer.Failures() {
			logger.Warn().
				Err(failure.Err).
				Str("message_id", failure.MessageID).
				Msg("task left pending for retry")
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server starting")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker stopped unexpectedly")
		os.Exit(1)
	}
	logger.Info().Msg("worker exited cleanly")
}

// consumerName keeps consumer names unique per host when several workers
// share the configured name.
func consumerName(base string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return base
	}
	return base + "-" + host
}
