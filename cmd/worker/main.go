package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/receipt-assistant/internal/bootstrap"
	"github.com/kirillkom/receipt-assistant/internal/config"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/receipt-assistant/internal/observability/logging"
	"github.com/kirillkom/receipt-assistant/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err.Error())
		os.Exit(1)
	}
	service := cfg.AppName + "-worker"
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	if !cfg.EventsEnabled {
		logger.Error("worker_requires_events", "hint", "set EVENTS_ENABLED=true")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewBuilder(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err.Error())
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "catalog_subject", cfg.NATSCatalogSubject, "source", cfg.CatalogSource)
	err = app.Queue.SubscribeRebuildRequests(ctx, func(handlerCtx context.Context, req nats.RebuildRequest) error {
		if !req.RequestedAt.IsZero() {
			workerMetrics.ObserveQueueLag(service, time.Since(req.RequestedAt))
		}
		buildCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Minute)
		defer cancel()

		started := time.Now()
		workerMetrics.StartBuild()
		report, err := app.Builder.Rebuild(buildCtx)
		workerMetrics.FinishBuild(service, time.Since(started), report.Rows, report.Skipped, err)
		if err != nil {
			return err
		}
		logger.Info("catalog_rebuild_done", "reason", req.Reason, "rows", report.Rows, "dir", report.Dir)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err.Error())
		os.Exit(1)
	}
}
