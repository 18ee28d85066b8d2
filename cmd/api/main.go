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

	httpadapter "github.com/kirillkom/receipt-assistant/internal/adapters/http"
	"github.com/kirillkom/receipt-assistant/internal/bootstrap"
	"github.com/kirillkom/receipt-assistant/internal/config"
	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/observability/logging"
	"github.com/kirillkom/receipt-assistant/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err.Error())
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(cfg.AppName+"-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(cfg.AppName + "-api")
	app, err := bootstrap.NewAPI(ctx, cfg, httpMetrics)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	if app.Queue != nil {
		go func() {
			err := app.Queue.SubscribeCatalogRebuilt(ctx, func(handlerCtx context.Context, report domain.BuildReport) error {
				logger.Info("catalog_rebuilt_event", "rows", report.Rows, "built_at", report.BuiltAt)
				return app.Catalog.Reload(handlerCtx)
			})
			if err != nil {
				logger.Error("catalog_events_subscribe_failed", "error", err.Error())
			}
		}()
	}

	router := httpadapter.NewRouter(cfg, app.Receipts, app.Catalog, app.Embedder, httpMetrics).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.OracleTimeout + cfg.OCRTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "catalog_dir", cfg.CatalogDir, "threshold", cfg.CatalogMatchThreshold)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err.Error())
	}
}
