package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/receipt-assistant/internal/adapters/cli"
	"github.com/kirillkom/receipt-assistant/internal/bootstrap"
	"github.com/kirillkom/receipt-assistant/internal/config"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/receipt-assistant/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(cfg.AppName+"-catalogctl", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(deps(cfg))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func deps(cfg config.Config) cli.Deps {
	d := cli.Deps{
		CatalogDir: cfg.CatalogDir,
		Threshold:  cfg.CatalogMatchThreshold,
		Builder: func(ctx context.Context) (ports.CatalogBuilder, func(), error) {
			app, err := bootstrap.NewBuilder(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			return app.Builder, app.Close, nil
		},
		Embedder: func() ports.Embedder {
			return bootstrap.NewEmbedder(cfg)
		},
		Importer: func(ctx context.Context) (cli.ProductImporter, func(), error) {
			if cfg.PostgresDSN == "" {
				return nil, nil, errors.New("POSTGRES_DSN is not set")
			}
			return bootstrap.OpenProductRepository(ctx, cfg)
		},
	}
	if cfg.EventsEnabled {
		d.RebuildRequester = func() (cli.RebuildRequester, func(), error) {
			queue, err := nats.NewWithOptions(
				cfg.NATSURL,
				nats.SubjectsFor(cfg.NATSCatalogSubject, cfg.NATSReceiptSubject),
				nats.Options{
					Name:               cfg.AppName + "-catalogctl",
					ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
				},
			)
			if err != nil {
				return nil, nil, err
			}
			return queue, queue.Close, nil
		}
	}
	return d
}
