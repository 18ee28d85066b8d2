package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/receipt-assistant/internal/config"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
	"github.com/kirillkom/receipt-assistant/internal/core/usecase"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/catalog"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/catalog/source"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/ocr/tesseract"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config

	// Queue is nil when EVENTS_ENABLED is false.
	Queue    *nats.Queue
	Embedder ports.Embedder
	Catalog  *catalog.Holder
	Receipts *usecase.ReceiptUseCase
	Builder  *usecase.BuildCatalogUseCase

	closers []func()
}

// NewAPI wires the receipt pipeline and loads the catalog from CATALOG_DIR.
// A missing catalog is not fatal; resolution passes items through until a
// reload succeeds.
func NewAPI(ctx context.Context, cfg config.Config, observer catalog.ReloadObserver) (*App, error) {
	app := &App{Config: cfg}

	if err := app.openQueue(cfg); err != nil {
		return nil, err
	}

	embedder := newEmbedder(cfg, resilience.NewExecutor(resilience.SingleAttemptConfig()))
	generator, err := newGenerator(cfg, resilience.NewExecutor(resilience.SingleAttemptConfig()))
	if err != nil {
		app.Close()
		return nil, err
	}
	ocr := tesseract.New(tesseract.Options{
		Binary:       cfg.OCRBinary,
		Lang:         cfg.OCRLang,
		Timeout:      cfg.OCRTimeout,
		MaxImageSide: cfg.OCRMaxImageSide,
	})

	holder := catalog.NewHolder(cfg.CatalogDir, embedder.ModelName(), observer)
	holder.SetExactSearchLimit(cfg.CatalogExactSearchLimit)
	if err := holder.Reload(ctx); err != nil {
		slog.Warn("catalog_unavailable_at_start", "dir", cfg.CatalogDir, "mode", "pass_through")
	}

	var receiptEvents ports.ReceiptEvents
	if app.Queue != nil {
		receiptEvents = app.Queue
	}

	normalizer := usecase.NewNormalizeUseCase(generator)
	resolver := usecase.NewResolveUseCase(embedder, holder, cfg.CatalogMatchThreshold)

	app.Embedder = embedder
	app.Catalog = holder
	app.Receipts = usecase.NewReceiptUseCase(ocr, normalizer, resolver, holder, receiptEvents)
	return app, nil
}

// NewBuilder wires the catalog rebuild path: source, embedder and artifact writer.
func NewBuilder(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}

	if err := app.openQueue(cfg); err != nil {
		return nil, err
	}

	src, closeSource, err := NewCatalogSource(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, closeSource)

	// Builds are batch jobs, so transient embedder failures are retried.
	embedder := newEmbedder(cfg, resilience.NewExecutor(resilience.DefaultConfig()))

	var catalogEvents ports.CatalogEvents
	if app.Queue != nil {
		catalogEvents = app.Queue
	}

	app.Embedder = embedder
	app.Builder = usecase.NewBuildCatalogUseCase(src, catalog.NewIndexer(embedder, cfg.CatalogDir), catalogEvents)
	return app, nil
}

// NewCatalogSource opens the configured catalog source. The returned func
// releases whatever the source holds open.
func NewCatalogSource(ctx context.Context, cfg config.Config) (ports.CatalogSource, func(), error) {
	switch cfg.CatalogSource {
	case config.SourceCSV:
		return source.NewCSVFile(cfg.CatalogSourcePath), func() {}, nil
	case config.SourceXLSX:
		return source.NewSpreadsheet(cfg.CatalogSourcePath, cfg.CatalogXLSXSheet), func() {}, nil
	case config.SourcePostgres:
		repo, closeDB, err := OpenProductRepository(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return repo, closeDB, nil
	default:
		return nil, nil, fmt.Errorf("unknown catalog source %q", cfg.CatalogSource)
	}
}

func OpenProductRepository(ctx context.Context, cfg config.Config) (*postgres.ProductRepository, func(), error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewProductRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, func() { _ = db.Close() }, nil
}

// NewEmbedder builds the runtime embedding function.
func NewEmbedder(cfg config.Config) *ollama.Embedder {
	return newEmbedder(cfg, resilience.NewExecutor(resilience.SingleAttemptConfig()))
}

func newEmbedder(cfg config.Config, executor *resilience.Executor) *ollama.Embedder {
	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	return ollama.NewEmbedder(client, ollama.EmbedderOptions{
		Timeout:   cfg.EmbedTimeout,
		BatchSize: cfg.EmbedBatchSize,
		Executor:  executor,
	})
}

func newGenerator(cfg config.Config, executor *resilience.Executor) (ports.TextGenerator, error) {
	switch cfg.OracleProvider {
	case config.OracleGemini:
		gen, err := gemini.NewGenerator(gemini.Options{
			BaseURL:  cfg.GeminiBaseURL,
			APIKey:   cfg.GeminiAPIKey,
			Model:    cfg.GeminiModel,
			Timeout:  cfg.OracleTimeout,
			Executor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini oracle: %w", err)
		}
		return gen, nil
	default:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
		return ollama.NewGenerator(client, ollama.GeneratorOptions{
			Timeout:    cfg.OracleTimeout,
			JSONFormat: true,
			Executor:   executor,
		}), nil
	}
}

func (a *App) openQueue(cfg config.Config) error {
	if !cfg.EventsEnabled {
		return nil
	}
	queue, err := nats.NewWithOptions(
		cfg.NATSURL,
		nats.SubjectsFor(cfg.NATSCatalogSubject, cfg.NATSReceiptSubject),
		nats.Options{
			Name:               cfg.AppName,
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
		},
	)
	if err != nil {
		return fmt.Errorf("init message queue: %w", err)
	}
	a.Queue = queue
	a.closers = append(a.closers, queue.Close)
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
