package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/receipt-assistant/internal/config"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/catalog/source"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/resilience"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		AppName:               "receipt-assistant-test",
		OllamaURL:             "http://127.0.0.1:1",
		OllamaGenModel:        "gen",
		OllamaEmbedModel:      "embed",
		OracleProvider:        config.OracleOllama,
		CatalogDir:            filepath.Join(t.TempDir(), "catalog"),
		CatalogMatchThreshold: 1,
		CatalogSource:         config.SourceCSV,
		CatalogSourcePath:     filepath.Join(t.TempDir(), "products.csv"),
		MaxUploadBytes:        1 << 20,
	}
}

func TestNewAPIStartsWithoutCatalog(t *testing.T) {
	app, err := NewAPI(context.Background(), baseConfig(t), nil)
	if err != nil {
		t.Fatalf("NewAPI() error = %v", err)
	}
	defer app.Close()

	if app.Catalog == nil || app.Catalog.Current() != nil {
		t.Fatalf("expected holder without a loaded index")
	}
	if app.Receipts == nil || app.Queue != nil {
		t.Fatalf("unexpected app wiring: receipts=%v queue=%v", app.Receipts, app.Queue)
	}
}

func TestNewBuilderUsesConfiguredSource(t *testing.T) {
	cfg := baseConfig(t)
	if err := os.WriteFile(cfg.CatalogSourcePath, []byte("product_id,product_name,price\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	app, err := NewBuilder(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	defer app.Close()
	if app.Builder == nil {
		t.Fatalf("expected builder to be wired")
	}
}

func TestNewCatalogSourceSelectsImplementation(t *testing.T) {
	cfg := baseConfig(t)

	src, closeFn, err := NewCatalogSource(context.Background(), cfg)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	closeFn()
	if _, ok := src.(*source.CSVFile); !ok {
		t.Fatalf("expected *source.CSVFile, got %T", src)
	}

	cfg.CatalogSource = config.SourceXLSX
	src, closeFn, err = NewCatalogSource(context.Background(), cfg)
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	closeFn()
	if _, ok := src.(*source.Spreadsheet); !ok {
		t.Fatalf("expected *source.Spreadsheet, got %T", src)
	}

	cfg.CatalogSource = "mongo"
	if _, _, err := NewCatalogSource(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for unknown source")
	}
}

func TestNewGeneratorSelectsProvider(t *testing.T) {
	cfg := baseConfig(t)
	executor := resilience.NewExecutor(resilience.SingleAttemptConfig())

	gen, err := newGenerator(cfg, executor)
	if err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if _, ok := gen.(*ollama.Generator); !ok {
		t.Fatalf("expected *ollama.Generator, got %T", gen)
	}

	cfg.OracleProvider = config.OracleGemini
	if _, err := newGenerator(cfg, executor); err == nil {
		t.Fatalf("expected error without gemini key")
	}
	cfg.GeminiAPIKey = "k"
	cfg.GeminiModel = "gemini-2.0-flash"
	gen, err = newGenerator(cfg, executor)
	if err != nil {
		t.Fatalf("gemini: %v", err)
	}
	if _, ok := gen.(*gemini.Generator); !ok {
		t.Fatalf("expected *gemini.Generator, got %T", gen)
	}
}
