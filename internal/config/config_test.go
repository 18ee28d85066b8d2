package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CATALOG_MATCH_THRESHOLD", "")
	t.Setenv("ORACLE_PROVIDER", "")
	t.Setenv("ORACLE_TIMEOUT", "")
	t.Setenv("CATALOG_SOURCE", "")
	t.Setenv("CATALOG_EXACT_SEARCH_LIMIT", "")
	t.Setenv("OCR_MAX_IMAGE_SIDE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CatalogMatchThreshold != 1.0 {
		t.Fatalf("expected default threshold 1.0, got %v", cfg.CatalogMatchThreshold)
	}
	if cfg.OracleProvider != OracleOllama {
		t.Fatalf("expected ollama oracle, got %q", cfg.OracleProvider)
	}
	if cfg.OracleTimeout != 60*time.Second {
		t.Fatalf("expected 60s oracle timeout, got %v", cfg.OracleTimeout)
	}
	if cfg.CatalogSource != SourceCSV {
		t.Fatalf("expected csv source, got %q", cfg.CatalogSource)
	}
	if cfg.OCRMaxImageSide != 1024 || cfg.CatalogExactSearchLimit != 50000 {
		t.Fatalf("unexpected OCR/search defaults %d %d", cfg.OCRMaxImageSide, cfg.CatalogExactSearchLimit)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CATALOG_MATCH_THRESHOLD", "0.75")
	t.Setenv("ORACLE_TIMEOUT", "45")
	t.Setenv("EMBED_TIMEOUT", "1500ms")
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("CATALOG_SOURCE", "XLSX")
	t.Setenv("CATALOG_EXACT_SEARCH_LIMIT", "200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CatalogMatchThreshold != 0.75 {
		t.Fatalf("expected threshold 0.75, got %v", cfg.CatalogMatchThreshold)
	}
	if cfg.OracleTimeout != 45*time.Second {
		t.Fatalf("expected 45s, got %v", cfg.OracleTimeout)
	}
	if cfg.EmbedTimeout != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %v", cfg.EmbedTimeout)
	}
	if cfg.CatalogExactSearchLimit != 200 {
		t.Fatalf("expected exact search limit 200, got %d", cfg.CatalogExactSearchLimit)
	}
	if !cfg.EventsEnabled || cfg.CatalogSource != SourceXLSX {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadReadsDotEnvAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("RECEIPT_DOTENV_MARKER=deu\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	yamlPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(yamlPath, []byte("catalog_dir: /srv/catalog\nAPI_PORT: 9000\nLOG_LEVEL: debug\n"), 0o644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}
	t.Setenv("RECEIPT_DOTENV_MARKER", "")
	os.Unsetenv("RECEIPT_DOTENV_MARKER")
	t.Setenv("CONFIG_FILE", yamlPath)
	t.Setenv("CATALOG_DIR", "")
	t.Setenv("API_PORT", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := os.Getenv("RECEIPT_DOTENV_MARKER"); got != "deu" {
		t.Fatalf("expected .env to populate environment, got %q", got)
	}
	if cfg.CatalogDir != "/srv/catalog" || cfg.APIPort != "9000" {
		t.Fatalf("expected file defaults, got dir=%q port=%q", cfg.CatalogDir, cfg.APIPort)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected env to override file, got %q", cfg.LogLevel)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Config{
		CatalogMatchThreshold: 0,
		OracleProvider:        OracleGemini,
		CatalogSource:         "mongo",
		MaxUploadBytes:        1,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}

	cfg = Config{
		CatalogMatchThreshold: 1,
		OracleProvider:        OracleOllama,
		CatalogSource:         SourcePostgres,
		MaxUploadBytes:        1,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
