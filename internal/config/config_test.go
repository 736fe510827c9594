package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Sources.ProcessingPriority) != 4 {
		t.Errorf("expected 4 sources in processing priority, got %d", len(cfg.Sources.ProcessingPriority))
	}
	if !cfg.Sources.MuckRock.Enabled {
		t.Error("expected muckrock enabled in default config")
	}
	if cfg.Sources.MuckRock.APITokenEnv != "MUCKROCK_API_TOKEN" {
		t.Errorf("unexpected token env: %q", cfg.Sources.MuckRock.APITokenEnv)
	}
	if cfg.Classification.SchemaVersion != 1 {
		t.Errorf("expected schema version 1, got %d", cfg.Classification.SchemaVersion)
	}
	if cfg.Classification.MaxElapsed.Std() != 5*time.Minute {
		t.Errorf("expected max_elapsed 5m, got %v", cfg.Classification.MaxElapsed.Std())
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
classification:
  provider: ollama
  workers: 2
processing:
  dedupe:
    similarity_threshold: 0.95
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Classification.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.Classification.Provider)
	}
	if cfg.Classification.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Classification.Workers)
	}
	if cfg.Processing.Dedupe.SimilarityThreshold != 0.95 {
		t.Errorf("expected threshold 0.95, got %v", cfg.Processing.Dedupe.SimilarityThreshold)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Processing.Extraction.MinTextChars != 1000 {
		t.Errorf("expected default min_text_chars, got %d", cfg.Processing.Extraction.MinTextChars)
	}
	if cfg.Classification.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("expected default api_key_env, got %q", cfg.Classification.APIKeyEnv)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Sources.AgencyLogs.Agencies) == 0 {
		t.Error("expected agency endpoints to be populated from file")
	}
}

func TestSourceRate(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if rate := cfg.SourceRate("muckrock"); rate.RequestsPerSecond != 5 {
		t.Errorf("expected muckrock at 5 rps, got %v", rate.RequestsPerSecond)
	}
	if rate := cfg.SourceRate("nonexistent"); rate.RequestsPerSecond != 0 {
		t.Errorf("expected zero budget for unknown source, got %v", rate.RequestsPerSecond)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	if cfg.GetDataDir() == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
