package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marketpipe/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Workflow.MaxRetries != 3 {
		t.Fatalf("max_retries = %d, want default 3", cfg.Workflow.MaxRetries)
	}
	if len(cfg.Pipeline.Sources) == 0 {
		t.Fatal("default sources missing")
	}
	if cfg.APIBind == "" {
		t.Fatal("default api_bind missing")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[workflow]
max_retries = 7
batch_size = 2

[pipeline]
sources = ["duckduckgo"]
url_batch_size = 3
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workflow.MaxRetries != 7 {
		t.Fatalf("max_retries = %d, want 7", cfg.Workflow.MaxRetries)
	}
	if cfg.Workflow.BatchSize != 2 {
		t.Fatalf("batch_size = %d, want 2", cfg.Workflow.BatchSize)
	}
	if len(cfg.Pipeline.Sources) != 1 || cfg.Pipeline.Sources[0] != "duckduckgo" {
		t.Fatalf("sources = %v", cfg.Pipeline.Sources)
	}
	// Untouched sections keep their defaults.
	if cfg.Workflow.PollInterval != 5 {
		t.Fatalf("poll_interval = %d, want default 5", cfg.Workflow.PollInterval)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[workflow]
poll_interval = 0

[pipeline]
sources = []
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "poll_interval") || !strings.Contains(err.Error(), "sources") {
		t.Fatalf("error %q should name both problems", err)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when target exists")
	}

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config does not validate: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(base, "data")
	cfg.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.DataDir, cfg.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("directory %s missing: %v", dir, err)
		}
	}
}
