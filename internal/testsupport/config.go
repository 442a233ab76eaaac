package testsupport

import (
	"path/filepath"
	"testing"

	"marketpipe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(base, "data")
	cfg.LogDir = filepath.Join(base, "logs")
	cfg.APIBind = "127.0.0.1:0"
	cfg.Workflow.PollInterval = 1
	cfg.Workflow.ItemDelay = 0
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Search.APIKey = "test"
	cfg.LLM.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithSources overrides the search source list on the test config.
func WithSources(sources ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.Sources = sources
	}
}

// WithMaxRetries overrides the retry budget on the test config.
func WithMaxRetries(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxRetries = n
	}
}
