package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Workflow contains stage worker timing and retry configuration.
// Intervals and delays are in seconds.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	BatchSize          int `toml:"batch_size"`
	ItemDelay          int `toml:"item_delay"`
	ItemTimeout        int `toml:"item_timeout"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	MaxRetries         int `toml:"max_retries"`
}

// Pipeline contains research pipeline shape configuration.
type Pipeline struct {
	Sources      []string `toml:"sources"`
	URLBatchSize int      `toml:"url_batch_size"`
}

// Search contains configuration for the web search (SERP) provider.
type Search struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxResults     int    `toml:"max_results"`
}

// LLM contains configuration for the generative text provider used by the
// perplexity, insight, and implication stages.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Config is the root configuration document.
type Config struct {
	Paths    `toml:"paths"`
	Logging  Logging  `toml:"logging"`
	Workflow Workflow `toml:"workflow"`
	Pipeline Pipeline `toml:"pipeline"`
	Search   Search   `toml:"search"`
	LLM      LLM      `toml:"llm"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	return expandPath("~/.config/marketpipe/config.toml")
}

// Load reads the config file at path (or the default location when path is
// empty), applies defaults for unset values, and validates the result. A
// missing file yields the defaults.
func Load(path string) (*Config, string, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	} else {
		resolved = expandPath(resolved)
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply.
	default:
		return nil, resolved, fmt.Errorf("read config %s: %w", resolved, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, resolved, err
	}
	return &cfg, resolved, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	resolved := expandPath(path)
	if _, err := os.Stat(resolved); err == nil {
		return fmt.Errorf("config file already exists at %s", resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(resolved, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.DataDir = expandPath(c.DataDir)
	c.LogDir = expandPath(c.LogDir)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	sources := make([]string, 0, len(c.Pipeline.Sources))
	for _, source := range c.Pipeline.Sources {
		if trimmed := strings.TrimSpace(source); trimmed != "" {
			sources = append(sources, trimmed)
		}
	}
	c.Pipeline.Sources = sources
}

func expandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
		}
	}
	return trimmed
}
