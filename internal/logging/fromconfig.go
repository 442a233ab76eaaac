package logging

import (
	"log/slog"
	"path/filepath"

	"marketpipe/internal/config"
)

// NewFromConfig builds the daemon logger: console output plus a log file
// under the configured log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	outputs := []string{"stdout"}
	if cfg.LogDir != "" {
		outputs = append(outputs, filepath.Join(cfg.LogDir, "marketpipe.log"))
	}
	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
}
