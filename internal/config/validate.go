package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.LogDir) == "" {
		problems = append(problems, "paths.log_dir must not be empty")
	}
	if c.Workflow.PollInterval <= 0 {
		problems = append(problems, "workflow.poll_interval must be positive")
	}
	if c.Workflow.BatchSize <= 0 {
		problems = append(problems, "workflow.batch_size must be positive")
	}
	if c.Workflow.ItemDelay < 0 {
		problems = append(problems, "workflow.item_delay must not be negative")
	}
	if c.Workflow.ItemTimeout < 0 {
		problems = append(problems, "workflow.item_timeout must not be negative")
	}
	if c.Workflow.MaxRetries < 0 {
		problems = append(problems, "workflow.max_retries must not be negative")
	}
	if len(c.Pipeline.Sources) == 0 {
		problems = append(problems, "pipeline.sources must list at least one search source")
	}
	if c.Pipeline.URLBatchSize <= 0 {
		problems = append(problems, "pipeline.url_batch_size must be positive")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
