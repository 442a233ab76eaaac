package config

const (
	defaultDataDir       = "~/.local/share/marketpipe"
	defaultLogDir        = "~/.local/share/marketpipe/logs"
	defaultAPIBind       = "127.0.0.1:7519"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultSearchBaseURL = "https://google.serper.dev/search"
	defaultLLMBaseURL    = "https://api.perplexity.ai/chat/completions"
	defaultLLMModel      = "sonar-pro"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Workflow: Workflow{
			PollInterval:       5,
			BatchSize:          10,
			ItemDelay:          1,
			ItemTimeout:        300,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  60,
			MaxRetries:         3,
		},
		Pipeline: Pipeline{
			Sources:      []string{"google", "bing"},
			URLBatchSize: 5,
		},
		Search: Search{
			BaseURL:        defaultSearchBaseURL,
			TimeoutSeconds: 30,
			MaxResults:     20,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: 60,
		},
	}
}
