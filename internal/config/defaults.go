package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	dataDir := getDefaultDataDir()

	return &Config{
		Core: CoreConfig{
			DataDir: dataDir,
			Debug:   false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Audit: RateLimitClass{
				MaxRequests: 100,
				Window:      15 * time.Minute,
			},
			API: RateLimitClass{
				MaxRequests: 300,
				Window:      15 * time.Minute,
			},
		},
		Cache: CacheConfig{
			ExtractTTL:      15 * time.Minute,
			AnalyzeTTL:      30 * time.Minute,
			ResultTTL:       30 * time.Minute,
			JanitorInterval: time.Minute,
		},
		Queue: QueueConfig{
			MaxQueueSize:    50,
			ConcurrentLimit: 5,
			MaxWait:         2 * time.Minute,
		},
		Workflow: WorkflowConfig{
			DefaultTimeout: 60 * time.Second,
			MaxTimeout:     5 * time.Minute,
			MaxRetries:     2,
			RetryBaseDelay: 200 * time.Millisecond,
			RetryMaxDelay:  5 * time.Second,
		},
		Extraction: ExtractionConfig{
			UserAgent:         "trustscan/1.0 (+https://trustscan.dev/bot)",
			MaxBodyBytes:      2 << 20,
			RequestsPerSecond: 1,
			Burst:             2,
		},
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			APIKey:            "${OPENAI_API_KEY}",
			Temperature:       0.1,
			HeuristicFallback: true,
		},
		Ledger: LedgerConfig{
			Enabled: false,
			Timeout: 10 * time.Second,
		},
		Database: DBConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir, "trustscan.db"),
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "",
		},
	}
}

// getDefaultDataDir returns the default data directory, falling back to
// a temporary directory if the user home cannot be determined.
func getDefaultDataDir() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".trustscan")
	}
	return filepath.Join(userHome, ".trustscan")
}
