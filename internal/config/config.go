// Package config defines the service configuration, its defaults, the
// YAML loader with environment variable interpolation, and validation.
package config

import (
	"time"
)

// Config is the root configuration for the trust audit service.
type Config struct {
	Core       CoreConfig       `mapstructure:"core" yaml:"core" validate:"required"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server" validate:"required"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" yaml:"rate_limit"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Queue      QueueConfig      `mapstructure:"queue" yaml:"queue"`
	Workflow   WorkflowConfig   `mapstructure:"workflow" yaml:"workflow"`
	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Ledger     LedgerConfig     `mapstructure:"ledger" yaml:"ledger,omitempty"`
	Database   DBConfig         `mapstructure:"database" yaml:"database"`
	Auth       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	Debug   bool   `mapstructure:"debug" yaml:"debug"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// RateLimitClass configures one rate limiting class.
type RateLimitClass struct {
	MaxRequests int           `mapstructure:"max_requests" yaml:"max_requests" validate:"min=1"`
	Window      time.Duration `mapstructure:"window" yaml:"window" validate:"min=1s"`
}

// RateLimitConfig contains the per-class rate limiter settings. Audit
// submission is limited separately from the cheaper API endpoints.
type RateLimitConfig struct {
	Audit RateLimitClass `mapstructure:"audit" yaml:"audit"`
	API   RateLimitClass `mapstructure:"api" yaml:"api"`
}

// CacheConfig contains the in-memory result cache settings.
type CacheConfig struct {
	ExtractTTL      time.Duration `mapstructure:"extract_ttl" yaml:"extract_ttl"`
	AnalyzeTTL      time.Duration `mapstructure:"analyze_ttl" yaml:"analyze_ttl"`
	ResultTTL       time.Duration `mapstructure:"result_ttl" yaml:"result_ttl"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval" yaml:"janitor_interval"`
}

// QueueConfig contains the request queue settings.
type QueueConfig struct {
	MaxQueueSize    int           `mapstructure:"max_queue_size" yaml:"max_queue_size" validate:"min=1"`
	ConcurrentLimit int           `mapstructure:"concurrent_limit" yaml:"concurrent_limit" validate:"min=1,max=100"`
	MaxWait         time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
}

// WorkflowConfig contains orchestrator timing and retry settings.
type WorkflowConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout" validate:"min=1s"`
	MaxTimeout     time.Duration `mapstructure:"max_timeout" yaml:"max_timeout"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay" yaml:"retry_max_delay"`
}

// ExtractionConfig contains website content extraction settings.
type ExtractionConfig struct {
	UserAgent         string  `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBodyBytes      int64   `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// LLMConfig contains AI analysis provider configuration. The API key
// is normally supplied via ${OPENAI_API_KEY} interpolation.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider" validate:"omitempty,oneof=openai ollama"`
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" validate:"min=0,max=2"`

	// HeuristicFallback enables the deterministic analyzer as a degraded
	// path when the provider is unavailable.
	HeuristicFallback bool `mapstructure:"heuristic_fallback" yaml:"heuristic_fallback"`
}

// LedgerConfig contains ledger anchoring settings.
type LedgerConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DBConfig contains report persistence settings.
type DBConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// AuthConfig contains authentication settings. Tokens map bearer token
// values to user ids; values are normally supplied via ${ENV}
// interpolation rather than stored in the file.
type AuthConfig struct {
	Enabled bool              `mapstructure:"enabled" yaml:"enabled"`
	Tokens  map[string]string `mapstructure:"tokens" yaml:"tokens,omitempty"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=json text"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}
