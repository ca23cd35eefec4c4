package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Jobs        JobsConfig       `toml:"jobs"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Embeddings  EmbeddingsConfig `toml:"embeddings"`
	Sitemap     SitemapConfig    `toml:"sitemap"`
	Citations   CitationsConfig  `toml:"citations"`
	Webhook     WebhookConfig    `toml:"webhook"`
	WebSocket   WebSocketConfig  `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger     BadgerConfig     `toml:"badger"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type FilesystemConfig struct {
	Images  string `toml:"images"`  // Directory for generated image artifacts
	Mirrors string `toml:"mirrors"` // Directory for markdown document mirrors
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// JobsConfig controls the background job scheduler
type JobsConfig struct {
	MaxConcurrent      int    `toml:"max_concurrent" validate:"gte=1"` // Concurrent pipeline executions
	SchedulerInterval  string `toml:"scheduler_interval"`              // Tick interval, e.g. "5s"
	RetentionDays      int    `toml:"retention_days" validate:"gte=1"` // Terminal jobs older than this are swept
	MaxDurationMinutes int    `toml:"max_duration_minutes"`            // Per-job execution budget
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey     string `toml:"api_key"`
	Model      string `toml:"model"`       // Generation model (default: "gemini-2.0-flash")
	ImageModel string `toml:"image_model"` // Image generation model
	Timeout    string `toml:"timeout"`     // Operation timeout as duration string (default: "5m")
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"` // Review-rewrite model (default: "claude-sonnet-4-20250514")
}

// LLMConfig selects the generator provider
type LLMConfig struct {
	Provider string `toml:"provider" validate:"omitempty,oneof=gemini claude mock"` // Empty resolves from available keys
}

// EmbeddingsConfig contains the embedding service endpoint configuration
type EmbeddingsConfig struct {
	Endpoint string `toml:"endpoint"` // POST /embed endpoint; empty degrades to no-op
	Timeout  string `toml:"timeout"`  // Request timeout (default: "60s")
}

// SitemapConfig controls the sitemap crawler and its cache
type SitemapConfig struct {
	MaxURLs      int    `toml:"max_urls" validate:"gte=1"`   // Truncation limit per crawl
	CacheSize    int    `toml:"cache_size" validate:"gte=1"` // LRU capacity
	CacheTTL     string `toml:"cache_ttl"`                   // Entry lifetime (default: "1h")
	RequestDelay string `toml:"request_delay"`               // Delay between candidate fetches (default: "500ms")
}

// CitationsConfig controls citation validation behavior
type CitationsConfig struct {
	ForbiddenDomains  []string `toml:"forbidden_domains"`   // Never cited, even as alternatives
	AuthorityDomains  []string `toml:"authority_domains"`   // Generic fallbacks rejected from the citation map
	MaxConcurrent     int      `toml:"max_concurrent"`      // Concurrent HEAD probes per batch
	PerHostDelay      string   `toml:"per_host_delay"`      // Minimum delay between probes to one host
	ValidationTimeout string   `toml:"validation_timeout"`  // HEAD probe timeout (default: "5s")
}

// WebhookConfig controls completion webhook delivery
type WebhookConfig struct {
	Timeout string `toml:"timeout"` // POST timeout (default: "30s")
}

// WebSocketConfig contains configuration for WebSocket event streaming
type WebSocketConfig struct {
	MinLevel string `toml:"min_level"` // Minimum log level to broadcast
}

// DefaultConfig returns a configuration populated with defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/scriptor",
			},
			Filesystem: FilesystemConfig{
				Images:  "./data/images",
				Mirrors: "./data/mirrors",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Jobs: JobsConfig{
			MaxConcurrent:      3,
			SchedulerInterval:  "5s",
			RetentionDays:      7,
			MaxDurationMinutes: 30,
		},
		Gemini: GeminiConfig{
			Model:      "gemini-2.0-flash",
			ImageModel: "imagen-3.0-generate-002",
			Timeout:    "5m",
		},
		Claude: ClaudeConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Embeddings: EmbeddingsConfig{
			Timeout: "60s",
		},
		Sitemap: SitemapConfig{
			MaxURLs:      10000,
			CacheSize:    100,
			CacheTTL:     "1h",
			RequestDelay: "500ms",
		},
		Citations: CitationsConfig{
			ForbiddenDomains:  []string{"reddit.com", "quora.com", "pinterest.com"},
			AuthorityDomains:  []string{"google.com", "wikipedia.org", "youtube.com"},
			MaxConcurrent:     5,
			PerHostDelay:      "200ms",
			ValidationTimeout: "5s",
		},
		Webhook: WebhookConfig{
			Timeout: "30s",
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
		},
	}
}

// LoadFromFiles loads configuration from defaults, then overlays each file in
// order, then applies environment overrides. Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies SCRIPTOR_* environment variables over file values
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SCRIPTOR_GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv("SCRIPTOR_CLAUDE_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("SCRIPTOR_EMBEDDINGS_ENDPOINT"); v != "" {
		config.Embeddings.Endpoint = v
	}
	if v := os.Getenv("SCRIPTOR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("SCRIPTOR_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("SCRIPTOR_STORAGE_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks structural constraints on the configuration
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for name, value := range map[string]string{
		"jobs.scheduler_interval":      c.Jobs.SchedulerInterval,
		"sitemap.cache_ttl":            c.Sitemap.CacheTTL,
		"sitemap.request_delay":        c.Sitemap.RequestDelay,
		"citations.validation_timeout": c.Citations.ValidationTimeout,
		"webhook.timeout":              c.Webhook.Timeout,
		"embeddings.timeout":           c.Embeddings.Timeout,
		"gemini.timeout":               c.Gemini.Timeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}
	return nil
}

// Duration parses a duration field with a fallback default
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
