// Package config holds the application configuration, loaded through viper
// with defaults, file overrides, and environment bindings for secrets.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration object.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Inference InferenceConfig `mapstructure:"inference" yaml:"inference"`
	Collab    CollabConfig    `mapstructure:"collab" yaml:"collab"`
	Feeds     FeedsConfig     `mapstructure:"feeds" yaml:"feeds"`
}

// LoggerConfig controls the zap logger bootstrap.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig controls the HTTP/websocket listener.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen" yaml:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// StoreConfig selects and configures the persistent store backend.
type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `mapstructure:"driver" yaml:"driver"`
	// DSN is the sqlite database path; ignored for the memory driver.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
	// Seed loads the demo incident/asset/weather dataset on first start.
	Seed bool `mapstructure:"seed" yaml:"seed"`
}

// InferenceConfig configures the external inference service client.
type InferenceConfig struct {
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// CollabConfig tunes the collaboration orchestrator.
type CollabConfig struct {
	// HistoryWindow is how many prior session messages a round reads.
	HistoryWindow int `mapstructure:"history_window" yaml:"history_window"`
	// PromptWindow is how many of those messages each role's prompt quotes.
	PromptWindow int `mapstructure:"prompt_window" yaml:"prompt_window"`
	// EventBuffer sizes the per-round event channel.
	EventBuffer int `mapstructure:"event_buffer" yaml:"event_buffer"`
}

// FeedsConfig controls the simulated live-condition feed.
type FeedsConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "stormdesk")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Server --
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// -- Store --
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "stormdesk.db")
	v.SetDefault("store.seed", true)

	// -- Inference --
	v.SetDefault("inference.model", "gpt-oss-120b")
	v.SetDefault("inference.api_key", "")
	v.SetDefault("inference.endpoint", "https://api.cerebras.ai/v1/chat/completions")
	v.SetDefault("inference.api_timeout", "30s")
	v.SetDefault("inference.temperature", 0.4)
	v.SetDefault("inference.max_tokens", 512)
	v.SetDefault("inference.requests_per_second", 5.0)

	// -- Collaboration --
	v.SetDefault("collab.history_window", 10)
	v.SetDefault("collab.prompt_window", 5)
	v.SetDefault("collab.event_buffer", 16)

	// -- Feeds --
	v.SetDefault("feeds.enabled", true)
	v.SetDefault("feeds.interval", "20s")
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Secrets come from the environment, never from checked-in config files.
	v.BindEnv("inference.api_key", "STORMDESK_INFERENCE_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig returns a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", "memory", "sqlite", c.Store.Driver)
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is a required configuration field")
	}
	if c.Collab.HistoryWindow <= 0 {
		return fmt.Errorf("collab.history_window must be a positive integer")
	}
	if c.Collab.PromptWindow <= 0 {
		return fmt.Errorf("collab.prompt_window must be a positive integer")
	}
	if c.Inference.APITimeout <= 0 {
		return fmt.Errorf("inference.api_timeout must be a positive duration")
	}
	if c.Feeds.Enabled && c.Feeds.Interval <= 0 {
		return fmt.Errorf("feeds.interval must be a positive duration")
	}
	return nil
}
