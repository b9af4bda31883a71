// ABOUTME: Configuration loading and parsing for taskdesk
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when the config file leaves fields unset.
const (
	DefaultHTTPAddr        = "0.0.0.0:8080"
	DefaultDispatchTimeout = 60 * time.Second
	DefaultReserveRetries  = 2
)

// Config represents the complete taskdesk configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Executor ExecutorConfig `yaml:"executor"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ExecutorConfig holds the remote executor (chat model) configuration
type ExecutorConfig struct {
	Provider    string   `yaml:"provider"` // openai, deepseek, or any openai-compatible endpoint
	Model       string   `yaml:"model"`
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	Temperature *float32 `yaml:"temperature"`
}

// DispatchConfig holds dispatch timing and retry configuration
type DispatchConfig struct {
	DefaultTimeout time.Duration `yaml:"-"`
	ReserveRetries int           `yaml:"-"`

	// Raw values for YAML unmarshaling. The pointer distinguishes an
	// explicit reserve_retries: 0 from an absent field.
	DefaultTimeoutRaw string `yaml:"default_timeout"`
	ReserveRetriesRaw *int   `yaml:"reserve_retries"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in unset fields with default values
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Dispatch.DefaultTimeout == 0 {
		c.Dispatch.DefaultTimeout = DefaultDispatchTimeout
	}
	if c.Dispatch.ReserveRetriesRaw != nil {
		c.Dispatch.ReserveRetries = *c.Dispatch.ReserveRetriesRaw
	} else {
		c.Dispatch.ReserveRetries = DefaultReserveRetries
	}
	if c.Executor.Provider == "" {
		c.Executor.Provider = "openai"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Executor.Model == "" {
		return fmt.Errorf("executor.model is required")
	}

	if c.Dispatch.DefaultTimeout < 0 {
		return fmt.Errorf("dispatch.default_timeout must not be negative")
	}

	if c.Dispatch.ReserveRetries < 0 {
		return fmt.Errorf("dispatch.reserve_retries must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Dispatch.DefaultTimeoutRaw != "" {
		cfg.Dispatch.DefaultTimeout, err = time.ParseDuration(cfg.Dispatch.DefaultTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing default_timeout %q: %w", cfg.Dispatch.DefaultTimeoutRaw, err)
		}
	}

	return nil
}
