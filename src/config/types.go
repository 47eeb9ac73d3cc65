package config

import (
	"fmt"
	"time"
)

// Config represents the complete configuration for chatstudio
type Config struct {
	// Version of the configuration format
	Version string `json:"version" toml:"version"`

	// API configuration for the completion endpoint
	API APIConfig `json:"api" toml:"api"`

	// Chat behaviour
	Chat ChatConfig `json:"chat" toml:"chat"`

	// Translation of replies into a requested language
	Translation TranslationConfig `json:"translation" toml:"translation"`

	// Local persistence
	Storage StorageConfig `json:"storage" toml:"storage"`

	// Remote relational mirror
	Remote RemoteConfig `json:"remote" toml:"remote"`

	// Identity provider
	Auth AuthConfig `json:"auth" toml:"auth"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" toml:"logging"`
}

// APIConfig holds API-related configuration
type APIConfig struct {
	// BaseURL overrides the default API endpoint
	BaseURL string `json:"base_url,omitempty" toml:"base_url,omitempty" validate:"omitempty,url"`

	// APIKey for authentication (can be omitted if using env vars)
	APIKey string `json:"api_key,omitempty" toml:"api_key,omitempty"`

	// APIKeyEnvVar specifies the environment variable to read the API key from
	APIKeyEnvVar string `json:"api_key_env_var,omitempty" toml:"api_key_env_var,omitempty"`

	// Timeout for each API request
	Timeout Duration `json:"timeout,omitempty" toml:"timeout,omitempty" validate:"min=0"`

	// SystemPrompt replaces the built-in instruction
	SystemPrompt string `json:"system_prompt,omitempty" toml:"system_prompt,omitempty"`

	// MaxRetries after a rate-limited response
	MaxRetries int `json:"max_retries" toml:"max_retries" validate:"min=0,max=10"`
}

// ChatConfig holds conversation store settings
type ChatConfig struct {
	// DefaultModel is the registry id used until the user picks one
	DefaultModel string `json:"default_model" toml:"default_model" validate:"model_id"`

	// RejectConcurrentSends fails a second send on a busy conversation
	RejectConcurrentSends bool `json:"reject_concurrent_sends" toml:"reject_concurrent_sends"`
}

// TranslationConfig holds translation client settings
type TranslationConfig struct {
	Enabled           bool   `json:"enabled" toml:"enabled"`
	BaseURL           string `json:"base_url,omitempty" toml:"base_url,omitempty" validate:"omitempty,url"`
	Email             string `json:"email,omitempty" toml:"email,omitempty" validate:"omitempty,email"`
	RequestsPerMinute int    `json:"requests_per_minute" toml:"requests_per_minute" validate:"min=0"`
}

// StorageConfig selects the local cache backend
type StorageConfig struct {
	// Backend is "sqlite" or "file"
	Backend string `json:"backend" toml:"backend" validate:"storage_backend"`

	// DatabasePath of the sqlite database
	DatabasePath string `json:"database_path,omitempty" toml:"database_path,omitempty"`

	// CacheDir holds one file per key for the file backend
	CacheDir string `json:"cache_dir,omitempty" toml:"cache_dir,omitempty"`
}

// RemoteConfig configures the postgres mirror
type RemoteConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled"`
	DSN     string `json:"dsn,omitempty" toml:"dsn,omitempty" validate:"required_if=Enabled true"`
}

// AuthConfig configures the GoTrue-compatible identity provider
type AuthConfig struct {
	BaseURL     string `json:"base_url,omitempty" toml:"base_url,omitempty" validate:"omitempty,url"`
	AnonKey     string `json:"anon_key,omitempty" toml:"anon_key,omitempty"`
	SessionPath string `json:"session_path,omitempty" toml:"session_path,omitempty"`
}

// Enabled reports whether an identity provider is configured.
func (a AuthConfig) Enabled() bool {
	return a.BaseURL != ""
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty" toml:"level,omitempty" validate:"log_level"`

	// Format is the output format of the chat log file (text, json)
	Format string `json:"format,omitempty" toml:"format,omitempty" validate:"log_format"`
}

// ConfigPrecedence defines the order of configuration loading
type ConfigPrecedence struct {
	// SystemConfig path
	SystemConfig string

	// UserConfig path
	UserConfig string

	// ProjectConfig path
	ProjectConfig string

	// LocalConfig path
	LocalConfig string

	// EnvironmentPrefix for env var overrides
	EnvironmentPrefix string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	return e.Message
}

// ConfigSource indicates where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"
	SourceUser        ConfigSource = "user"
	SourceProject     ConfigSource = "project"
	SourceLocal       ConfigSource = "local"
	SourceEnvironment ConfigSource = "environment"
)

// Duration is a time.Duration written as "30s" in JSON and TOML files.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}
