package config

import (
	"time"

	"github.com/beymax11/chatstudio/src/models"
)

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// DefaultConfig returns a default configuration with sensible defaults
func DefaultConfig() *Config {
	paths := GetDefaultStoragePaths()
	return &Config{
		Version: "1.0",
		API: APIConfig{
			BaseURL:      "https://api.groq.com/openai/v1",
			APIKeyEnvVar: "OPENROUTER_API_KEY",
			Timeout:      Duration(60 * time.Second),
			MaxRetries:   3,
		},
		Chat: ChatConfig{
			DefaultModel: models.DefaultID,
		},
		Translation: TranslationConfig{
			Enabled:           true,
			BaseURL:           "https://api.mymemory.translated.net",
			RequestsPerMinute: 30,
		},
		Storage: StorageConfig{
			Backend:      BackendSQLite,
			DatabasePath: paths.DatabasePath,
			CacheDir:     paths.CachePath,
		},
		Auth: AuthConfig{
			SessionPath: paths.SessionPath,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "json",
		},
	}
}
