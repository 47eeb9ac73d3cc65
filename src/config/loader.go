package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
)

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	precedence ConfigPrecedence
	validator  *Validator
	fs         afero.Fs
	getenv     func(string) string
}

// NewLoader creates a new configuration loader reading from the OS filesystem
func NewLoader(precedence ConfigPrecedence) *Loader {
	return NewLoaderFs(afero.NewOsFs(), precedence)
}

// NewLoaderFs creates a loader over fsys
func NewLoaderFs(fsys afero.Fs, precedence ConfigPrecedence) *Loader {
	return &Loader{
		precedence: precedence,
		validator:  NewValidator(),
		fs:         fsys,
		getenv:     os.Getenv,
	}
}

// Load loads configuration from all sources and merges them
func (l *Loader) Load() (*Config, error) {
	// Start with default configuration
	config := DefaultConfig()

	sources := []struct {
		path   string
		source ConfigSource
	}{
		{l.precedence.SystemConfig, SourceSystem},
		{l.precedence.UserConfig, SourceUser},
		{l.precedence.ProjectConfig, SourceProject},
		{l.precedence.LocalConfig, SourceLocal},
	}

	// Each file is decoded over the previous result, so only the keys it sets win.
	for _, src := range sources {
		if src.path == "" {
			continue
		}
		if err := l.decodeFile(src.path, config); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s config from %s: %w", src.source, src.path, err)
		}
	}

	if l.precedence.EnvironmentPrefix != "" {
		l.applyEnvironmentOverrides(config)
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFile loads a single configuration file on top of zero values
func (l *Loader) loadFile(path string) (*Config, error) {
	var config Config
	if err := l.decodeFile(path, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (l *Loader) decodeFile(path string, config *Config) error {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return err
	}

	if isTOML(path) {
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(config); err != nil {
			return fmt.Errorf("failed to parse TOML: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// SaveFile saves configuration to a file, in TOML when the path ends in .toml
func (l *Loader) SaveFile(config *Config, path string) error {
	// Validate before saving
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := l.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(config); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = json.MarshalIndent(config, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	// The file may carry API keys.
	if err := afero.WriteFile(l.fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides applies environment variable overrides to config
func (l *Loader) applyEnvironmentOverrides(config *Config) {
	prefix := l.precedence.EnvironmentPrefix

	if apiKey := l.getenv(prefix + "_API_KEY"); apiKey != "" {
		config.API.APIKey = apiKey
	}
	// Fall back to the configured key variable
	if config.API.APIKey == "" && config.API.APIKeyEnvVar != "" {
		config.API.APIKey = l.getenv(config.API.APIKeyEnvVar)
	}

	if baseURL := l.getenv(prefix + "_BASE_URL"); baseURL != "" {
		config.API.BaseURL = baseURL
	}

	if model := l.getenv(prefix + "_MODEL"); model != "" {
		config.Chat.DefaultModel = model
	}

	if dsn := l.getenv(prefix + "_REMOTE_DSN"); dsn != "" {
		config.Remote.DSN = dsn
		config.Remote.Enabled = true
	}

	if level := l.getenv(prefix + "_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// configIn returns dir/config.toml when it exists, else dir/config.json
func configIn(fsys afero.Fs, dir string) string {
	tomlPath := filepath.Join(dir, "config.toml")
	if ok, _ := afero.Exists(fsys, tomlPath); ok {
		return tomlPath
	}
	return filepath.Join(dir, "config.json")
}

// GetConfigPaths returns the configuration file paths to check
func GetConfigPaths() ConfigPrecedence {
	fsys := afero.NewOsFs()

	// System config path varies by OS
	systemDir := filepath.Join("/etc", appName)
	if runtime.GOOS == "windows" {
		systemDir = filepath.Join(os.Getenv("PROGRAMDATA"), appName)
	}

	projectDir := "." + appName
	return ConfigPrecedence{
		SystemConfig:      configIn(fsys, systemDir),
		UserConfig:        configIn(fsys, GetUserConfigDir()),
		ProjectConfig:     configIn(fsys, projectDir),
		LocalConfig:       filepath.Join(projectDir, "config.local.json"),
		EnvironmentPrefix: "CHATSTUDIO",
	}
}

// FindConfigFile searches for a configuration file in standard locations
func FindConfigFile() (string, error) {
	paths := GetConfigPaths()

	// Check in order of precedence (reversed for finding)
	checkPaths := []string{
		paths.LocalConfig,
		paths.ProjectConfig,
		paths.UserConfig,
		paths.SystemConfig,
	}

	for _, path := range checkPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found")
}
