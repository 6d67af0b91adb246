package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	// ProjectConfigFile is the project-level config inside the state directory.
	ProjectConfigFile = "config.yaml"
	// EnvFile holds per-project environment overrides.
	EnvFile = ".env"
	// UserConfigDir is the directory for user-level config.
	UserConfigDir = ".config/huddle"
	// UserConfigFile is the name of the user-level config file.
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger  *zap.Logger
	homeDir string
	lookup  func(string) (string, bool)
}

// NewLoader creates a configuration loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	home, _ := os.UserHomeDir()
	return &Loader{logger: logger, homeDir: home, lookup: os.LookupEnv}
}

// Load loads configuration with layered precedence:
// 1. Defaults
// 2. User config (~/.config/huddle/config.yaml)
// 3. Project config (<stateDir>/config.yaml)
// 4. <stateDir>/.env, then process environment (HUDDLE_*)
//
// stateDir may be empty when no project has been discovered.
func (l *Loader) Load(stateDir string) (*Config, error) {
	config := DefaultConfig()

	if path := l.userConfigPath(); path != "" {
		if userConfig, err := LoadFromFile(path); err == nil {
			l.logger.Debug("loaded user config", zap.String("path", path))
			config.Merge(userConfig)
		} else if !os.IsNotExist(err) {
			l.logger.Warn("failed to load user config", zap.String("path", path), zap.Error(err))
		}
	}

	env := map[string]string{}
	if stateDir != "" {
		path := filepath.Join(stateDir, ProjectConfigFile)
		if projectConfig, err := LoadFromFile(path); err == nil {
			l.logger.Debug("loaded project config", zap.String("path", path))
			config.Merge(projectConfig)
		} else if !os.IsNotExist(err) {
			l.logger.Warn("failed to load project config", zap.String("path", path), zap.Error(err))
		}

		envPath := filepath.Join(stateDir, EnvFile)
		if values, err := godotenv.Read(envPath); err == nil {
			l.logger.Debug("loaded env file", zap.String("path", envPath))
			env = values
		} else if !os.IsNotExist(err) {
			l.logger.Warn("failed to read env file", zap.String("path", envPath), zap.Error(err))
		}
	}

	l.applyEnv(config, env)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overlays HUDDLE_* values. Process environment wins over the .env file.
func (l *Loader) applyEnv(config *Config, file map[string]string) {
	get := func(key string) (string, bool) {
		if value, ok := l.lookup(key); ok && value != "" {
			return value, true
		}
		value, ok := file[key]
		return value, ok && value != ""
	}

	if value, ok := get("HUDDLE_USER"); ok {
		config.User = value
	}
	if value, ok := get("HUDDLE_FEED_DRIVER"); ok {
		config.Feed.Driver = value
	}
	if value, ok := get("HUDDLE_PRESENCE_DRIVER"); ok {
		config.Presence.Driver = value
	}
	if value, ok := get("HUDDLE_NATS_URL"); ok {
		config.NATS.URL = value
	}
	if value, ok := get("HUDDLE_METRICS_ADDR"); ok {
		config.Metrics.Addr = value
	}
	if value, ok := get("HUDDLE_PAGE_SIZE"); ok {
		if n, err := strconv.Atoi(value); err == nil {
			config.PageSize = n
		} else {
			l.logger.Warn("ignoring invalid HUDDLE_PAGE_SIZE", zap.String("value", value))
		}
	}
	if value, ok := get("HUDDLE_TYPING_TIMEOUT"); ok {
		if d, err := time.ParseDuration(value); err == nil {
			config.TypingTimeout = d
		} else {
			l.logger.Warn("ignoring invalid HUDDLE_TYPING_TIMEOUT", zap.String("value", value))
		}
	}
	if value, ok := get("HUDDLE_DEBUG"); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			config.Log.Debug = b
		}
	}
}

// EnsureProjectConfig writes the default project config if none exists.
func EnsureProjectConfig(stateDir string) (string, error) {
	path := filepath.Join(stateDir, ProjectConfigFile)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return path, DefaultConfig().SaveToFile(path)
}

func (l *Loader) userConfigPath() string {
	if l.homeDir == "" {
		return ""
	}
	return filepath.Join(l.homeDir, UserConfigDir, UserConfigFile)
}
