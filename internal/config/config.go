// Package config loads huddle settings from YAML files and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Feed drivers.
const (
	FeedJournal = "journal"
	FeedNATS    = "nats"
	FeedMemory  = "memory"
)

// Presence drivers.
const (
	PresenceMemory = "memory"
	PresenceNATS   = "nats"
)

// Config holds all settings.
type Config struct {
	User          string         `yaml:"user,omitempty" json:"user,omitempty"`
	PageSize      int            `yaml:"page_size" json:"page_size"`
	TypingTimeout time.Duration  `yaml:"typing_timeout" json:"typing_timeout"`
	Feed          FeedConfig     `yaml:"feed" json:"feed"`
	NATS          NATSConfig     `yaml:"nats" json:"nats"`
	Presence      PresenceConfig `yaml:"presence" json:"presence"`
	Metrics       MetricsConfig  `yaml:"metrics" json:"metrics"`
	Log           LogConfig      `yaml:"log" json:"log"`
}

// FeedConfig selects the change feed driver.
type FeedConfig struct {
	Driver        string `yaml:"driver" json:"driver"`
	SubjectPrefix string `yaml:"subject_prefix" json:"subject_prefix"`
}

// NATSConfig configures the NATS connection shared by feed and presence.
type NATSConfig struct {
	URL  string `yaml:"url" json:"url"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// PresenceConfig selects the presence driver and its timing.
type PresenceConfig struct {
	Driver    string        `yaml:"driver" json:"driver"`
	Heartbeat time.Duration `yaml:"heartbeat" json:"heartbeat"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Debug bool `yaml:"debug,omitempty" json:"debug,omitempty"`
	JSON  bool `yaml:"json,omitempty" json:"json,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		PageSize:      50,
		TypingTimeout: 3 * time.Second,
		Feed: FeedConfig{
			Driver:        FeedJournal,
			SubjectPrefix: "huddle",
		},
		NATS: NATSConfig{
			URL:  "nats://127.0.0.1:4222",
			Name: "huddle",
		},
		Presence: PresenceConfig{
			Driver:    PresenceMemory,
			Heartbeat: 5 * time.Second,
			TTL:       15 * time.Second,
		},
	}
}

// LoadFromFile reads a YAML config file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &config, nil
}

// SaveToFile writes the config as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Merge overlays the non-zero fields of other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.User != "" {
		c.User = other.User
	}
	if other.PageSize != 0 {
		c.PageSize = other.PageSize
	}
	if other.TypingTimeout != 0 {
		c.TypingTimeout = other.TypingTimeout
	}
	if other.Feed.Driver != "" {
		c.Feed.Driver = other.Feed.Driver
	}
	if other.Feed.SubjectPrefix != "" {
		c.Feed.SubjectPrefix = other.Feed.SubjectPrefix
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Name != "" {
		c.NATS.Name = other.NATS.Name
	}
	if other.Presence.Driver != "" {
		c.Presence.Driver = other.Presence.Driver
	}
	if other.Presence.Heartbeat != 0 {
		c.Presence.Heartbeat = other.Presence.Heartbeat
	}
	if other.Presence.TTL != 0 {
		c.Presence.TTL = other.Presence.TTL
	}
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
	if other.Log.Debug {
		c.Log.Debug = true
	}
	if other.Log.JSON {
		c.Log.JSON = true
	}
}

// Validate checks the config for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.TypingTimeout <= 0 {
		return fmt.Errorf("typing_timeout must be positive, got %s", c.TypingTimeout)
	}
	switch c.Feed.Driver {
	case FeedJournal, FeedNATS, FeedMemory:
	default:
		return fmt.Errorf("unknown feed driver: %q", c.Feed.Driver)
	}
	switch c.Presence.Driver {
	case PresenceMemory, PresenceNATS:
	default:
		return fmt.Errorf("unknown presence driver: %q", c.Presence.Driver)
	}
	if c.Presence.Driver == PresenceNATS && c.Presence.TTL <= c.Presence.Heartbeat {
		return fmt.Errorf("presence ttl (%s) must exceed heartbeat (%s)", c.Presence.TTL, c.Presence.Heartbeat)
	}
	if (c.Feed.Driver == FeedNATS || c.Presence.Driver == PresenceNATS) && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required for the nats driver")
	}
	return nil
}
