// Package config handles configuration loading from environment variables and files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the control panel
type Config struct {
	// Collection
	Workers        int                      `yaml:"workers"`
	DefaultTimeout time.Duration            `yaml:"default_timeout"`
	ProbeTimeouts  map[string]time.Duration `yaml:"probe_timeouts"`

	// Host probes
	CommandTimeout time.Duration `yaml:"command_timeout"`
	NetworkTimeout time.Duration `yaml:"network_timeout"`
	PublicIPURL    string        `yaml:"public_ip_url"`
	HostRoot       string        `yaml:"host_root"`

	// Refresh cadence of the live usage group
	LiveInterval time.Duration `yaml:"live_interval"`

	// Optional Redis mirror of delivered snapshots
	MirrorRedisURL string        `yaml:"mirror_redis_url"`
	MirrorPrefix   string        `yaml:"mirror_prefix"`
	MirrorTTL      time.Duration `yaml:"mirror_ttl"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Workers:        4,
		DefaultTimeout: 2 * time.Second,
		ProbeTimeouts:  map[string]time.Duration{},
		CommandTimeout: 1 * time.Second,
		NetworkTimeout: 3 * time.Second,
		PublicIPURL:    "https://api.ipify.org?format=json",
		HostRoot:       "/",
		LiveInterval:   2 * time.Second,
		MirrorPrefix:   "securonis:panel",
		MirrorTTL:      30 * time.Second,
		LogLevel:       "info",
	}
}

// Load creates a Config from environment variables
func Load() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML file over the defaults, then applies environment overrides.
// A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if cfg.ProbeTimeouts == nil {
			cfg.ProbeTimeouts = map[string]time.Duration{}
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SECURONIS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SECURONIS_DEFAULT_TIMEOUT", &c.DefaultTimeout},
		{"SECURONIS_COMMAND_TIMEOUT", &c.CommandTimeout},
		{"SECURONIS_NETWORK_TIMEOUT", &c.NetworkTimeout},
		{"SECURONIS_LIVE_INTERVAL", &c.LiveInterval},
		{"SECURONIS_MIRROR_TTL", &c.MirrorTTL},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			if parsed, ok := parseDuration(v); ok {
				*d.dst = parsed
			}
		}
	}

	if v := os.Getenv("SECURONIS_PUBLIC_IP_URL"); v != "" {
		c.PublicIPURL = v
	}
	if v := os.Getenv("SECURONIS_HOST_ROOT"); v != "" {
		c.HostRoot = v
	}

	if v := os.Getenv("SECURONIS_MIRROR_REDIS_URL"); v != "" {
		c.MirrorRedisURL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" && c.MirrorRedisURL == "" {
		// Common convention
		c.MirrorRedisURL = v
	}
	if v := os.Getenv("SECURONIS_MIRROR_PREFIX"); v != "" {
		c.MirrorPrefix = v
	}

	if v := os.Getenv("SECURONIS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Per-probe timeouts (comma-separated: probe=duration,probe=duration)
	// Example: SECURONIS_PROBE_TIMEOUTS=public_ip=5s,gpu=3
	if v := os.Getenv("SECURONIS_PROBE_TIMEOUTS"); v != "" {
		if c.ProbeTimeouts == nil {
			c.ProbeTimeouts = map[string]time.Duration{}
		}
		for name, d := range parseTimeouts(v) {
			c.ProbeTimeouts[name] = d
		}
	}
}

// parseDuration accepts Go durations ("1500ms") or whole seconds ("2")
func parseDuration(s string) (time.Duration, bool) {
	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, true
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

// parseTimeouts parses "name=duration" pairs; malformed entries are skipped
func parseTimeouts(s string) map[string]time.Duration {
	out := make(map[string]time.Duration)
	for _, part := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		d, ok := parseDuration(strings.TrimSpace(value))
		if name == "" || !ok {
			continue
		}
		out[name] = d
	}
	return out
}

// Level returns the slog level named by LogLevel
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, &ConfigError{Field: "LogLevel", Message: fmt.Sprintf("unknown level %q", c.LogLevel)}
	}
	return level, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return &ConfigError{Field: "Workers", Message: "must be at least 1 (set SECURONIS_WORKERS)"}
	}

	positive := []struct {
		field string
		value time.Duration
	}{
		{"DefaultTimeout", c.DefaultTimeout},
		{"CommandTimeout", c.CommandTimeout},
		{"NetworkTimeout", c.NetworkTimeout},
		{"LiveInterval", c.LiveInterval},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return &ConfigError{Field: p.field, Message: "must be positive"}
		}
	}
	for name, d := range c.ProbeTimeouts {
		if d <= 0 {
			return &ConfigError{Field: "ProbeTimeouts", Message: fmt.Sprintf("timeout for %s must be positive", name)}
		}
	}

	if c.HostRoot == "" {
		return &ConfigError{Field: "HostRoot", Message: "host root is required"}
	}
	if u, err := url.Parse(c.PublicIPURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return &ConfigError{Field: "PublicIPURL", Message: "must be an http(s) URL"}
	}

	if c.MirrorRedisURL != "" {
		u, err := url.Parse(c.MirrorRedisURL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return &ConfigError{Field: "MirrorRedisURL", Message: "must be a redis:// or rediss:// URL"}
		}
		if c.MirrorTTL < 0 {
			return &ConfigError{Field: "MirrorTTL", Message: "must not be negative"}
		}
	}

	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + ": " + e.Message
}
