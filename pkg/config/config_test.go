package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envVars = []string{
	"SECURONIS_WORKERS",
	"SECURONIS_DEFAULT_TIMEOUT",
	"SECURONIS_COMMAND_TIMEOUT",
	"SECURONIS_NETWORK_TIMEOUT",
	"SECURONIS_LIVE_INTERVAL",
	"SECURONIS_MIRROR_TTL",
	"SECURONIS_PUBLIC_IP_URL",
	"SECURONIS_HOST_ROOT",
	"SECURONIS_MIRROR_REDIS_URL",
	"SECURONIS_MIRROR_PREFIX",
	"SECURONIS_LOG_LEVEL",
	"SECURONIS_PROBE_TIMEOUTS",
	"REDIS_URL",
}

// clearEnv blanks every variable Load reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		cfg := Load()

		if cfg.Workers != 4 {
			t.Errorf("Expected 4 workers, got %d", cfg.Workers)
		}
		if cfg.DefaultTimeout != 2*time.Second {
			t.Errorf("Expected default timeout 2s, got %v", cfg.DefaultTimeout)
		}
		if cfg.LiveInterval != 2*time.Second {
			t.Errorf("Expected live interval 2s, got %v", cfg.LiveInterval)
		}
		if cfg.HostRoot != "/" {
			t.Errorf("Expected host root /, got %s", cfg.HostRoot)
		}
		if cfg.MirrorRedisURL != "" {
			t.Errorf("Expected mirror disabled, got %s", cfg.MirrorRedisURL)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Expected defaults to validate, got %v", err)
		}
	})

	t.Run("from environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SECURONIS_WORKERS", "8")
		t.Setenv("SECURONIS_DEFAULT_TIMEOUT", "1500ms")
		t.Setenv("SECURONIS_LIVE_INTERVAL", "5")
		t.Setenv("SECURONIS_HOST_ROOT", "/host")
		t.Setenv("SECURONIS_MIRROR_REDIS_URL", "redis://cache:6379/2")
		t.Setenv("SECURONIS_LOG_LEVEL", "debug")
		t.Setenv("SECURONIS_PROBE_TIMEOUTS", "public_ip=5s, gpu=3")

		cfg := Load()

		if cfg.Workers != 8 {
			t.Errorf("Expected 8 workers, got %d", cfg.Workers)
		}
		if cfg.DefaultTimeout != 1500*time.Millisecond {
			t.Errorf("Expected default timeout 1.5s, got %v", cfg.DefaultTimeout)
		}
		if cfg.LiveInterval != 5*time.Second {
			t.Errorf("Expected live interval 5s, got %v", cfg.LiveInterval)
		}
		if cfg.HostRoot != "/host" {
			t.Errorf("Expected host root /host, got %s", cfg.HostRoot)
		}
		if cfg.MirrorRedisURL != "redis://cache:6379/2" {
			t.Errorf("Expected mirror URL, got %s", cfg.MirrorRedisURL)
		}
		if cfg.ProbeTimeouts["public_ip"] != 5*time.Second || cfg.ProbeTimeouts["gpu"] != 3*time.Second {
			t.Errorf("Expected probe timeouts, got %v", cfg.ProbeTimeouts)
		}
		if level, err := cfg.Level(); err != nil || level != slog.LevelDebug {
			t.Errorf("Expected debug level, got %v (%v)", level, err)
		}
	})

	t.Run("redis url convention", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("REDIS_URL", "redis://localhost:6379")

		if cfg := Load(); cfg.MirrorRedisURL != "redis://localhost:6379" {
			t.Errorf("Expected REDIS_URL fallback, got %s", cfg.MirrorRedisURL)
		}
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SECURONIS_WORKERS", "many")
		t.Setenv("SECURONIS_COMMAND_TIMEOUT", "soon")

		cfg := Load()
		if cfg.Workers != 4 || cfg.CommandTimeout != time.Second {
			t.Errorf("Expected defaults to survive, got workers=%d command=%v", cfg.Workers, cfg.CommandTimeout)
		}
	})
}

func TestLoadFile(t *testing.T) {
	t.Run("yaml then environment", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "panel.yaml")
		content := `workers: 2
default_timeout: 3s
live_interval: 1s
probe_timeouts:
  top_processes: 4s
mirror_redis_url: redis://localhost:6379
log_level: warn
`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("SECURONIS_WORKERS", "6")

		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() err=%v", err)
		}
		if cfg.Workers != 6 {
			t.Errorf("Expected env to override workers, got %d", cfg.Workers)
		}
		if cfg.DefaultTimeout != 3*time.Second {
			t.Errorf("Expected default timeout 3s, got %v", cfg.DefaultTimeout)
		}
		if cfg.ProbeTimeouts["top_processes"] != 4*time.Second {
			t.Errorf("Expected top_processes override, got %v", cfg.ProbeTimeouts)
		}
		if cfg.CommandTimeout != time.Second {
			t.Errorf("Expected unset fields to keep defaults, got %v", cfg.CommandTimeout)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() err=%v", err)
		}
	})

	t.Run("missing file gives defaults", func(t *testing.T) {
		clearEnv(t)
		cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatalf("LoadFile() err=%v", err)
		}
		if cfg.Workers != 4 {
			t.Errorf("Expected default workers, got %d", cfg.Workers)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("workers: [1, 2"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFile(path); err == nil {
			t.Error("Expected parse error")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }, "Workers"},
		{"zero timeout", func(c *Config) { c.DefaultTimeout = 0 }, "DefaultTimeout"},
		{"zero live interval", func(c *Config) { c.LiveInterval = 0 }, "LiveInterval"},
		{"negative probe timeout", func(c *Config) { c.ProbeTimeouts["gpu"] = -time.Second }, "ProbeTimeouts"},
		{"empty host root", func(c *Config) { c.HostRoot = "" }, "HostRoot"},
		{"bad public ip url", func(c *Config) { c.PublicIPURL = "ftp://example.com" }, "PublicIPURL"},
		{"bad mirror url", func(c *Config) { c.MirrorRedisURL = "http://localhost:6379" }, "MirrorRedisURL"},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			var cfgErr *ConfigError
			if err := cfg.Validate(); !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, cfgErr.Field)
			}
		})
	}
}

func TestParseTimeouts(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]time.Duration
	}{
		{"single", "gpu=3s", map[string]time.Duration{"gpu": 3 * time.Second}},
		{"seconds", "public_ip=5", map[string]time.Duration{"public_ip": 5 * time.Second}},
		{"multiple", "gpu=3s,tor=500ms", map[string]time.Duration{"gpu": 3 * time.Second, "tor": 500 * time.Millisecond}},
		{"malformed skipped", "gpu,tor=never,=1s,dns=1s", map[string]time.Duration{"dns": time.Second}},
		{"empty string", "", map[string]time.Duration{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseTimeouts(tt.input)

			if len(result) != len(tt.expected) {
				t.Fatalf("Expected %d entries, got %v", len(tt.expected), result)
			}
			for name, d := range tt.expected {
				if result[name] != d {
					t.Errorf("%s: expected %v, got %v", name, d, result[name])
				}
			}
		})
	}
}
