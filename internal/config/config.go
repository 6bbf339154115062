// Package config loads application configuration from a YAML file plus
// TINYLAND_-prefixed environment variables, with validated defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level application configuration.
type Config struct {
	DataDir  string         `koanf:"data_dir"`
	IsDev    bool           `koanf:"is_dev"`
	Database DatabaseConfig `koanf:"database"`
	Flush    FlushConfig    `koanf:"flush"`
	Log      LogConfig      `koanf:"log"`
}

// DatabaseConfig describes the optional record store the batch converter
// reads from. An empty DSN leaves conversions unavailable.
type DatabaseConfig struct {
	Driver       string `koanf:"driver"` // postgres | sqlite3
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type FlushConfig struct {
	// Interval overrides the periodic flush cadence when set, e.g. "30s".
	Interval string `koanf:"interval"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug | info | warn | error
}

// Enabled reports whether a record store is configured.
func (d DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(d.DSN) != ""
}

// EffectiveFlushInterval resolves the periodic flush cadence: the explicit
// override when present, otherwise 60s in dev mode and 300s in production.
func (c *Config) EffectiveFlushInterval() (time.Duration, error) {
	if c.Flush.Interval != "" {
		d, err := time.ParseDuration(c.Flush.Interval)
		if err != nil {
			return 0, fmt.Errorf("invalid flush.interval %q: %w", c.Flush.Interval, err)
		}
		if d <= 0 {
			return 0, fmt.Errorf("flush.interval must be > 0")
		}
		return d, nil
	}
	if c.IsDev {
		return 60 * time.Second, nil
	}
	return 300 * time.Second, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite3" {
		return fmt.Errorf("unsupported database.driver %q (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.Enabled() {
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
	}

	if _, err := c.EffectiveFlushInterval(); err != nil {
		return err
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	return nil
}

// Load parses config from defaults, an optional file and the environment,
// then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"data_dir":                "./data/analytics",
		"is_dev":                  false,
		"database.driver":         "postgres",
		"database.dsn":            "",
		"database.max_open_conns": 10,
		"database.max_idle_conns": 5,
		"database.auto_migrate":   true,
		"flush.interval":          "",
		"log.level":               "info",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("TINYLAND_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TINYLAND_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LogLevel maps the configured level onto a slog level string consumers can
// parse with slog.Level.UnmarshalText.
func (c *Config) LogLevel() string {
	return strings.ToUpper(c.Log.Level)
}
