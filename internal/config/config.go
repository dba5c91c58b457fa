package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is stripped from environment variables, so READINGS_HTTP_ADDR
	// sets http_addr.
	EnvPrefix = "READINGS_"

	// ConfigPathEnvVar overrides the YAML config file location.
	ConfigPathEnvVar = "READINGS_CONFIG_PATH"

	defaultConfigPath = "readings.yaml"
)

type Config struct {
	HTTPAddr string `koanf:"http_addr"`
	GRPCAddr string `koanf:"grpc_addr"`

	Env      string `koanf:"env"`       // "dev" | "prod"
	LogLevel string `koanf:"log_level"` // trace|debug|info|warn|error

	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// Ingest journal
	JournalDriver        string `koanf:"journal_driver"`         // "memory" | "sqlite"
	DBPath               string `koanf:"db_path"`                // e.g. "./data/readings.db"
	JournalRetentionDays int    `koanf:"journal_retention_days"` // 0 = keep forever
	PruneIntervalHours   int    `koanf:"prune_interval_hours"`   // how often the pruner runs (default 6)

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

func Default() Config {
	return Config{
		HTTPAddr:             ":3000",
		GRPCAddr:             ":9090",
		Env:                  "dev",
		LogLevel:             "info",
		MaxBodyBytes:         1 << 20,
		JournalDriver:        "memory",
		DBPath:               "./data/readings.db",
		JournalRetentionDays: 30,
		PruneIntervalHours:   6,
		ShutdownTimeout:      5 * time.Second,
	}
}

// Load layers defaults, an optional YAML file and READINGS_* environment
// variables, in that order.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max_body_bytes must be positive"))
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.JournalDriver == "sqlite" && strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("db_path is required for the sqlite journal"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// normalize applies the fail-soft rules: unknown values fall back to defaults.
func (c *Config) normalize() {
	def := Default()

	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env != "dev" && c.Env != "prod" {
		c.Env = def.Env
	}

	c.JournalDriver = strings.ToLower(strings.TrimSpace(c.JournalDriver))
	if c.JournalDriver != "memory" && c.JournalDriver != "sqlite" {
		c.JournalDriver = def.JournalDriver
	}

	if c.JournalRetentionDays < 0 {
		c.JournalRetentionDays = def.JournalRetentionDays
	}
	if c.PruneIntervalHours <= 0 {
		c.PruneIntervalHours = def.PruneIntervalHours
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
}

// LogFormat picks console output for dev and JSON for prod.
func (c Config) LogFormat() string {
	if c.Env == "prod" {
		return "json"
	}
	return "console"
}

func findConfigFile() string {
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// envKey maps READINGS_HTTP_ADDR to http_addr.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if key == "config_path" {
		return ""
	}
	return key
}
