// Package config loads the tracker's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/checkpoint-tracker/internal/ingest"
	"github.com/rcliao/checkpoint-tracker/internal/scoring"
)

// Environment overrides, applied after the file.
const (
	EnvDB      = "CHECKPOINTS_DB"
	EnvBackend = "CHECKPOINTS_BACKEND"
	EnvAddr    = "CHECKPOINTS_ADDR"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config is the full configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Retry   RetryConfig   `yaml:"retry"`
	Scoring ScoringConfig `yaml:"scoring"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`

	// IngestPerMinute and IngestBurst size the per-client token bucket in
	// front of the ingest endpoint. Zero disables limiting.
	IngestPerMinute float64 `yaml:"ingest_per_minute"`
	IngestBurst     int     `yaml:"ingest_burst"`
}

type StoreConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type RetryConfig struct {
	MaxTries        uint          `yaml:"max_tries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxElapsed      time.Duration `yaml:"max_elapsed"`
}

type ScoringConfig struct {
	UsageNormalization string `yaml:"usage_normalization"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	retry := ingest.DefaultRetryPolicy()
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			IngestPerMinute:   60,
			IngestBurst:       10,
		},
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(home, ".checkpoint-tracker", "checkpoints.db"),
		},
		Retry: RetryConfig{
			MaxTries:        retry.MaxTries,
			InitialInterval: retry.InitialInterval,
			MaxInterval:     retry.MaxInterval,
			MaxElapsed:      retry.MaxElapsed,
		},
		Scoring: ScoringConfig{UsageNormalization: string(scoring.NormalizeMaxUsage)},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDB); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendSQLite, BackendBadger:
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if c.Store.Path == "" && !c.Store.InMemory {
		errs = append(errs, errors.New("store.path: required unless store.in_memory is set"))
	}
	if c.Store.InMemory && c.Store.Backend != BackendBadger {
		errs = append(errs, errors.New("store.in_memory: only supported by the badger backend"))
	}
	if c.Retry.MaxTries == 0 {
		errs = append(errs, errors.New("retry.max_tries: must be positive"))
	}
	switch scoring.UsageNormalization(c.Scoring.UsageNormalization) {
	case scoring.NormalizeMaxUsage, scoring.NormalizeCatalogCount:
	default:
		errs = append(errs, fmt.Errorf("scoring.usage_normalization: unknown mode %q", c.Scoring.UsageNormalization))
	}
	if c.Server.IngestPerMinute < 0 || c.Server.IngestBurst < 0 {
		errs = append(errs, errors.New("server: ingest rate limit must not be negative"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// RetryPolicy converts the retry section for the ingest service.
func (c Config) RetryPolicy() ingest.RetryPolicy {
	return ingest.RetryPolicy{
		MaxTries:        c.Retry.MaxTries,
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
		MaxElapsed:      c.Retry.MaxElapsed,
	}
}

// Normalization returns the configured usage normalization mode.
func (c Config) Normalization() scoring.UsageNormalization {
	return scoring.UsageNormalization(c.Scoring.UsageNormalization)
}

// NewLogger builds the root logger from the log section.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", s)
}
