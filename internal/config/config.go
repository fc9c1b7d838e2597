// Package config loads the bedrud CLI configuration.
//
// Sources, highest priority first:
//  1. the --config flag;
//  2. CONFIG_PATH;
//  3. ./bedrud.yaml;
//  4. environment only.
//
// BEDRUD_* environment variables always override values read from a file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rs/zerolog"

	"github.com/bedrud/bedrud-go"
)

// LocalFile is the config file picked up from the working directory.
const LocalFile = "bedrud.yaml"

// Durable tier kinds.
const (
	DurableFile  = "file"
	DurableRedis = "redis"
	DurableNone  = "none"
)

// RedisInMemory as the redis address starts an in-process redis server.
const RedisInMemory = "memory"

type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Media   MediaConfig   `yaml:"media"`
	Storage StorageConfig `yaml:"storage"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// BackendConfig addresses the Bedrud REST API.
type BackendConfig struct {
	API     string        `yaml:"api"     env:"BEDRUD_BACKEND_API"  env-required:"true"`
	Timeout time.Duration `yaml:"timeout" env:"BEDRUD_HTTP_TIMEOUT" env-default:"15s"`
}

type MediaConfig struct {
	URL string `yaml:"url" env:"BEDRUD_LIVEKIT_URL" env-default:"ws://127.0.0.1:7880"`
}

// StorageConfig selects the persistence tiers. The runtime directory plays the role of
// the ephemeral tier: it survives between commands but not a reboot.
type StorageConfig struct {
	Durable     string        `yaml:"durable"      env:"BEDRUD_STORAGE_DURABLE" env-default:"file"`
	Dir         string        `yaml:"dir"          env:"BEDRUD_STORAGE_DIR"`
	RuntimeDir  string        `yaml:"runtime_dir"  env:"BEDRUD_RUNTIME_DIR"`
	RedisAddr   string        `yaml:"redis_addr"   env:"BEDRUD_REDIS_ADDR"`
	RedisPrefix string        `yaml:"redis_prefix" env:"BEDRUD_REDIS_PREFIX"    env-default:"bedrud"`
	RedisTTL    time.Duration `yaml:"redis_ttl"    env:"BEDRUD_REDIS_TTL"`
}

type SessionConfig struct {
	RefreshTimeout time.Duration `yaml:"refresh_timeout" env:"BEDRUD_REFRESH_TIMEOUT" env-default:"10s"`
	RefreshSkew    time.Duration `yaml:"refresh_skew"    env:"BEDRUD_REFRESH_SKEW"`
	AtomicWrites   bool          `yaml:"atomic_writes"   env:"BEDRUD_ATOMIC_WRITES"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"BEDRUD_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"BEDRUD_LOG_FORMAT" env-default:"console"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"BEDRUD_METRICS_ADDR"`
}

// MustLoad panics when Load fails.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration from the first available source and validates it.
func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return &cfg, cfg.Validate()
	}

	if path != "" {
		return readFile(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}
	if _, err := os.Stat(LocalFile); err == nil {
		return readFile(LocalFile)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, %s or env vars: %w", LocalFile, err)
	}
	return &cfg, cfg.Validate()
}

// Validate checks values cleanenv cannot.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.API) == "" {
		return errors.New("backend.api is required")
	}
	switch c.Storage.Durable {
	case DurableFile, DurableNone:
	case DurableRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("storage.redis_addr is required for the redis durable tier")
		}
	default:
		return fmt.Errorf("unknown durable tier %q", c.Storage.Durable)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.Backend.Timeout < 0 || c.Session.RefreshTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	return nil
}

// StorageDir returns Storage.Dir or the per-user config directory.
func (c *Config) StorageDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve storage dir: %w", err)
	}
	return filepath.Join(base, "bedrud"), nil
}

// RuntimeDir returns Storage.RuntimeDir, $XDG_RUNTIME_DIR/bedrud, or a per-user
// directory under the system temp dir.
func (c *Config) RuntimeDir() string {
	if c.Storage.RuntimeDir != "" {
		return c.Storage.RuntimeDir
	}
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "bedrud")
	}
	return filepath.Join(os.TempDir(), "bedrud-"+strconv.Itoa(os.Getuid()))
}

// ClientConfig maps the file/env configuration onto the library configuration.
func (c *Config) ClientConfig(userAgent string) bedrud.Config {
	out := bedrud.DefaultConfig()
	out.Backend.BaseURL = c.Backend.API
	if c.Backend.Timeout > 0 {
		out.Backend.Timeout = c.Backend.Timeout
	}
	if userAgent != "" {
		out.Backend.UserAgent = userAgent
	}
	if c.Media.URL != "" {
		out.Media.URL = c.Media.URL
	}
	out.Session.RefreshTimeout = c.Session.RefreshTimeout
	out.Session.RefreshSkew = c.Session.RefreshSkew
	out.Session.AtomicWrites = c.Session.AtomicWrites
	if c.Storage.RedisPrefix != "" {
		out.Session.RedisPrefix = c.Storage.RedisPrefix
	}
	out.Session.RedisTTL = c.Storage.RedisTTL
	out.Metrics.EnableLatencyHistograms = c.Metrics.Addr != ""
	return out
}
