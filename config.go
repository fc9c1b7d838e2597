package bedrud

import (
	"errors"
	"strings"
	"time"

	"github.com/bedrud/bedrud-go/media"
	"github.com/bedrud/bedrud-go/session"
)

// Config is the client configuration. Start from [DefaultConfig] and override fields.
type Config struct {
	Backend BackendConfig
	Media   MediaConfig
	Session SessionConfig
	Events  EventsConfig
	Metrics MetricsConfig
}

// BackendConfig addresses the Bedrud REST API.
type BackendConfig struct {
	// BaseURL is required, e.g. "https://bedrud.example/api".
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// MediaConfig addresses the real-time media server.
type MediaConfig struct {
	// URL defaults to media.DefaultURL.
	URL string
}

// SessionConfig controls persistence and refresh.
type SessionConfig struct {
	TokenKey   string
	ProfileKey string
	// RefreshTimeout bounds one refresh call. The refresh is not cancelled when the
	// caller that started it gives up.
	RefreshTimeout time.Duration
	// RefreshSkew treats tokens expiring within the skew as expired. Zero keeps the exact
	// exp < now rule.
	RefreshSkew time.Duration
	// AtomicWrites clears the freshly written tokens when the profile write fails during
	// login or register, so the two stores never disagree.
	AtomicWrites bool
	// RedisPrefix and RedisTTL apply when the durable tier is Redis.
	RedisPrefix string
	RedisTTL    time.Duration
}

// EventsConfig controls lifecycle event dispatch.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used by [New]. BaseURL is left empty.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			Timeout:   15 * time.Second,
			UserAgent: "bedrud-go",
		},
		Media: MediaConfig{
			URL: media.DefaultURL,
		},
		Session: SessionConfig{
			TokenKey:       session.DefaultTokenKey,
			ProfileKey:     session.DefaultProfileKey,
			RefreshTimeout: 10 * time.Second,
			RedisPrefix:    session.DefaultRedisPrefix,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate checks cfg for values the client cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("Backend.BaseURL is required")
	}
	if c.Backend.Timeout < 0 {
		return errors.New("Backend.Timeout must be >= 0")
	}
	if c.Session.TokenKey == "" || c.Session.ProfileKey == "" {
		return errors.New("Session.TokenKey and Session.ProfileKey are required")
	}
	if c.Session.TokenKey == c.Session.ProfileKey {
		return errors.New("Session.TokenKey and Session.ProfileKey must differ")
	}
	if c.Session.RefreshTimeout <= 0 {
		return errors.New("Session.RefreshTimeout must be > 0")
	}
	if c.Session.RefreshSkew < 0 || c.Session.RefreshSkew > 5*time.Minute {
		return errors.New("Session.RefreshSkew must be between 0 and 5m")
	}
	if c.Session.RedisTTL < 0 {
		return errors.New("Session.RedisTTL must be >= 0")
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events.BufferSize must be > 0 when events are enabled")
	}
	return nil
}
