package bedrud

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bedrud/bedrud-go/api"
	"github.com/bedrud/bedrud-go/gateway"
	"github.com/bedrud/bedrud-go/media"
	"github.com/bedrud/bedrud-go/session"
)

// Builder assembles a [Client]. Configure it once and call Build; a Builder cannot be
// reused.
type Builder struct {
	config     Config
	httpClient *http.Client
	ephemeral  session.Tier
	durable    session.Tier
	redis      redis.UniversalClient
	logger     zerolog.Logger
	eventSink  EventSink

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Config.Backend.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.Backend.BaseURL = baseURL
	return b
}

// WithHTTPClient replaces the client built from Config.Backend.Timeout.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithEphemeralTier replaces the default in-memory ephemeral tier.
func (b *Builder) WithEphemeralTier(t session.Tier) *Builder {
	b.ephemeral = t
	return b
}

// WithDurableTier sets the tier used when a session is remembered. Without one, remember
// has no effect.
func (b *Builder) WithDurableTier(t session.Tier) *Builder {
	b.durable = t
	return b
}

// WithRedis uses rdb as the durable tier with Config.Session.RedisPrefix and RedisTTL.
// The caller keeps ownership of rdb.
func (b *Builder) WithRedis(rdb redis.UniversalClient) *Builder {
	b.redis = rdb
	return b
}

func (b *Builder) WithLogger(l zerolog.Logger) *Builder {
	b.logger = l
	return b
}

// WithEventSink sets the lifecycle event sink and enables event dispatch.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	b.config.Events.Enabled = sink != nil
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the client and restores any persisted
// session from the tiers.
func (b *Builder) Build(ctx context.Context) (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis != nil && b.durable != nil {
		return nil, errors.New("WithRedis and WithDurableTier are mutually exclusive")
	}

	ephemeral := b.ephemeral
	if ephemeral == nil {
		ephemeral = session.NewMemoryTier()
	}
	durable := b.durable
	if b.redis != nil {
		durable = session.NewRedisTier(b.redis, cfg.Session.RedisPrefix, cfg.Session.RedisTTL)
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Backend.Timeout}
	}

	gw, err := gateway.New(gateway.Config{
		BaseURL:    cfg.Backend.BaseURL,
		HTTPClient: httpClient,
		UserAgent:  cfg.Backend.UserAgent,
		Logger:     b.logger.With().Str("component", "gateway").Logger(),
	})
	if err != nil {
		return nil, err
	}

	connector, err := media.NewConnector(media.Config{
		URL:        cfg.Media.URL,
		HTTPClient: httpClient,
		Logger:     b.logger.With().Str("component", "media").Logger(),
	})
	if err != nil {
		return nil, err
	}

	storeLogger := b.logger.With().Str("component", "session").Logger()
	tokens := session.NewTokenStore(ephemeral, durable,
		session.WithKey(cfg.Session.TokenKey), session.WithLogger(storeLogger))
	profile := session.NewProfileStore(ephemeral, durable,
		session.WithKey(cfg.Session.ProfileKey), session.WithLogger(storeLogger))

	metrics := NewMetrics(cfg.Metrics)
	events := newEventDispatcher(cfg.Events, b.eventSink)
	manager := newManager(gw, tokens, profile, cfg.Session, metrics, events, b.logger)

	if err := manager.Restore(ctx); err != nil {
		events.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	authClient := gateway.NewAuthClient(gw, manager)
	b.built = true

	return &Client{
		cfg:     cfg,
		gateway: gw,
		tokens:  tokens,
		profile: profile,
		manager: manager,
		http:    authClient,
		rooms:   api.NewRooms(authClient),
		admin:   api.NewAdmin(authClient),
		media:   connector,
		metrics: metrics,
		events:  events,
		logger:  b.logger,
	}, nil
}
