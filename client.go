package bedrud

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bedrud/bedrud-go/api"
	"github.com/bedrud/bedrud-go/gateway"
	"github.com/bedrud/bedrud-go/media"
	"github.com/bedrud/bedrud-go/session"
)

// RegisterRequest is the account registration payload.
type RegisterRequest = gateway.RegisterRequest

// Provider is an OAuth identity provider.
type Provider = gateway.Provider

// Client is a Bedrud session client. It owns the token and profile stores, the backend
// gateway and the session manager. Build one with [New]; it is safe for concurrent use.
type Client struct {
	cfg     Config
	gateway *gateway.Gateway
	tokens  *session.TokenStore
	profile *session.ProfileStore
	manager *Manager
	http    *gateway.AuthClient
	rooms   *api.Rooms
	admin   *api.Admin
	media   *media.Connector
	metrics *Metrics
	events  *eventDispatcher
	logger  zerolog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
}

// Login authenticates and stores the session. remember also writes the durable tier.
func (c *Client) Login(ctx context.Context, email, password string, remember bool) (*session.UserProfile, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.manager.Login(ctx, email, password, remember)
}

// Register creates an account and stores the session.
func (c *Client) Register(ctx context.Context, req RegisterRequest, remember bool) (*session.UserProfile, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.manager.Register(ctx, req, remember)
}

// Logout clears the session from every tier.
func (c *Client) Logout(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.manager.Logout(ctx)
}

// Token returns a valid access token or nil when signed out. See [Manager.Token].
func (c *Client) Token(ctx context.Context) (*AccessToken, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.manager.Token(ctx)
}

// OAuthStart returns the backend's raw response for starting an OAuth login.
func (c *Client) OAuthStart(ctx context.Context, provider Provider) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return c.gateway.OAuthStart(ctx, provider)
}

// JoinMeeting joins roomName and connects to the media server.
func (c *Client) JoinMeeting(ctx context.Context, roomName string) (*media.Meeting, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return media.Join(ctx, c.rooms, c.media, roomName)
}

func (c *Client) State() State                     { return c.manager.State() }
func (c *Client) User() *session.UserProfile       { return c.manager.User() }
func (c *Client) Tokens() *session.TokenStore      { return c.tokens }
func (c *Client) Profile() *session.ProfileStore   { return c.profile }
func (c *Client) HTTP() *gateway.AuthClient        { return c.http }
func (c *Client) Rooms() *api.Rooms                { return c.rooms }
func (c *Client) Admin() *api.Admin                { return c.admin }
func (c *Client) Media() *media.Connector          { return c.media }
func (c *Client) Manager() *Manager                { return c.manager }
func (c *Client) Config() Config                   { return cloneConfig(c.cfg) }
func (c *Client) MetricsSnapshot() MetricsSnapshot { return c.metrics.Snapshot() }

// EventsDropped returns the number of events discarded because the buffer was full.
func (c *Client) EventsDropped() uint64 { return c.events.Dropped() }

// Follow mirrors session changes made by other processes sharing the durable tier until
// ctx is done. It returns [session.ErrWatchUnsupported] when the durable tier cannot be
// watched.
func (c *Client) Follow(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.tokens.Follow(ctx) })
	g.Go(func() error { return c.profile.Follow(ctx) })
	return g.Wait()
}

// Close flushes queued events. Session calls made afterwards return [ErrClientClosed];
// persisted state is left untouched.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.events.Close()
		c.logger.Debug().Msg("client closed")
	})
	return nil
}
