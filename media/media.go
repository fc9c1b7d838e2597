// Package media is the client boundary to the real-time media server.
//
// It resolves the server URL, pre-warms the connection and opens the signalling
// websocket with a room token obtained from join-room. The media protocol itself is
// not spoken here; callers hand the open [Conn] to their media stack.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/bedrud/bedrud-go/api"
)

// DefaultURL is used when no media server URL is configured.
const DefaultURL = "ws://127.0.0.1:7880"

// Config configures a [Connector].
type Config struct {
	// URL is the ws(s) or http(s) address of the media server. Empty selects DefaultURL.
	URL        string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Options are passed to the media server when connecting.
type Options struct {
	AutoSubscribe  bool
	AdaptiveStream bool
}

// Connector opens connections to one media server.
type Connector struct {
	ws     *url.URL
	http   *http.Client
	logger zerolog.Logger
}

// NewConnector validates cfg.URL and returns a Connector.
func NewConnector(cfg Config) (*Connector, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		raw = DefaultURL
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid media URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("invalid media URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("media URL has no host")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Connector{ws: u, http: client, logger: cfg.Logger}, nil
}

// URL returns the websocket form of the media server address.
func (c *Connector) URL() string {
	return c.ws.String()
}

func (c *Connector) httpURL() string {
	u := *c.ws
	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	return u.String()
}

// Prepare pre-warms the connection with a plain HTTP request. Any HTTP response counts
// as reachable.
func (c *Connector) Prepare(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.httpURL(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("media server unreachable: %w", err)
	}
	_ = resp.Body.Close()
	c.logger.Debug().Str("url", c.URL()).Int("status", resp.StatusCode).Msg("prepared media connection")
	return nil
}

// Connect opens the signalling websocket for token.
func (c *Connector) Connect(ctx context.Context, token string, opts Options) (*Conn, error) {
	if token == "" {
		return nil, errors.New("media token is required")
	}

	u := *c.ws
	u.Path = strings.TrimRight(u.Path, "/") + "/rtc"
	q := url.Values{}
	q.Set("access_token", token)
	q.Set("auto_subscribe", boolParam(opts.AutoSubscribe))
	q.Set("adaptive_stream", boolParam(opts.AdaptiveStream))
	u.RawQuery = q.Encode()

	// The handshake is bounded by ctx; a client timeout would also cut the open stream.
	client := *c.http
	client.Timeout = 0

	ws, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPClient: &client})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connect to media server: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("connect to media server: %w", err)
	}
	c.logger.Debug().Str("url", c.URL()).Msg("connected to media server")
	return &Conn{ws: ws}, nil
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Conn is an open media server connection.
type Conn struct {
	ws *websocket.Conn
}

// WebSocket returns the underlying connection.
func (c *Conn) WebSocket() *websocket.Conn { return c.ws }

// Close closes the connection normally.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

// Joiner obtains a media token for a room. [*api.Rooms] implements it.
type Joiner interface {
	JoinRoom(ctx context.Context, roomName string) (*api.JoinRoomResponse, error)
}

// JoinError is returned by [Join]. Its message is fixed; the cause is kept for errors.Is.
type JoinError struct {
	Err error
}

func (e *JoinError) Error() string { return "Failed to join meeting" }

func (e *JoinError) Unwrap() error { return e.Err }

// Meeting is a joined room with its open media connection.
type Meeting struct {
	Room *api.JoinRoomResponse
	Conn *Conn
}

// Join obtains a token for roomName, pre-warms the media server and connects with
// auto-subscribe enabled.
func Join(ctx context.Context, joiner Joiner, connector *Connector, roomName string) (*Meeting, error) {
	room, err := joiner.JoinRoom(ctx, roomName)
	if err != nil {
		return nil, &JoinError{Err: err}
	}
	if err := connector.Prepare(ctx); err != nil {
		return nil, &JoinError{Err: err}
	}
	conn, err := connector.Connect(ctx, room.Token, Options{AutoSubscribe: true, AdaptiveStream: true})
	if err != nil {
		return nil, &JoinError{Err: err}
	}
	return &Meeting{Room: room, Conn: conn}, nil
}
