package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bedrud/bedrud-go/session"
)

const defaultTimeout = 15 * time.Second

// Config configures a [Gateway].
type Config struct {
	// BaseURL is the backend API root, e.g. "https://api.bedrud.example/api".
	BaseURL string
	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
	UserAgent  string
	Logger     zerolog.Logger
}

// Gateway performs the backend's auth calls. It holds no session state and is safe for
// concurrent use.
type Gateway struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	logger    zerolog.Logger
}

// LoginResult is the body of a successful login or register call. Tokens or User may be
// nil when the backend omits them; callers decide whether that is a failure.
type LoginResult struct {
	Tokens *session.AuthTokens
	User   *session.UserProfile
}

// RefreshResult is the body of a successful refresh call. RefreshToken is empty unless the
// backend rotated it.
type RefreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegisterRequest is the register payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Provider is an OAuth identity provider offered by the backend.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderGitHub  Provider = "github"
	ProviderTwitter Provider = "twitter"
)

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderGitHub, ProviderTwitter:
		return true
	}
	return false
}

// authResponse accepts both register shapes: {tokens,user} and {access_token,refresh_token}.
type authResponse struct {
	Tokens       *session.AuthTokens  `json:"tokens"`
	User         *session.UserProfile `json:"user"`
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
}

func (r authResponse) result() *LoginResult {
	out := &LoginResult{Tokens: r.Tokens, User: r.User}
	if out.Tokens == nil && r.AccessToken != "" {
		out.Tokens = &session.AuthTokens{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	}
	return out
}

// New validates cfg and returns a [Gateway].
func New(cfg Config) (*Gateway, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("backend base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend base URL scheme %q", base.Scheme)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	return &Gateway{
		base:      base,
		http:      client,
		userAgent: cfg.UserAgent,
		logger:    cfg.Logger,
	}, nil
}

// BaseURL returns the backend API root.
func (g *Gateway) BaseURL() string {
	return g.base.String()
}

// Login calls POST /auth/login.
func (g *Gateway) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := g.call(ctx, OpLogin, http.MethodPost, "/auth/login", body, &resp); err != nil {
		return nil, err
	}
	return resp.result(), nil
}

// Register calls POST /auth/register. A snake_case token-only response is normalised into
// Tokens with a nil User.
func (g *Gateway) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	var resp authResponse
	if err := g.call(ctx, OpRegister, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return resp.result(), nil
}

// Refresh calls POST /auth/refresh.
func (g *Gateway) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	var resp RefreshResult
	body := map[string]string{"refresh_token": refreshToken}
	if err := g.call(ctx, OpRefresh, http.MethodPost, "/auth/refresh", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OAuthStart calls GET /auth/{provider} and returns the raw JSON body, typically
// carrying the provider redirect URL.
func (g *Gateway) OAuthStart(ctx context.Context, provider Provider) (json.RawMessage, error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	var resp json.RawMessage
	if err := g.call(ctx, OpOAuthStart, http.MethodGet, "/auth/"+string(provider), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (g *Gateway) call(ctx context.Context, op Op, method, path string, body, out any) error {
	req, err := g.newRequest(ctx, method, path, nil, body)
	if err != nil {
		return &AuthError{Op: op, Err: err}
	}

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		g.logger.Debug().Err(err).Str("op", string(op)).Msg("backend request failed")
		return &AuthError{Op: op, Err: err}
	}
	defer drain(resp.Body)

	g.logger.Debug().
		Str("op", string(op)).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Msg("backend auth call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &AuthError{Op: op, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &AuthError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (g *Gateway) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := *g.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID(ctx))
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	return req, nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
