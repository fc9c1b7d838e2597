package bedrud

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/bedrud/bedrud-go/gateway"
	"github.com/bedrud/bedrud-go/jwt"
	"github.com/bedrud/bedrud-go/session"
)

// State is the session state reported by [Manager.State].
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	// StateExpired means tokens are held but the access token is past its exp.
	StateExpired
	// StateRefreshing means a refresh call is in flight.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	case StateRefreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AccessToken is a usable bearer token returned by [Manager.Token].
type AccessToken struct {
	Value string
	// ExpiresAt is zero when the token carries no exp claim.
	ExpiresAt time.Time
	UserID    string
}

// Authenticator is the backend surface the Manager drives. [*gateway.Gateway] implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*gateway.LoginResult, error)
	Register(ctx context.Context, req gateway.RegisterRequest) (*gateway.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*gateway.RefreshResult, error)
}

// Manager owns the session lifecycle: login, registration, logout and the valid-token
// accessor with deduplicated refresh. It is safe for concurrent use.
type Manager struct {
	auth    Authenticator
	tokens  *session.TokenStore
	profile *session.ProfileStore
	cfg     SessionConfig
	metrics *Metrics
	events  *eventDispatcher
	logger  zerolog.Logger

	flights    singleflight.Group
	refreshing atomic.Int32
	// sessMu serialises replacing the session: login and register writes, logout, and
	// applying a refresh outcome. Network calls happen outside it.
	sessMu sync.Mutex
	now        func() time.Time
}

func newManager(
	auth Authenticator,
	tokens *session.TokenStore,
	profile *session.ProfileStore,
	cfg SessionConfig,
	metrics *Metrics,
	events *eventDispatcher,
	logger zerolog.Logger,
) *Manager {
	return &Manager{
		auth:    auth,
		tokens:  tokens,
		profile: profile,
		cfg:     cfg,
		metrics: metrics,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// State reports the current session state.
func (m *Manager) State() State {
	if m.refreshing.Load() > 0 {
		return StateRefreshing
	}
	cur := m.tokens.Current()
	if cur == nil {
		return StateUnauthenticated
	}
	claims, err := jwt.Decode(cur.AccessToken)
	if err != nil || !m.usable(claims) {
		return StateExpired
	}
	return StateAuthenticated
}

// User returns the stored profile, or nil.
func (m *Manager) User() *session.UserProfile {
	return m.profile.Current()
}

// Restore loads both stores from their tiers.
func (m *Manager) Restore(ctx context.Context) error {
	err := errors.Join(m.tokens.Load(ctx), m.profile.Load(ctx))
	if cur := m.tokens.Current(); cur != nil {
		userID := ""
		if claims, decErr := jwt.Decode(cur.AccessToken); decErr == nil {
			userID = claims.UserID
		}
		m.logger.Debug().Str("user_id", userID).Msg("session restored")
		m.emit(ctx, EventSessionRestored, userID, nil, nil)
	}
	return err
}

// Token returns a valid access token, refreshing it when expired.
//
// It returns nil and no error when there is no session. Concurrent callers that find the
// same expired token share one refresh call and observe the same outcome. When the
// refresh fails the session is cleared before Token returns an error wrapping
// [ErrSessionExpired]. The refresh keeps running when ctx ends; only this caller stops
// waiting. A refresh outcome is dropped when the session was replaced or cleared while it
// ran, and Token answers for the session that is current then.
func (m *Manager) Token(ctx context.Context) (*AccessToken, error) {
	for {
		cur := m.tokens.Current()
		if cur == nil {
			m.metrics.Inc(MetricTokenUnauthenticated)
			return nil, nil
		}
		if claims, err := jwt.Decode(cur.AccessToken); err == nil && m.usable(claims) {
			m.metrics.Inc(MetricTokenValid)
			return newAccessToken(cur.AccessToken, claims), nil
		}

		refreshToken := cur.RefreshToken
		detached := context.WithoutCancel(ctx)
		ch := m.flights.DoChan(refreshToken, func() (any, error) {
			return m.refresh(detached, refreshToken)
		})

		select {
		case res := <-ch:
			if res.Shared {
				m.metrics.Inc(MetricRefreshShared)
			}
			if errors.Is(res.Err, errStaleRefresh) {
				// The session was replaced while the flight ran; answer for the new one.
				continue
			}
			if res.Err != nil {
				return nil, res.Err
			}
			tok, _ := res.Val.(*AccessToken)
			return tok, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// errStaleRefresh reports a refresh whose session was cleared or replaced before its
// outcome could be applied. It never leaves the package.
var errStaleRefresh = errors.New("refresh outcome belongs to a replaced session")

// AccessToken implements [middleware.TokenSource]. No session yields an empty token.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	tok, err := m.Token(ctx)
	if err != nil || tok == nil {
		return "", err
	}
	return tok.Value, nil
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) (*AccessToken, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.RefreshTimeout)
	defer cancel()

	// An earlier flight may have rotated the session or a logout may have cleared it.
	cur := m.tokens.Current()
	if cur == nil {
		return nil, nil
	}
	if claims, err := jwt.Decode(cur.AccessToken); err == nil && m.usable(claims) {
		return newAccessToken(cur.AccessToken, claims), nil
	}
	if cur.RefreshToken != refreshToken {
		return nil, errStaleRefresh
	}

	m.refreshing.Add(1)
	defer m.refreshing.Add(-1)

	start := time.Now()
	res, err := m.auth.Refresh(ctx, refreshToken)
	m.metrics.Observe(MetricRefreshLatency, time.Since(start))

	var claims *jwt.Claims
	if err == nil {
		claims, err = jwt.Decode(res.AccessToken)
	}
	if err != nil {
		m.metrics.Inc(MetricRefreshFailure)
		if !m.forceLogout(ctx, refreshToken, err) {
			m.logger.Debug().Err(err).Msg("ignoring refresh failure of a replaced session")
			return nil, errStaleRefresh
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	next := ""
	if res.RefreshToken != "" && res.RefreshToken != refreshToken {
		next = res.RefreshToken
	}
	m.sessMu.Lock()
	applied, err := m.tokens.RotateIf(ctx, refreshToken, res.AccessToken, next)
	m.sessMu.Unlock()
	if err != nil {
		m.metrics.Inc(MetricPersistFailure)
		m.logger.Warn().Err(err).Str("user_id", claims.UserID).Msg("refreshed token not persisted")
	}
	if !applied {
		m.logger.Debug().Str("user_id", claims.UserID).Msg("session replaced during refresh")
		return nil, errStaleRefresh
	}

	m.metrics.Inc(MetricRefreshSuccess)
	m.emit(ctx, EventRefresh, claims.UserID, nil, map[string]string{"rotated": fmt.Sprint(next != "")})
	return newAccessToken(res.AccessToken, claims), nil
}

// forceLogout clears the session if it is still the generation identified by
// refreshToken and reports whether it did.
func (m *Manager) forceLogout(ctx context.Context, refreshToken string, cause error) bool {
	ctx = context.WithoutCancel(ctx)

	m.sessMu.Lock()
	cur := m.tokens.Current()
	if cur == nil || cur.RefreshToken != refreshToken {
		m.sessMu.Unlock()
		return false
	}
	userID := ""
	if p := m.profile.Current(); p != nil {
		userID = p.ID
	}
	err := m.clear(ctx)
	m.sessMu.Unlock()

	if err != nil {
		m.logger.Warn().Err(err).Msg("forced logout left persisted state behind")
	}
	m.metrics.Inc(MetricForcedLogout)
	m.logger.Info().Err(cause).Str("user_id", userID).Msg("session expired")
	m.emit(ctx, EventForcedLogout, userID, cause, nil)
	return true
}

// Login authenticates with email and password and stores the session. remember selects
// the durable tier in addition to the ephemeral one.
func (m *Manager) Login(ctx context.Context, email, password string, remember bool) (*session.UserProfile, error) {
	res, err := m.auth.Login(ctx, email, password)
	if err == nil && (res.Tokens == nil || res.Tokens.AccessToken == "" || res.User == nil || res.User.ID == "") {
		err = ErrLoginFailed
	}
	var claims *jwt.Claims
	if err == nil {
		if claims, err = jwt.Decode(res.Tokens.AccessToken); err != nil {
			err = fmt.Errorf("%w: %w", ErrLoginFailed, err)
		}
	}
	if err != nil {
		m.metrics.Inc(MetricLoginFailure)
		m.emit(ctx, EventLogin, "", err, nil)
		return nil, err
	}

	profile := *res.User
	if profile.ID != claims.UserID {
		m.logger.Warn().Str("profile_id", profile.ID).Str("user_id", claims.UserID).Msg("login profile does not match token subject")
	}
	if err := m.persist(ctx, *res.Tokens, profile, remember); err != nil {
		m.metrics.Inc(MetricLoginFailure)
		m.emit(ctx, EventLogin, claims.UserID, err, nil)
		return nil, err
	}

	m.metrics.Inc(MetricLoginSuccess)
	m.emit(ctx, EventLogin, claims.UserID, nil, map[string]string{"remember": fmt.Sprint(remember)})
	return &profile, nil
}

// Register creates an account and stores the session. When the backend answers with
// tokens only, the profile is derived from the access token claims and req.Name.
func (m *Manager) Register(ctx context.Context, req gateway.RegisterRequest, remember bool) (*session.UserProfile, error) {
	res, err := m.auth.Register(ctx, req)
	if err == nil && (res.Tokens == nil || res.Tokens.AccessToken == "") {
		err = ErrRegistrationFailed
	}
	var claims *jwt.Claims
	if err == nil {
		if claims, err = jwt.Decode(res.Tokens.AccessToken); err != nil {
			err = fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
		}
	}
	if err != nil {
		m.metrics.Inc(MetricRegisterFailure)
		m.emit(ctx, EventRegister, "", err, nil)
		return nil, err
	}

	var profile session.UserProfile
	derived := res.User == nil || res.User.ID == ""
	if derived {
		profile = session.UserProfile{
			ID:      claims.UserID,
			Email:   claims.Email,
			Name:    req.Name,
			IsAdmin: claims.IsAdmin(),
		}
	} else {
		profile = *res.User
	}

	if err := m.persist(ctx, *res.Tokens, profile, remember); err != nil {
		m.metrics.Inc(MetricRegisterFailure)
		m.emit(ctx, EventRegister, claims.UserID, err, nil)
		return nil, err
	}

	m.metrics.Inc(MetricRegisterSuccess)
	m.emit(ctx, EventRegister, claims.UserID, nil, map[string]string{"derived_profile": fmt.Sprint(derived)})
	return &profile, nil
}

// persist writes tokens then profile. With AtomicWrites a failed profile write also
// clears the tokens.
func (m *Manager) persist(ctx context.Context, tokens session.AuthTokens, profile session.UserProfile, remember bool) error {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	if err := m.tokens.Set(ctx, tokens, remember); err != nil {
		return err
	}
	if err := m.profile.Set(ctx, profile, remember); err != nil {
		if m.cfg.AtomicWrites {
			if clearErr := m.tokens.Clear(ctx); clearErr != nil {
				m.logger.Warn().Err(clearErr).Msg("rollback of token write failed")
			}
		}
		return err
	}
	return nil
}

// Logout clears both stores. The session is gone from memory even when a tier fails;
// tier errors are returned joined.
func (m *Manager) Logout(ctx context.Context) error {
	userID := ""
	if p := m.profile.Current(); p != nil {
		userID = p.ID
	}
	m.sessMu.Lock()
	err := m.clear(ctx)
	m.sessMu.Unlock()
	m.metrics.Inc(MetricLogout)
	m.emit(ctx, EventLogout, userID, err, nil)
	return err
}

func (m *Manager) clear(ctx context.Context) error {
	return errors.Join(m.tokens.Clear(ctx), m.profile.Clear(ctx))
}

// usable reports whether a token with claims can be sent as is.
func (m *Manager) usable(claims *jwt.Claims) bool {
	return !claims.ExpiredAt(m.now().Add(m.cfg.RefreshSkew))
}

func (m *Manager) emit(ctx context.Context, typ EventType, userID string, err error, meta map[string]string) {
	if m.events == nil {
		return
	}
	ev := Event{
		Timestamp: m.now().UTC(),
		Type:      typ,
		UserID:    userID,
		Success:   err == nil,
		Metadata:  meta,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	m.events.Emit(ctx, ev)
}

func newAccessToken(value string, claims *jwt.Claims) *AccessToken {
	return &AccessToken{Value: value, ExpiresAt: claims.Expiry(), UserID: claims.UserID}
}
