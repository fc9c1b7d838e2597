package bedrud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/bedrud/bedrud-go/api"
	"github.com/bedrud/bedrud-go/gateway"
	"github.com/bedrud/bedrud-go/internal/fakebackend"
	"github.com/bedrud/bedrud-go/media"
	"github.com/bedrud/bedrud-go/session"
)

func TestBuilderCanBeUsedOnce(t *testing.T) {
	srv, _ := startBackend(t, fakebackend.Options{})
	b := New().WithBaseURL(srv.URL())

	c, err := b.Build(context.Background())
	require.NoError(t, err)
	defer c.Close()

	_, err = b.Build(context.Background())
	require.ErrorIs(t, err, ErrBuilderUsed)
}

func TestBuilderRejectsInvalidSetup(t *testing.T) {
	_, err := New().Build(context.Background())
	require.Error(t, err)

	_, err = New().WithBaseURL("ftp://example.com").Build(context.Background())
	require.Error(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	_, err = New().
		WithBaseURL("http://127.0.0.1:1").
		WithRedis(rdb).
		WithDurableTier(session.NewMemoryTier()).
		Build(context.Background())
	require.Error(t, err)
}

func TestBuildFailsWhenDurableTierIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	_, err := New().WithBaseURL("http://127.0.0.1:1").WithRedis(rdb).Build(context.Background())
	require.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestRedisDurableTierSharesSession(t *testing.T) {
	srv, u := startBackend(t, fakebackend.Options{})
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := validConfig()
	cfg.Session.RedisPrefix = "meet"
	cfg.Session.RedisTTL = time.Hour

	first := newTestClient(t, srv, func(b *Builder) { b.WithConfig(cfg).WithBaseURL(srv.URL()).WithRedis(rdb) })
	_, err := first.Login(context.Background(), testEmail, testPassword, true)
	require.NoError(t, err)
	require.True(t, mr.Exists("meet:auth_data"))
	require.True(t, mr.Exists("meet:user_data"))
	require.Equal(t, time.Hour, mr.TTL("meet:auth_data"))

	second := newTestClient(t, srv, func(b *Builder) { b.WithConfig(cfg).WithBaseURL(srv.URL()).WithRedis(rdb) })
	require.Equal(t, u.ID, second.User().ID)

	require.NoError(t, second.Logout(context.Background()))
	require.False(t, mr.Exists("meet:auth_data"))
}

func TestClosedClientRejectsSessionCalls(t *testing.T) {
	srv, _ := startBackend(t, fakebackend.Options{})
	c := newTestClient(t, srv, nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	ctx := context.Background()
	_, err := c.Login(ctx, testEmail, testPassword, false)
	require.ErrorIs(t, err, ErrClientClosed)
	_, err = c.Token(ctx)
	require.ErrorIs(t, err, ErrClientClosed)
	require.ErrorIs(t, c.Logout(ctx), ErrClientClosed)
	require.ErrorIs(t, c.Follow(ctx), ErrClientClosed)
}

func TestAuthenticatedCallsUseSessionToken(t *testing.T) {
	srv, u := startBackend(t, fakebackend.Options{})
	c := newTestClient(t, srv, nil)
	ctx := context.Background()

	_, err := c.Rooms().CreateRoom(ctx, api.CreateRoomRequest{Name: "standup"})
	require.Equal(t, 401, gateway.StatusCode(err))

	_, err = c.Login(ctx, testEmail, testPassword, false)
	require.NoError(t, err)

	room, err := c.Rooms().CreateRoom(ctx, api.CreateRoomRequest{Name: "standup"})
	require.NoError(t, err)
	require.Equal(t, u.ID, room.CreatedBy)

	_, err = c.Admin().ListUsers(ctx)
	require.Equal(t, 403, gateway.StatusCode(err))
}

func TestAuthenticatedCallRefreshesExpiredToken(t *testing.T) {
	srv, _ := startBackend(t, fakebackend.Options{AccessTTL: -time.Minute})
	c := newTestClient(t, srv, nil)
	ctx := context.Background()

	_, err := c.Login(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	srv.SetAccessTTL(time.Hour)

	_, err = c.Rooms().CreateRoom(ctx, api.CreateRoomRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 1, srv.RefreshCalls())
}

func TestAuthenticatedCallAfterRefreshFailure(t *testing.T) {
	srv, _ := startBackend(t, fakebackend.Options{AccessTTL: -time.Minute})
	c := newTestClient(t, srv, nil)
	ctx := context.Background()

	_, err := c.Login(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	srv.SetFailRefresh(true)

	_, err = c.Rooms().CreateRoom(ctx, api.CreateRoomRequest{})
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Nil(t, c.User())
}

func TestJoinMeetingConnectsToMediaServer(t *testing.T) {
	srv, _ := startBackend(t, fakebackend.Options{})
	cfg := validConfig()
	cfg.Media.URL = "ws" + strings.TrimPrefix(srv.URL(), "http")
	c := newTestClient(t, srv, func(b *Builder) { b.WithConfig(cfg).WithBaseURL(srv.URL()) })
	ctx := context.Background()

	_, err := c.Login(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	_, err = c.Rooms().CreateRoom(ctx, api.CreateRoomRequest{Name: "weekly"})
	require.NoError(t, err)

	meeting, err := c.JoinMeeting(ctx, "weekly")
	require.NoError(t, err)
	require.Equal(t, "weekly", meeting.Room.Name)
	require.NoError(t, meeting.Conn.Close())

	_, err = c.JoinMeeting(ctx, "missing")
	var joinErr *media.JoinError
	require.ErrorAs(t, err, &joinErr)
	require.Equal(t, "Failed to join meeting", err.Error())
	require.Equal(t, 404, gateway.StatusCode(err))
}

func TestOAuthStart(t *testing.T) {
	srv, _ := startBackend(t, fakebackend.Options{})
	c := newTestClient(t, srv, nil)

	raw, err := c.OAuthStart(context.Background(), gateway.ProviderGitHub)
	require.NoError(t, err)
	var body struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Contains(t, body.URL, "github")

	_, err = c.OAuthStart(context.Background(), Provider("myspace"))
	require.ErrorIs(t, err, gateway.ErrUnknownProvider)
}

func TestFollowNeedsWatchableTier(t *testing.T) {
	srv, _ := startBackend(t, fakebackend.Options{})
	c := newTestClient(t, srv, func(b *Builder) { b.WithDurableTier(session.NewMemoryTier()) })

	err := c.Follow(context.Background())
	require.ErrorIs(t, err, session.ErrWatchUnsupported)
}

func TestFollowPicksUpLogoutFromAnotherClient(t *testing.T) {
	srv, _ := startBackend(t, fakebackend.Options{})
	dir := t.TempDir()
	newFileClient := func() *Client {
		tier, err := session.NewFileTier(dir)
		require.NoError(t, err)
		return newTestClient(t, srv, func(b *Builder) { b.WithDurableTier(tier) })
	}

	first := newFileClient()
	_, err := first.Login(context.Background(), testEmail, testPassword, true)
	require.NoError(t, err)

	second := newFileClient()
	require.NotNil(t, second.User())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- second.Follow(ctx) }()

	// Give the watchers time to register before the change lands.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, first.Logout(context.Background()))

	require.Eventually(t, func() bool {
		return second.User() == nil && second.Tokens().Current() == nil
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}

func TestBuilderLoggerReceivesRefreshWarnings(t *testing.T) {
	srv, _ := startBackend(t, fakebackend.Options{AccessTTL: -time.Minute})
	var buf safeBuffer
	logger := zerolog.New(&buf)
	c := newTestClient(t, srv, func(b *Builder) { b.WithLogger(logger) })
	ctx := context.Background()

	_, err := c.Login(ctx, testEmail, testPassword, false)
	require.NoError(t, err)
	srv.SetFailRefresh(true)
	_, err = c.Token(ctx)
	require.Error(t, err)

	require.Contains(t, buf.String(), `"message":"session expired"`)
}

func TestContextRequestIDReachesBackend(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	id, ok := gateway.RequestIDFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "req-42", id)
}

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{ErrSessionExpired, ErrLoginFailed, ErrRegistrationFailed, ErrClientClosed, ErrBuilderUsed, ErrMalformedToken, ErrStorageUnavailable}
	for i, a := range all {
		for j, b := range all {
			require.Equal(t, i == j, errors.Is(a, b))
		}
	}
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
