// Package fakebackend is an in-memory stand-in for the Bedrud backend REST API. Tests and
// the load-test command drive the client against it.
package fakebackend

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/bedrud/bedrud-go/jwt"
	"github.com/bedrud/bedrud-go/middleware"
)

// RegisterShape selects the body returned by POST /auth/register.
type RegisterShape int

const (
	// RegisterEmbedded answers {tokens, user} like login.
	RegisterEmbedded RegisterShape = iota
	// RegisterSnakeCase answers {access_token, refresh_token} without a user.
	RegisterSnakeCase
)

// Options configures a [Server].
type Options struct {
	// Secret signs access tokens with HS256. A fixed test secret is used when empty.
	Secret []byte
	// AccessTTL is the lifetime of issued access tokens. Negative values issue tokens
	// that are already expired. Defaults to 15m.
	AccessTTL     time.Duration
	RegisterShape RegisterShape
	// RotateRefresh makes refresh return a new refresh token and revoke the old one.
	RotateRefresh bool
	// RefreshDelay holds every refresh response for the given duration.
	RefreshDelay time.Duration
	Logger       zerolog.Logger
}

type user struct {
	ID        string
	Email     string
	Password  string
	Name      string
	Provider  string
	Accesses  []string
	Active    bool
	CreatedAt time.Time
}

// Server is the fake backend. Methods are safe for concurrent use.
type Server struct {
	opts   Options
	secret []byte
	router chi.Router
	srv    *httptest.Server
	logger zerolog.Logger

	accessTTL    atomic.Int64
	failRefresh  atomic.Bool
	refreshCalls atomic.Int64
	loginCalls   atomic.Int64

	mu       sync.Mutex
	users    map[string]*user // by email
	refresh  map[string]string
	rooms    map[string]*room
	roomName map[string]string
}

const defaultSecret = "bedrud-fake-backend-secret"

// New returns a Server that is not listening; use Handler to mount it.
func New(opts Options) *Server {
	if len(opts.Secret) == 0 {
		opts.Secret = []byte(defaultSecret)
	}
	if opts.AccessTTL == 0 {
		opts.AccessTTL = 15 * time.Minute
	}

	s := &Server{
		opts:     opts,
		secret:   opts.Secret,
		logger:   opts.Logger,
		users:    make(map[string]*user),
		refresh:  make(map[string]string),
		rooms:    make(map[string]*room),
		roomName: make(map[string]string),
	}
	s.accessTTL.Store(int64(opts.AccessTTL))
	s.router = s.routes()
	return s
}

// Start returns a listening Server on a loopback address.
func Start(opts Options) *Server {
	s := New(opts)
	s.srv = httptest.NewServer(s.router)
	return s
}

// URL returns the base URL of a started Server.
func (s *Server) URL() string {
	if s.srv == nil {
		return ""
	}
	return s.srv.URL
}

// Close stops a started Server.
func (s *Server) Close() {
	if s.srv != nil {
		s.srv.Close()
	}
}

// Handler returns the backend router.
func (s *Server) Handler() http.Handler { return s.router }

// SetAccessTTL changes the lifetime of access tokens issued from now on.
func (s *Server) SetAccessTTL(d time.Duration) { s.accessTTL.Store(int64(d)) }

// SetFailRefresh makes every refresh call answer 401.
func (s *Server) SetFailRefresh(fail bool) { s.failRefresh.Store(fail) }

// RefreshCalls returns the number of POST /auth/refresh requests received.
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }

// LoginCalls returns the number of POST /auth/login requests received.
func (s *Server) LoginCalls() int64 { return s.loginCalls.Load() }

// Verify checks an access token issued by this server.
func (s *Server) Verify(token string) (*jwt.Claims, error) {
	signer, err := s.signer(time.Minute)
	if err != nil {
		return nil, err
	}
	return signer.Verify(token)
}

// IssueAccessToken signs a token for the user registered under email using ttl.
func (s *Server) IssueAccessToken(email string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	u, ok := s.users[strings.ToLower(email)]
	s.mu.Unlock()
	if !ok {
		return "", errors.New("unknown user")
	}
	return s.issue(u, ttl)
}

func (s *Server) signer(ttl time.Duration) (*jwt.Signer, error) {
	return jwt.NewSigner(jwt.SignerConfig{
		AccessTTL:     ttl,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    s.secret,
		Issuer:        "bedrud-fake",
	})
}

func (s *Server) issue(u *user, ttl time.Duration) (string, error) {
	signer, err := s.signer(ttl)
	if err != nil {
		return "", err
	}
	return signer.Issue(jwt.Identity{
		UserID:   u.ID,
		Email:    u.Email,
		Accesses: u.Accesses,
		Provider: u.Provider,
	})
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/refresh", s.handleRefresh)
	r.Get("/auth/{provider}", s.handleOAuth)
	r.Get("/rtc", s.handleRTC)
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(s.Verify))
		r.Post("/create-room", s.handleCreateRoom)
		r.Post("/join-room", s.handleJoinRoom)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/rooms", s.handleListRooms)
			r.Patch("/rooms/{id}", s.handleUpdateRoom)
			r.Post("/rooms/{id}/token", s.handleRoomToken)
			r.Get("/users", s.handleListUsers)
			r.Put("/users/{id}/status", s.handleUserStatus)
		})
	})
	return r
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok || !claims.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
