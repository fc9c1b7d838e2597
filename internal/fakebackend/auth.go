package fakebackend

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bedrud/bedrud-go/internal"
	"github.com/bedrud/bedrud-go/jwt"
)

// User is the public view of a registered account.
type User struct {
	ID       string
	Email    string
	Name     string
	Accesses []string
}

// AddUser registers an account directly. Passing [jwt.AdminAccess] in accesses makes the
// user an administrator.
func (s *Server) AddUser(email, password, name string, accesses ...string) User {
	u := &user{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  password,
		Name:      name,
		Provider:  "local",
		Accesses:  append([]string{"user"}, accesses...),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.users[strings.ToLower(email)] = u
	s.mu.Unlock()

	return User{ID: u.ID, Email: u.Email, Name: u.Name, Accesses: u.Accesses}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type userBody struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	PictureURL string `json:"pictureUrl,omitempty"`
	IsAdmin    bool   `json:"isAdmin,omitempty"`
}

type loginBody struct {
	Tokens tokenPair `json:"tokens"`
	User   userBody  `json:"user"`
}

type snakeTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)

	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	u, ok := s.users[strings.ToLower(in.Email)]
	valid := ok && u.Password == in.Password && u.Active
	s.mu.Unlock()
	if !valid {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	pair, err := s.newSession(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, loginBody{Tokens: pair, User: toUserBody(u)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil || in.Email == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	_, exists := s.users[strings.ToLower(in.Email)]
	s.mu.Unlock()
	if exists {
		writeError(w, http.StatusConflict, "user already exists")
		return
	}

	s.AddUser(in.Email, in.Password, in.Name)
	s.mu.Lock()
	u := s.users[strings.ToLower(in.Email)]
	s.mu.Unlock()

	pair, err := s.newSession(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.opts.RegisterShape == RegisterSnakeCase {
		writeJSON(w, http.StatusOK, snakeTokens{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
		return
	}
	writeJSON(w, http.StatusOK, loginBody{Tokens: pair, User: toUserBody(u)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)
	if s.opts.RefreshDelay > 0 {
		select {
		case <-time.After(s.opts.RefreshDelay):
		case <-r.Context().Done():
			return
		}
	}

	var in snakeTokens
	if err := decodeJSON(r, &in); err != nil || in.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if s.failRefresh.Load() {
		writeError(w, http.StatusUnauthorized, "refresh rejected")
		return
	}
	if err := internal.ValidOpaqueToken(in.RefreshToken); err != nil {
		writeError(w, http.StatusUnauthorized, "malformed refresh token")
		return
	}

	s.mu.Lock()
	email, ok := s.refresh[in.RefreshToken]
	var u *user
	if ok {
		u = s.users[email]
	}
	s.mu.Unlock()
	if u == nil {
		writeError(w, http.StatusUnauthorized, "unknown refresh token")
		return
	}

	access, err := s.issue(u, time.Duration(s.accessTTL.Load()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	next := in.RefreshToken
	if s.opts.RotateRefresh {
		next, err = internal.NewOpaqueToken()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.mu.Lock()
		delete(s.refresh, in.RefreshToken)
		s.refresh[next] = email
		s.mu.Unlock()
	}

	s.logger.Debug().Str("user_id", u.ID).Bool("rotated", s.opts.RotateRefresh).Msg("fake backend refresh")
	writeJSON(w, http.StatusOK, snakeTokens{AccessToken: access, RefreshToken: next})
}

func (s *Server) handleOAuth(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if !slices.Contains([]string{"google", "github", "twitter"}, provider) {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url": "https://" + provider + ".example/oauth/authorize?state=" + uuid.NewString(),
	})
}

func (s *Server) newSession(u *user) (tokenPair, error) {
	access, err := s.issue(u, time.Duration(s.accessTTL.Load()))
	if err != nil {
		return tokenPair{}, err
	}
	refresh, err := internal.NewOpaqueToken()
	if err != nil {
		return tokenPair{}, err
	}

	s.mu.Lock()
	s.refresh[refresh] = strings.ToLower(u.Email)
	s.mu.Unlock()

	return tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func toUserBody(u *user) userBody {
	return userBody{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		IsAdmin: slices.Contains(u.Accesses, jwt.AdminAccess),
	}
}
