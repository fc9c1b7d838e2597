package fakebackend

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bedrud/bedrud-go/internal"
	"github.com/bedrud/bedrud-go/middleware"
)

type roomSettings struct {
	AllowChat       bool `json:"allowChat"`
	AllowVideo      bool `json:"allowVideo"`
	AllowAudio      bool `json:"allowAudio"`
	RequireApproval bool `json:"requireApproval"`
}

type participant struct {
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	JoinedAt      string `json:"joinedAt"`
	IsActive      bool   `json:"isActive"`
	IsMuted       bool   `json:"isMuted"`
	IsVideoOff    bool   `json:"isVideoOff"`
	IsChatBlocked bool   `json:"isChatBlocked"`
	Permissions   string `json:"permissions"`
}

type room struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	CreatedBy       string        `json:"createdBy"`
	IsActive        bool          `json:"isActive"`
	MaxParticipants int           `json:"maxParticipants"`
	ExpiresAt       string        `json:"expiresAt"`
	Settings        roomSettings  `json:"settings"`
	Participants    []participant `json:"participants"`
}

type joinBody struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Token           string       `json:"token"`
	CreatedBy       string       `json:"createdBy"`
	IsActive        bool         `json:"isActive"`
	MaxParticipants int          `json:"maxParticipants"`
	ExpiresAt       string       `json:"expiresAt"`
	Settings        roomSettings `json:"settings"`
}

// mediaTokenPrefix marks credentials handed out by join-room; /rtc accepts only these.
const mediaTokenPrefix = "lk_"

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	var in struct {
		Name            string `json:"name"`
		MaxParticipants int    `json:"maxParticipants"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if in.Name == "" {
		in.Name = strings.Split(uuid.NewString(), "-")[0]
	}
	if in.MaxParticipants <= 0 {
		in.MaxParticipants = 20
	}

	rm := &room{
		ID:              uuid.NewString(),
		Name:            in.Name,
		CreatedBy:       claims.UserID,
		IsActive:        true,
		MaxParticipants: in.MaxParticipants,
		ExpiresAt:       time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		Settings:        roomSettings{AllowChat: true, AllowVideo: true, AllowAudio: true},
		Participants:    []participant{},
	}

	s.mu.Lock()
	if _, taken := s.roomName[rm.Name]; taken {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "room name taken")
		return
	}
	s.rooms[rm.ID] = rm
	s.roomName[rm.Name] = rm.ID
	out := *rm
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())

	var in struct {
		RoomName string `json:"roomName"`
	}
	if err := decodeJSON(r, &in); err != nil || in.RoomName == "" {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	token, err := internal.NewOpaqueToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	id, ok := s.roomName[in.RoomName]
	var rm *room
	if ok {
		rm = s.rooms[id]
	}
	if rm == nil || !rm.IsActive {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	rm.Participants = append(rm.Participants, participant{
		ID:          uuid.NewString(),
		UserID:      claims.UserID,
		Email:       claims.Email,
		JoinedAt:    time.Now().UTC().Format(time.RFC3339),
		IsActive:    true,
		Permissions: "member",
	})
	out := joinBody{
		ID:              rm.ID,
		Name:            rm.Name,
		Token:           mediaTokenPrefix + token,
		CreatedBy:       rm.CreatedBy,
		IsActive:        rm.IsActive,
		MaxParticipants: rm.MaxParticipants,
		ExpiresAt:       rm.ExpiresAt,
		Settings:        rm.Settings,
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = -1
	}

	s.mu.Lock()
	all := make([]room, 0, len(s.rooms))
	for _, rm := range s.rooms {
		all = append(all, *rm)
	}
	s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	if skip > len(all) {
		skip = len(all)
	}
	page := all[skip:]
	if limit >= 0 && limit < len(page) {
		page = page[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{"rooms": page, "total": len(all)})
}

func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in struct {
		Name            *string       `json:"name"`
		IsActive        *bool         `json:"isActive"`
		MaxParticipants *int          `json:"maxParticipants"`
		Settings        *roomSettings `json:"settings"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	rm, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	if in.Name != nil && *in.Name != rm.Name {
		delete(s.roomName, rm.Name)
		rm.Name = *in.Name
		s.roomName[rm.Name] = rm.ID
	}
	if in.IsActive != nil {
		rm.IsActive = *in.IsActive
	}
	if in.MaxParticipants != nil {
		rm.MaxParticipants = *in.MaxParticipants
	}
	if in.Settings != nil {
		rm.Settings = *in.Settings
	}
	out := *rm
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRoomToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in struct {
		UserID   string `json:"userId"`
		Duration int    `json:"duration"`
	}
	if err := decodeJSON(r, &in); err != nil || in.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	_, ok := s.rooms[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	token, err := internal.NewOpaqueToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": mediaTokenPrefix + token})
}

func (s *Server) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	type adminUser struct {
		ID        string   `json:"id"`
		Email     string   `json:"email"`
		Name      string   `json:"name"`
		Provider  string   `json:"provider"`
		IsActive  bool     `json:"isActive"`
		Accesses  []string `json:"accesses"`
		CreatedAt string   `json:"createdAt"`
	}

	s.mu.Lock()
	users := make([]adminUser, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, adminUser{
			ID:        u.ID,
			Email:     u.Email,
			Name:      u.Name,
			Provider:  u.Provider,
			IsActive:  u.Active,
			Accesses:  u.Accesses,
			CreatedAt: u.CreatedAt.Format(time.RFC3339),
		})
	}
	s.mu.Unlock()
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleUserStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in struct {
		Active *bool `json:"active"`
	}
	if err := decodeJSON(r, &in); err != nil || in.Active == nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	found := false
	s.mu.Lock()
	for _, u := range s.users {
		if u.ID == id {
			u.Active = *in.Active
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "User status updated successfully"})
}

// handleRTC accepts a websocket when access_token is a media credential and holds it open
// until the client goes away.
func (s *Server) handleRTC(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if !strings.HasPrefix(token, mediaTokenPrefix) {
		writeError(w, http.StatusUnauthorized, "invalid media token")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(context.Background())
	<-ctx.Done()
}
