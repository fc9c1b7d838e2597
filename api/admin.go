package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const defaultPageSize = 20

// Admin covers the /admin endpoints. The backend answers 403 for non-admin sessions.
type Admin struct {
	c Doer
}

func NewAdmin(c Doer) *Admin {
	return &Admin{c: c}
}

// ListAllRooms returns one page of rooms. A non-positive limit selects the default page
// size of 20; a negative skip is treated as 0.
func (a *Admin) ListAllRooms(ctx context.Context, skip, limit int) (*RoomList, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	var out RoomList
	if err := a.c.Get(ctx, "/admin/rooms", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRooms returns the backend's unpaged room listing.
func (a *Admin) ListRooms(ctx context.Context) (*RoomList, error) {
	var out RoomList
	if err := a.c.Get(ctx, "/admin/rooms", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Admin) GenerateRoomToken(ctx context.Context, roomID string, req GenerateTokenRequest) (*RoomToken, error) {
	if err := checkID("room", roomID); err != nil {
		return nil, err
	}
	var out RoomToken
	if err := a.c.Send(ctx, http.MethodPost, "/admin/rooms/"+roomID+"/token", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Admin) UpdateRoom(ctx context.Context, roomID string, patch RoomPatch) (*Room, error) {
	if err := checkID("room", roomID); err != nil {
		return nil, err
	}
	var out Room
	if err := a.c.Send(ctx, http.MethodPatch, "/admin/rooms/"+roomID, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Admin) ListUsers(ctx context.Context) ([]AdminUser, error) {
	var out struct {
		Users []AdminUser `json:"users"`
	}
	if err := a.c.Get(ctx, "/admin/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// UpdateUserStatus activates or deactivates a user and returns the backend message.
func (a *Admin) UpdateUserStatus(ctx context.Context, userID string, active bool) (string, error) {
	if err := checkID("user", userID); err != nil {
		return "", err
	}
	var out struct {
		Message string `json:"message"`
	}
	body := map[string]bool{"active": active}
	if err := a.c.Send(ctx, http.MethodPut, "/admin/users/"+userID+"/status", body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// checkID rejects ids that would change the request path.
func checkID(kind, id string) error {
	if id == "" || strings.ContainsAny(id, "/?#") {
		return fmt.Errorf("invalid %s id %q", kind, id)
	}
	return nil
}
