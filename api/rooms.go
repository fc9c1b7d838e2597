package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Doer sends authenticated JSON requests. [*gateway.AuthClient] implements it.
type Doer interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Send(ctx context.Context, method, path string, body, out any) error
}

// Rooms covers the endpoints available to every signed-in user.
type Rooms struct {
	c Doer
}

func NewRooms(c Doer) *Rooms {
	return &Rooms{c: c}
}

// CreateRoom calls POST /create-room.
func (r *Rooms) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Room, error) {
	var out Room
	if err := r.c.Send(ctx, http.MethodPost, "/create-room", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinRoom calls POST /join-room and returns the media token for roomName.
func (r *Rooms) JoinRoom(ctx context.Context, roomName string) (*JoinRoomResponse, error) {
	if roomName == "" {
		return nil, errors.New("room name is required")
	}
	var out JoinRoomResponse
	body := map[string]string{"roomName": roomName}
	if err := r.c.Send(ctx, http.MethodPost, "/join-room", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
