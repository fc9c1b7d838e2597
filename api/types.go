package api

// RoomSettings are the per-room feature switches.
type RoomSettings struct {
	AllowChat       bool `json:"allowChat"`
	AllowVideo      bool `json:"allowVideo"`
	AllowAudio      bool `json:"allowAudio"`
	RequireApproval bool `json:"requireApproval"`
}

type RoomParticipant struct {
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

// Room is a meeting room as returned by create-room and the admin endpoints.
type Room struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	CreatedBy       string            `json:"createdBy"`
	IsActive        bool              `json:"isActive"`
	MaxParticipants int               `json:"maxParticipants"`
	ExpiresAt       string            `json:"expiresAt"`
	Settings        RoomSettings      `json:"settings"`
	Participants    []RoomParticipant `json:"participants"`
}

// JoinRoomResponse carries the media-server token for a joined room.
type JoinRoomResponse struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Token           string       `json:"token"`
	CreatedBy       string       `json:"createdBy"`
	IsActive        bool         `json:"isActive"`
	MaxParticipants int          `json:"maxParticipants"`
	ExpiresAt       string       `json:"expiresAt"`
	Settings        RoomSettings `json:"settings"`
}

// CreateRoomRequest leaves naming and capacity to the backend when fields are zero.
type CreateRoomRequest struct {
	Name            string `json:"name,omitempty"`
	MaxParticipants int    `json:"maxParticipants,omitempty"`
}

// RoomList is one page of the admin room listing.
type RoomList struct {
	Rooms []Room `json:"rooms"`
	Total int    `json:"total"`
}

// RoomPatch updates only the non-nil fields.
type RoomPatch struct {
	Name            *string       `json:"name,omitempty"`
	IsActive        *bool         `json:"isActive,omitempty"`
	MaxParticipants *int          `json:"maxParticipants,omitempty"`
	Settings        *RoomSettings `json:"settings,omitempty"`
}

// GenerateTokenRequest asks for a media token for UserID. Duration is in minutes.
type GenerateTokenRequest struct {
	UserID   string `json:"userId"`
	Duration int    `json:"duration,omitempty"`
}

type RoomToken struct {
	Token string `json:"token"`
}

// AdminUser is an account as listed by the admin endpoints. Accesses may be nil.
type AdminUser struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Provider  string   `json:"provider"`
	IsActive  bool     `json:"isActive"`
	Accesses  []string `json:"accesses"`
	CreatedAt string   `json:"createdAt"`
}
