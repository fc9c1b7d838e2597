package session

// AuthTokens is the token pair returned by login, register and refresh.
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserProfile is the authenticated user as shown to the application.
type UserProfile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	PictureURL string `json:"pictureUrl,omitempty"`
	IsAdmin    bool   `json:"isAdmin,omitempty"`
}

// Default storage keys, shared with the web front-end layout.
const (
	DefaultTokenKey   = "auth_data"
	DefaultProfileKey = "user_data"
)
