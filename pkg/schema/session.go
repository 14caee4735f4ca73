package schema

// Audience is the only audience issued for local sessions.
const Audience = "authenticated"

// SessionUser is the user identity embedded in a Session.
type SessionUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	Aud          string         `json:"aud"`
}

// Session is the single current-session record.
// ExpiresAt is a Unix timestamp in seconds, zero when the session carries no expiry.
type Session struct {
	User        SessionUser `json:"user"`
	AccessToken string      `json:"access_token"`
	ExpiresAt   int64       `json:"expires_at,omitempty"`
}
