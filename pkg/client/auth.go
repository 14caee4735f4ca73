package client

import (
	"github.com/propertydex/propertydex-store/internal/auth"
	"github.com/propertydex/propertydex-store/pkg/schema"
)

// SessionData is the data member of every session-returning auth call.
type SessionData struct {
	Session *schema.Session `json:"session"`
}

// Status is the envelope of calls that return no data.
type Status struct {
	Error *Error `json:"error"`
}

// Credentials carries sign-in and sign-up input. Options.Data is the profile metadata used by
// sign-up (full_name, country, avatar_url).
type Credentials struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Options  SignUpExtra `json:"options,omitempty"`
}

// SignUpExtra mirrors the options member of a sign-up call.
type SignUpExtra struct {
	Data map[string]any `json:"data,omitempty"`
}

// AuthHandler is the session surface of the client.
type AuthHandler struct {
	p *auth.Provider
}

// Auth returns the session handler.
func (c *Client) Auth() AuthHandler {
	return AuthHandler{p: c.auth}
}

// GetSession returns the current session, or a null session when signed out.
func (a AuthHandler) GetSession() Result[SessionData] {
	return ok(SessionData{Session: a.p.GetSession()})
}

// SignInWithPassword signs in by email; the password is not checked.
func (a AuthHandler) SignInWithPassword(creds Credentials) Result[SessionData] {
	session, err := a.p.SignInWithPassword(creds.Email, creds.Password)
	if err != nil {
		return fail(SessionData{}, err)
	}
	return ok(SessionData{Session: &session})
}

// SignUp fails with "User already exists" when the email already has a profile.
func (a AuthHandler) SignUp(creds Credentials) Result[SessionData] {
	session, err := a.p.SignUp(creds.Email, creds.Password, creds.Options.Data)
	if err != nil {
		return fail(SessionData{}, err)
	}
	return ok(SessionData{Session: &session})
}

// SignOut clears the current session.
func (a AuthHandler) SignOut() Status {
	if err := a.p.SignOut(); err != nil {
		return Status{Error: &Error{Message: err.Error()}}
	}
	return Status{}
}

// OnAuthStateChange delivers the current state immediately and again after every change.
func (a AuthHandler) OnAuthStateChange(cb func(auth.AuthEvent, *schema.Session)) (unsubscribe func()) {
	return a.p.OnAuthStateChange(cb)
}

// VerifyToken checks an access token issued by this client.
func (a AuthHandler) VerifyToken(token string) (auth.Claims, error) {
	return a.p.Tokens().Verify(token)
}
