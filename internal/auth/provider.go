// Package auth is the local session provider: sign-up, sign-in, sign-out and session-change
// subscriptions over the shared store. Passwords are accepted but never checked.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/propertydex/propertydex-store/internal/ids"
	"github.com/propertydex/propertydex-store/internal/notify"
	"github.com/propertydex/propertydex-store/internal/store"
	"github.com/propertydex/propertydex-store/pkg/schema"
)

var (
	// ErrUserExists is returned by SignUp when the email already has a profile.
	ErrUserExists = errors.New("User already exists")
	// ErrEmailRequired is returned when no email is supplied.
	ErrEmailRequired = errors.New("Email is required")
)

// ID prefixes for users minted by the provider.
const (
	UserPrefix     = "user-"
	DemoUserPrefix = "demo-user-"
)

// AuthEvent names a session transition.
type AuthEvent string

const (
	SignedIn  AuthEvent = "SIGNED_IN"
	SignedOut AuthEvent = "SIGNED_OUT"
)

// Provider manages the single current session kept in the store.
type Provider struct {
	store  *store.Store
	bus    *notify.Bus
	tokens *TokenManager
	now    func() time.Time
	logger *slog.Logger
}

// NewProvider wires a provider. The store must write through a storage watched by bus so that
// every write reaches OnAuthStateChange subscribers.
func NewProvider(st *store.Store, bus *notify.Bus, tokens *TokenManager, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:  st,
		bus:    bus,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		logger: logger,
	}
}

// Tokens exposes the provider's token manager.
func (p *Provider) Tokens() *TokenManager {
	return p.tokens
}

// GetSession returns the current session or nil when signed out.
func (p *Provider) GetSession() *schema.Session {
	return p.store.ReadSession()
}

// SignInWithPassword starts a session for email. The password is ignored. An email without a
// profile gets a demo session that is not backed by any profile row.
func (p *Provider) SignInWithPassword(email, password string) (schema.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return schema.Session{}, ErrEmailRequired
	}

	snap, err := p.store.ReadStrict()
	if err != nil {
		return schema.Session{}, fmt.Errorf("look up profile: %w", err)
	}

	user := schema.SessionUser{Email: email, Aud: schema.Audience}
	if profile, ok := findProfile(snap.Profiles, email); ok {
		user.ID = profile.ID
		user.Email = profile.Email
		user.UserMetadata = map[string]any{"full_name": profile.FullName}
	} else {
		user.ID = ids.New(DemoUserPrefix)
	}

	now := p.now()
	token, exp, err := p.tokens.Generate(user.ID, user.Email, now)
	if err != nil {
		return schema.Session{}, err
	}
	session := schema.Session{User: user, AccessToken: token, ExpiresAt: exp.Unix()}
	if err := p.store.WriteSession(session); err != nil {
		return schema.Session{}, err
	}
	p.logger.Info("signed in", "user_id", user.ID, "demo", user.UserMetadata == nil)
	return session, nil
}

// SignUp creates a profile and role for email and signs the new user in.
// metadata may carry full_name, country and avatar_url.
func (p *Provider) SignUp(email, password string, metadata map[string]any) (schema.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return schema.Session{}, ErrEmailRequired
	}

	now := p.now()
	userID := ids.New(UserPrefix)
	// The duplicate check and the insert share one Update so two sign-ups cannot both pass it.
	err := p.store.Update(func(snap store.Snapshot) (store.Snapshot, error) {
		if _, ok := findProfile(snap.Profiles, email); ok {
			return snap, ErrUserExists
		}
		snap.Profiles = append(snap.Profiles, schema.UserProfile{
			ID:          userID,
			Email:       email,
			FullName:    metaString(metadata, "full_name"),
			Country:     metaString(metadata, "country"),
			KYCVerified: false,
			AvatarURL:   metaString(metadata, "avatar_url"),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		snap.Roles = append(snap.Roles, schema.UserRole{
			UserID:              userID,
			Role:                schema.RoleUser,
			KYCStatus:           schema.KYCPending,
			AccreditationStatus: schema.AccreditationNone,
			UpdatedAt:           now,
		})
		return snap, nil
	})
	if errors.Is(err, ErrUserExists) {
		return schema.Session{}, ErrUserExists
	}
	if err != nil {
		return schema.Session{}, fmt.Errorf("create user: %w", err)
	}

	token, _, err := p.tokens.Generate(userID, email, now)
	if err != nil {
		return schema.Session{}, err
	}
	// Sign-up sessions carry no expires_at.
	session := schema.Session{
		User:        schema.SessionUser{ID: userID, Email: email, UserMetadata: metadata, Aud: schema.Audience},
		AccessToken: token,
	}
	if err := p.store.WriteSession(session); err != nil {
		return schema.Session{}, err
	}
	p.logger.Info("signed up", "user_id", userID)
	return session, nil
}

// SignOut clears the current session.
func (p *Provider) SignOut() error {
	return p.store.ClearSession()
}

// OnAuthStateChange calls cb immediately with the current state, then again after every write
// announced on the bus. The returned function stops delivery.
func (p *Provider) OnAuthStateChange(cb func(AuthEvent, *schema.Session)) (unsubscribe func()) {
	emit := func() {
		if s := p.store.ReadSession(); s != nil {
			cb(SignedIn, s)
			return
		}
		cb(SignedOut, nil)
	}
	emit()
	return p.bus.Subscribe(func(notify.Event) { emit() })
}

func findProfile(profiles []schema.UserProfile, email string) (schema.UserProfile, bool) {
	for _, prof := range profiles {
		if prof.Email == email {
			return prof, true
		}
	}
	return schema.UserProfile{}, false
}

func metaString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	s, _ := metadata[key].(string)
	return s
}
