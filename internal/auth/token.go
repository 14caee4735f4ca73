package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenManager issues signed JWT access tokens for local sessions.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// Claims is what a verified access token asserts.
type Claims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// NewTokenManager creates a manager with the provided secret, issuer, and lifetime.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// TTL returns the token lifetime.
func (t *TokenManager) TTL() time.Duration {
	return t.ttl
}

// Generate issues a signed JWT for the user and returns it with its expiry.
func (t *TokenManager) Generate(userID, email string, now time.Time) (string, time.Time, error) {
	exp := now.Add(t.ttl)
	claims := jwt.MapClaims{
		"iss":   t.issuer,
		"sub":   userID,
		"email": email,
		"aud":   "authenticated",
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, issuer and expiry of an access token.
func (t *TokenManager) Verify(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, err
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("unexpected claims type")
	}
	sub, err := mc.GetSubject()
	if err != nil {
		return Claims{}, err
	}
	exp, err := mc.GetExpirationTime()
	if err != nil {
		return Claims{}, err
	}
	email, _ := mc["email"].(string)

	out := Claims{UserID: sub, Email: email}
	if exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
