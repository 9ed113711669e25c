package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the fields the backend puts in its access tokens.
type Claims struct {
	Subject   string
	UserID    int
	ExpiresAt time.Time
}

// Expired reports whether the token expiry has passed at now. Tokens
// without an expiry never expire.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

type accessClaims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// ParseClaims decodes an access token without verifying its signature.
// The client never holds the signing key; the backend remains the only
// authority on validity. The result is for display only.
func ParseClaims(token string) (Claims, error) {
	if token == "" {
		return Claims{}, errors.New("empty token")
	}

	var ac accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &ac); err != nil {
		return Claims{}, fmt.Errorf("decoding access token: %w", err)
	}

	c := Claims{Subject: ac.Subject, UserID: ac.UserID}
	if ac.ExpiresAt != nil {
		c.ExpiresAt = ac.ExpiresAt.Time
	}
	return c, nil
}

// TokenClaims decodes the current session token.
func (m *Manager) TokenClaims() (Claims, error) {
	return ParseClaims(m.Token())
}
