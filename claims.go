package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the read surface shared by decoded tokens and principals
type AuthClaims interface {
	Subject() string
	UserID() int64
	RoleNames() []string
	HasRole(role string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the claim set we sign. Subject carries the account email.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      int64    `json:"userId"`
	Email    string   `json:"email,omitempty"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() int64 {
	return c.UID
}

// RoleNames returns the role names carried by the token
func (c *JWTClaims) RoleNames() []string {
	return append([]string(nil), c.Roles...)
}

// HasRole checks if the token carries role. ROLE_ prefixed names match too.
func (c *JWTClaims) HasRole(role string) bool {
	return hasRole(c.Roles, role)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// Token is the decoded view of a signed token
type Token struct {
	ID        string
	Subject   string
	UserID    int64
	Email     string
	Username  string
	Roles     []string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ValidAt reports whether the token has not expired at now. A token whose
// expiry equals its issue time is never valid.
func (t *Token) ValidAt(now time.Time) bool {
	if t == nil || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(t.ExpiresAt)
}

func tokenFromClaims(c *JWTClaims) *Token {
	return &Token{
		ID:        c.RegisteredClaims.ID,
		Subject:   c.Subject(),
		UserID:    c.UID,
		Email:     c.Email,
		Username:  c.Username,
		Roles:     c.RoleNames(),
		Issuer:    c.RegisteredClaims.Issuer,
		IssuedAt:  c.IssuedAt(),
		ExpiresAt: c.Expires(),
	}
}
