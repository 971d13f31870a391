package escrow

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the identity carried by a validated bearer token
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	IsAdmin() bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the global role
func (c *JWTClaims) Role() string {
	if c.UserRole == "" {
		return RoleUser
	}
	return c.UserRole
}

// IsAdmin reports whether the token grants the admin role
func (c *JWTClaims) IsAdmin() bool {
	return c.Role() == RoleAdmin
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

// ActorFromClaims maps token claims to the principal used by the state machine.
func ActorFromClaims(claims AuthClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{ID: claims.UserID(), Role: claims.Role()}
}
