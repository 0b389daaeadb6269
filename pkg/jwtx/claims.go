package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default lifetime for session tokens. Sessions are
// long-lived and never revoked server-side; they expire naturally at exp.
const DefaultSessionTTL = 365 * 24 * time.Hour

// Claims is the signed claim set issued at login. The admin flag and the
// permission map are snapshots of the user record at issuance time, not live
// views. Admin is a pointer so verification can distinguish "claim absent"
// from "admin: false".
type Claims struct {
	jwt.RegisteredClaims

	// Admin mirrors the user record's admin flag at issuance.
	Admin *bool `json:"admin,omitempty"`

	// Permission is the user's permission map at issuance.
	Permission map[string]any `json:"permission,omitempty"`
}

// NewSessionClaims builds the claim set for a freshly authenticated session.
func NewSessionClaims(
	subject string,
	admin bool,
	permission map[string]any,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Admin:      &admin,
		Permission: permission,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// HasSubject reports whether the "sub" claim is present.
func (c *Claims) HasSubject() bool { return c.Subject != "" }

// HasAdmin reports whether the "admin" claim is present, true or false.
func (c *Claims) HasAdmin() bool { return c.Admin != nil }

// IsAdmin reports the admin claim value, treating an absent claim as false.
func (c *Claims) IsAdmin() bool { return c.Admin != nil && *c.Admin }

// ValidateIssuer checks the issuer claim against the expected value.
// An empty expected value enforces nothing.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf).
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
