package domain

import "time"

// User is the durable account record, keyed by email. Email is treated as an
// opaque, case-sensitive identifier and is immutable after creation.
//
// A non-nil RegistrationToken means the account is pending email
// confirmation; it is cleared exactly once when the confirmation link is
// followed. Password-reset state is deliberately not modeled.
type User struct {
	Email        string
	PasswordHash string // argon2id encoded, never plaintext

	// Profile is an opaque map owned by the user; non-empty at registration.
	Profile map[string]any

	// Permission is an opaque map managed by admins; defaults to empty.
	Permission map[string]any

	// Admin grants elevated authorization on privileged operations.
	Admin bool

	RegistrationToken *string
	DateCreate        time.Time
	DateRegister      *time.Time // nil until confirmed
}

// Pending reports whether the account still awaits email confirmation.
func (u User) Pending() bool { return u.RegistrationToken != nil }

// UserSummary is the listing projection: identity plus profile, nothing
// credential-adjacent.
type UserSummary struct {
	Email   string         `json:"email"`
	Profile map[string]any `json:"profile"`
}
