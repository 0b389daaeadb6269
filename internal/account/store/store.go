package store

import (
	"context"
	"errors"
	"time"

	"github.com/keyhavenhq/accountd/internal/account/domain"
	"github.com/keyhavenhq/accountd/pkg/jwtx"
)

var (
	// ErrNotFound means the conditional operation matched no row. For
	// confirmation this covers "no such user", "already confirmed", and
	// "wrong token" alike; the ambiguity is part of the contract.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate means an insert collided with an existing record.
	ErrDuplicate = errors.New("store: already exists")

	// ErrFailedInsert means the insert passed its precondition but wrote
	// nothing. Surfaced, never silently retried.
	ErrFailedInsert = errors.New("store: insert did not take effect")
)

// Store is the root data access interface. Concrete drivers (sqlite)
// implement this; it exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Users owns the durable account records. Every conditional mutation is a
// single atomic statement against the backing store; existence check and
// mutation never run as two separate steps, so concurrent requests for the
// same email cannot race into lost updates or double confirmation.
type Users interface {
	// Exists reports whether a record exists for the email.
	Exists(ctx context.Context, email string) (bool, error)

	// Insert creates a new record. Returns ErrDuplicate if one already
	// exists for the email (backed by the primary key), ErrFailedInsert if
	// the write reported no effect.
	Insert(ctx context.Context, u domain.User) error

	// GetByEmail returns the full record or ErrNotFound.
	GetByEmail(ctx context.Context, email string) (domain.User, error)

	// ConfirmRegistration atomically clears the registration token and
	// stamps date_register, but only when the stored token equals the
	// supplied one. Succeeds at most once per account; returns ErrNotFound
	// otherwise.
	ConfirmRegistration(ctx context.Context, email, token string) (time.Time, error)

	// UpdateProfile replaces the profile map or returns ErrNotFound.
	// Permitted on unconfirmed accounts.
	UpdateProfile(ctx context.Context, email string, profile map[string]any) error

	// UpdatePermission replaces the permission map or returns ErrNotFound.
	UpdatePermission(ctx context.Context, email string, permission map[string]any) error

	// SetAdmin flips the admin flag or returns ErrNotFound.
	SetAdmin(ctx context.Context, email string, admin bool) error

	// ListAll returns every account's email and profile, ordered by email.
	ListAll(ctx context.Context) ([]domain.UserSummary, error)

	// Remove deletes the record and reports how many rows went away.
	// Administration/test tooling only; not reachable over RPC.
	Remove(ctx context.Context, email string) (int64, error)
}

// SigningKeys persists encrypted token-signing keys so sessions survive
// restarts and rotation can keep a verification grace period.
type SigningKeys interface {
	// CreateSigningKey stores a new key with encrypted private material.
	CreateSigningKey(ctx context.Context, key jwtx.SigningKeyRecord) error

	// ListActiveSigningKeys returns non-retired, non-expired keys, newest
	// first.
	ListActiveSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error)

	// ListAllSigningKeys returns every non-expired key, including retired
	// ones still in their verification grace period, newest first.
	ListAllSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error)

	// RetireSigningKey marks a key retired and extends its expiry by the
	// grace period. Retired keys verify but never sign.
	RetireSigningKey(ctx context.Context, kid string, gracePeriod time.Duration) error

	// DeleteExpiredSigningKeys removes keys past their expires_at.
	// Housekeeping against unbounded table growth.
	DeleteExpiredSigningKeys(ctx context.Context) (int64, error)
}
