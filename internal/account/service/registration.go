package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/keyhavenhq/accountd/internal/account/domain"
	"github.com/keyhavenhq/accountd/internal/account/mail"
	"github.com/keyhavenhq/accountd/internal/account/rpcerr"
	"github.com/keyhavenhq/accountd/internal/account/store"
	"github.com/keyhavenhq/accountd/pkg/cryptox"
	"github.com/keyhavenhq/accountd/pkg/slogx"
)

// RegistrationService owns the account creation and confirmation lifecycle.
type RegistrationService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Mailer mail.Mailer

	// ExternalURL is the public base used to build confirmation links,
	// e.g. "https://accounts.example.com".
	ExternalURL string
}

// RegisterResult is returned to the register caller. Token is also delivered
// out-of-band through the mail collaborator.
type RegisterResult struct {
	Email   string         `json:"email"`
	Profile map[string]any `json:"profile"`
	Token   string         `json:"token"`
}

// ConfirmResult reports a finalized registration.
type ConfirmResult struct {
	Email        string    `json:"email"`
	DateRegister time.Time `json:"dateRegister"`
}

// Register creates a pending account and mails its one-time confirmation
// token. Input validation runs before any store access.
func (s *RegistrationService) Register(ctx context.Context, email, password string, profile map[string]any) (RegisterResult, error) {
	l := slogx.FromContext(ctx)

	// 1. Validate inputs.
	if email == "" {
		return RegisterResult{}, rpcerr.MissingParameter("email")
	}
	if password == "" {
		return RegisterResult{}, rpcerr.MissingParameter("password")
	}
	if len(profile) == 0 {
		return RegisterResult{}, rpcerr.InvalidParams(map[string]any{
			"message":   "profile must be a non-empty object",
			"parameter": "profile",
		})
	}

	// 2. Reject duplicates before hashing; the primary key still backs
	// this against races.
	exists, err := s.Store.Users().Exists(ctx, email)
	if err != nil {
		return RegisterResult{}, err
	}
	if exists {
		return RegisterResult{}, rpcerr.EntityDuplicated(map[string]any{"email": email})
	}

	// 3. Hash the password and mint the one-time confirmation token.
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return RegisterResult{}, err
	}
	token := uuid.NewString()

	// 4. Insert the pending record.
	err = s.Store.Users().Insert(ctx, domain.User{
		Email:             email,
		PasswordHash:      hash,
		Profile:           profile,
		Permission:        map[string]any{},
		Admin:             false,
		RegistrationToken: &token,
		DateCreate:        time.Now().UTC(),
	})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return RegisterResult{}, rpcerr.EntityDuplicated(map[string]any{"email": email})
	case errors.Is(err, store.ErrFailedInsert):
		return RegisterResult{}, rpcerr.DBFailInsert(map[string]any{"email": email})
	case err != nil:
		return RegisterResult{}, err
	}

	// 5. Deliver the confirmation link.
	if err := s.Mailer.SendConfirmation(ctx, mail.Confirmation{
		Email:   email,
		Link:    s.confirmationLink(email, token),
		Profile: profile,
	}); err != nil {
		l.Error("failed to send confirmation mail", slog.String("email", email), slog.Any("error", err))
		return RegisterResult{}, err
	}

	l.Info("account registered", slog.String("email", email))
	return RegisterResult{Email: email, Profile: profile, Token: token}, nil
}

// ConfirmRegister finalizes a pending registration. The failure is a single
// ambiguous EntityNotFound covering "no such user", "already confirmed" and
// "wrong token" alike, so the endpoint cannot be used to enumerate accounts.
func (s *RegistrationService) ConfirmRegister(ctx context.Context, email, token string) (ConfirmResult, error) {
	if email == "" {
		return ConfirmResult{}, rpcerr.MissingParameter("email")
	}
	if token == "" {
		return ConfirmResult{}, rpcerr.MissingParameter("token")
	}

	stamp, err := s.Store.Users().ConfirmRegistration(ctx, email, token)
	if errors.Is(err, store.ErrNotFound) {
		return ConfirmResult{}, rpcerr.EntityNotFound(map[string]any{"email": email})
	}
	if err != nil {
		return ConfirmResult{}, err
	}

	slogx.FromContext(ctx).Info("registration confirmed", slog.String("email", email))
	return ConfirmResult{Email: email, DateRegister: stamp}, nil
}

// CreateAdminAccount is the startup bootstrap path: it creates one admin
// account directly in confirmed state. Re-running against an existing
// account is a no-op, never a duplicate error.
func (s *RegistrationService) CreateAdminAccount(ctx context.Context, email, password string) error {
	l := slogx.FromContext(ctx)

	exists, err := s.Store.Users().Exists(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		l.Debug("admin account already present", slog.String("email", email))
		return nil
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.Store.Users().Insert(ctx, domain.User{
		Email:        email,
		PasswordHash: hash,
		Profile:      map[string]any{"name": "Administrator"},
		Permission:   map[string]any{},
		Admin:        true,
		DateCreate:   now,
		DateRegister: &now,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// Concurrent bootstrap; someone else won.
		return nil
	}
	if err != nil {
		return err
	}

	l.Info("admin account bootstrapped", slog.String("email", email))
	return nil
}

func (s *RegistrationService) confirmationLink(email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return s.ExternalURL + "/confirm/register?" + q.Encode()
}
