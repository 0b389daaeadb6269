package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/keyhavenhq/accountd/internal/account/rpcerr"
	"github.com/keyhavenhq/accountd/internal/account/store"
	"github.com/keyhavenhq/accountd/pkg/cryptox"
	"github.com/keyhavenhq/accountd/pkg/jwtx"
	"github.com/keyhavenhq/accountd/pkg/slogx"
)

// SessionService authenticates credentials and issues signed session tokens.
type SessionService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Keys   *jwtx.KeyManager

	Issuer     string
	SessionTTL time.Duration

	// APIKey, when non-empty, gates login behind a static shared secret
	// carried in the X-API-KEY header. Empty disables the gate.
	APIKey string
}

// LoginResult carries the issued session token.
type LoginResult struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// Login verifies credentials and signs a fresh claim set. apiKey is the
// X-API-KEY header value, nil when the header was absent.
func (s *SessionService) Login(ctx context.Context, email, password string, apiKey *string) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	// 1. Coarse pre-filter, independent of per-user credentials.
	if s.APIKey != "" {
		if apiKey == nil {
			return LoginResult{}, rpcerr.Unauthorized(map[string]any{"reason": "Expected X-API-KEY header"})
		}
		if *apiKey != s.APIKey {
			return LoginResult{}, rpcerr.Unauthorized(map[string]any{"reason": "Invalid X-API-KEY header"})
		}
	}

	if email == "" || password == "" {
		return LoginResult{}, rpcerr.Unauthorized(map[string]any{"reason": "Basic authorization required"})
	}

	// 2. Resolve the account. Unknown email is NotFound, not Unauthorized;
	// login deliberately distinguishes existence from credential mismatch.
	user, err := s.Store.Users().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return LoginResult{}, rpcerr.EntityNotFound(map[string]any{"email": email})
	}
	if err != nil {
		return LoginResult{}, err
	}
	if user.Pending() {
		return LoginResult{}, rpcerr.AccountNotActivated(map[string]any{"email": email})
	}

	// 3. Verify the password.
	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Warn("login rejected", slog.String("email", email))
			return LoginResult{}, rpcerr.Unauthorized(map[string]any{"reason": "password does not match"})
		}
		return LoginResult{}, err
	}

	// 4. Sign the session. Admin and permission are snapshots of the record
	// at this moment; later changes ride on the next login.
	ttl := s.SessionTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}
	claims := jwtx.NewSessionClaims(email, user.Admin, user.Permission, ttl, s.Issuer, time.Now().UTC())

	signer := s.Keys.GetSigner()
	if signer == nil {
		return LoginResult{}, errors.New("service: no signing key available")
	}
	token, err := signer.Sign(claims)
	if err != nil {
		return LoginResult{}, err
	}

	l.Info("session issued", slog.String("email", email), slog.String("kid", signer.KID()))
	return LoginResult{Email: email, Token: token}, nil
}
