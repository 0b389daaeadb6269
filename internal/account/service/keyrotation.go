package service

import (
	"context"
	"fmt"
	"time"

	"github.com/keyhavenhq/accountd/internal/account/store"
	"github.com/keyhavenhq/accountd/pkg/cryptox"
	"github.com/keyhavenhq/accountd/pkg/idx"
	"github.com/keyhavenhq/accountd/pkg/jwtx"
)

// KeyRotationService rotates session-signing keys at runtime. A rotation
// adds a fresh signer and optionally retires the current ones; retired keys
// stop signing immediately but stay in the published key set, so tokens
// signed under them keep verifying until the grace period ends.
//
// In ephemeral mode (Store == nil) everything is in-memory and retired keys
// verify until restart. In persistent mode new keys are encrypted into the
// store and retirement carries a durable grace period.
type KeyRotationService struct {
	Store       store.SigningKeys // nil for ephemeral mode
	Cipher      *cryptox.KeyCipher
	KeyManager  *jwtx.KeyManager
	GracePeriod time.Duration
}

// RotateRequest controls a rotation.
type RotateRequest struct {
	// RetireExisting marks the current active keys retired. When false the
	// new key joins them instead.
	RetireExisting bool
}

// RotateResponse reports the outcome of a rotation.
type RotateResponse struct {
	NewKid      string   `json:"new_kid"`
	RetiredKids []string `json:"retired_kids,omitempty"`
	ActiveKeys  int      `json:"active_keys"`
}

// Rotate generates a new signing key and optionally retires the existing ones.
func (s *KeyRotationService) Rotate(ctx context.Context, req RotateRequest) (*RotateResponse, error) {
	if s.KeyManager == nil {
		return nil, fmt.Errorf("service: KeyManager is required")
	}

	kid, err := jwtx.GenerateKeyID()
	if err != nil {
		return nil, err
	}
	signer, pemData, err := jwtx.GenerateSigner(s.KeyManager.Algorithm(), kid)
	if err != nil {
		return nil, fmt.Errorf("service: generate signing key: %w", err)
	}

	grace := s.GracePeriod
	if grace <= 0 {
		grace = 30 * 24 * time.Hour
	}
	now := time.Now().UTC()

	if s.Store != nil {
		if s.Cipher == nil {
			return nil, fmt.Errorf("service: Cipher is required in persistent mode")
		}
		encrypted, err := s.Cipher.Encrypt(pemData)
		if err != nil {
			return nil, fmt.Errorf("service: encrypt signing key: %w", err)
		}
		err = s.Store.CreateSigningKey(ctx, jwtx.SigningKeyRecord{
			ID:                  idx.New().String(),
			Kid:                 kid,
			Algorithm:           s.KeyManager.Algorithm(),
			PrivateKeyEncrypted: encrypted,
			CreatedAt:           now,
			ExpiresAt:           now.Add(jwtx.ActiveKeyLifetime),
		})
		if err != nil {
			return nil, fmt.Errorf("service: store signing key: %w", err)
		}
	}

	// The new signer joins before any retirement so the manager never sees
	// its last key being retired mid-rotation.
	previous := s.KeyManager.GetSigners()
	if err := s.KeyManager.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("service: add signer: %w", err)
	}

	var retired []string
	if req.RetireExisting {
		for _, current := range previous {
			if current.KID() == kid {
				continue
			}
			if s.Store != nil {
				if err := s.Store.RetireSigningKey(ctx, current.KID(), grace); err != nil {
					return nil, fmt.Errorf("service: retire key %s: %w", current.KID(), err)
				}
			}
			if err := s.KeyManager.RetireSignerByKid(current.KID()); err != nil {
				return nil, fmt.Errorf("service: retire signer %s: %w", current.KID(), err)
			}
			retired = append(retired, current.KID())
		}
	}

	return &RotateResponse{
		NewKid:      kid,
		RetiredKids: retired,
		ActiveKeys:  s.KeyManager.NumSigners(),
	}, nil
}

// RetireKey retires one key without generating a replacement. Refused for
// the last active key; the service must always be able to sign.
func (s *KeyRotationService) RetireKey(ctx context.Context, kid string) error {
	if s.KeyManager == nil {
		return fmt.Errorf("service: KeyManager is required")
	}
	if s.KeyManager.NumSigners() <= 1 {
		return fmt.Errorf("service: cannot retire the last active signing key")
	}

	if s.Store != nil {
		grace := s.GracePeriod
		if grace <= 0 {
			grace = 30 * 24 * time.Hour
		}
		if err := s.Store.RetireSigningKey(ctx, kid, grace); err != nil {
			return fmt.Errorf("service: retire key %s: %w", kid, err)
		}
	}
	return s.KeyManager.RetireSignerByKid(kid)
}
