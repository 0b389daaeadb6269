package jwtx

import (
	"context"
	"fmt"
	"time"

	"github.com/keyhavenhq/accountd/pkg/cryptox"
	"github.com/keyhavenhq/accountd/pkg/idx"
)

// ActiveKeyLifetime is how long a signing key that is never retired stays in
// the store. It must comfortably outlive the longest session a key can sign,
// otherwise valid tokens would stop verifying before they expire.
const ActiveKeyLifetime = 2 * 365 * 24 * time.Hour

// SigningKeyRecord represents a signing key stored in the backing store.
// This mirrors the store's shape without importing it, keeping jwtx free of
// a dependency on the store package.
type SigningKeyRecord struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time
	ExpiresAt           time.Time
}

// KeyStore defines the minimal interface needed for persistent key management.
type KeyStore interface {
	// ListAllSigningKeys returns all non-expired signing keys, including
	// retired ones still inside their verification grace period.
	ListAllSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// ListActiveSigningKeys returns only active (non-retired) keys for
	// signing operations.
	ListActiveSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// CreateSigningKey stores a new signing key with encrypted private key
	// material.
	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
}

// PersistentKeyManagerOptions configures a KeyManager with database-backed keys.
type PersistentKeyManagerOptions struct {
	// Store provides access to the signing keys table.
	Store KeyStore

	// Cipher encrypts/decrypts private key material at rest.
	Cipher *cryptox.KeyCipher

	// Algorithm specifies the algorithm for NEW keys. Loaded keys use their
	// stored algorithm.
	Algorithm string

	// Issuer is the issuer claim (iss) that will be validated in tokens.
	Issuer string

	// NumKeys is the target number of active signing keys. Defaults to 3.
	NumKeys int
}

// NewPersistentKeyManager creates a KeyManager that loads keys from the
// backing store. Keys survive restarts, so issued tokens stay valid across
// deploys, and rotation works with a verification grace period.
//
// On initialization it loads every stored key into the KeySet (retired keys
// keep verifying), loads active keys for signing, and generates new keys if
// needed to reach the NumKeys target.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("jwtx: Store is required for persistent key manager")
	}
	if opts.Cipher == nil {
		return nil, fmt.Errorf("jwtx: Cipher is required for persistent key manager")
	}
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	numKeys := clampNumKeys(opts.NumKeys)

	allKeys, err := opts.Store.ListAllSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load keys from store: %w", err)
	}
	activeKeys, err := opts.Store.ListActiveSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load active keys: %w", err)
	}

	keyset := NewKeySet()

	// Every stored key joins the published set so tokens signed under
	// retired keys keep verifying through the grace period.
	for _, record := range allKeys {
		signer, err := decryptSigner(opts.Cipher, record)
		if err != nil {
			return nil, err
		}
		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add key %s to keyset: %w", record.Kid, err)
		}
	}

	activeSigners := make([]Signer, 0, len(activeKeys))
	for _, record := range activeKeys {
		signer, err := decryptSigner(opts.Cipher, record)
		if err != nil {
			return nil, err
		}
		activeSigners = append(activeSigners, signer)
	}

	// Top up to the target key count.
	now := time.Now().UTC()
	for len(activeSigners) < numKeys {
		kid, err := GenerateKeyID()
		if err != nil {
			return nil, err
		}

		signer, pemData, err := GenerateSigner(opts.Algorithm, kid)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate new key: %w", err)
		}

		encrypted, err := opts.Cipher.Encrypt(pemData)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to encrypt new key: %w", err)
		}

		record := SigningKeyRecord{
			ID:                  idx.New().String(),
			Kid:                 kid,
			Algorithm:           opts.Algorithm,
			PrivateKeyEncrypted: encrypted,
			CreatedAt:           now,
			ExpiresAt:           now.Add(ActiveKeyLifetime),
		}
		if err := opts.Store.CreateSigningKey(ctx, record); err != nil {
			return nil, fmt.Errorf("jwtx: failed to store new key: %w", err)
		}

		activeSigners = append(activeSigners, signer)
		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add new key to keyset: %w", err)
		}
	}

	return &KeyManager{
		Verifier:  NewVerifier(keyset, opts.Issuer),
		KeySet:    keyset,
		algorithm: opts.Algorithm,
		signers:   activeSigners,
	}, nil
}

func decryptSigner(cipher *cryptox.KeyCipher, record SigningKeyRecord) (Signer, error) {
	pemData, err := cipher.Decrypt(record.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to decrypt key %s: %w", record.Kid, err)
	}
	signer, err := NewSignerFromPEM(record.Algorithm, record.Kid, pemData)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to create signer for key %s: %w", record.Kid, err)
	}
	return signer, nil
}
