package jwtx

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keyhavenhq/accountd/pkg/cryptox"
)

// Supported signing algorithms.
var (
	AlgorithmEdDSA = jwt.SigningMethodEdDSA.Alg()
	AlgorithmES256 = jwt.SigningMethodES256.Alg()
)

// KeyManager owns the signing keys and the published key set for one
// process. It signs with a randomly selected active key and verifies
// against every key still in the KeySet, so retired keys keep verifying
// until they are removed from the published set.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	algorithm string

	mu      sync.RWMutex
	signers []Signer
}

// KeyManagerOptions configures ephemeral key generation.
type KeyManagerOptions struct {
	// Algorithm specifies which signing algorithm to use: "EdDSA" or "ES256".
	Algorithm string

	// Issuer is the issuer claim (iss) that will be validated in tokens.
	Issuer string

	// NumKeys specifies how many signing keys to generate. Defaults to 3;
	// clamped to [1, 10].
	NumKeys int
}

// NewEphemeralKeyManager creates a KeyManager with keys generated on the fly
// that only exist in memory. Every token becomes invalid when the process
// restarts; use the persistent manager when that matters.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	numKeys := clampNumKeys(opts.NumKeys)
	keyset := NewKeySet()
	signers := make([]Signer, 0, numKeys)

	for i := 0; i < numKeys; i++ {
		kid, err := GenerateKeyID()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate key ID: %w", err)
		}

		signer, _, err := GenerateSigner(opts.Algorithm, kid)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}

		signers = append(signers, signer)
		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add signer %d to keyset: %w", i+1, err)
		}
	}

	return &KeyManager{
		Verifier:  NewVerifier(keyset, opts.Issuer),
		KeySet:    keyset,
		algorithm: opts.Algorithm,
		signers:   signers,
	}, nil
}

// GenerateSigner creates a fresh keypair for the algorithm and wraps it in a
// Signer. The PEM-encoded private key is returned for persistence.
func GenerateSigner(algorithm, kid string) (Signer, []byte, error) {
	var pemBytes []byte
	var err error

	switch algorithm {
	case AlgorithmEdDSA:
		pemBytes, err = cryptox.GenerateEd25519Key()
	case AlgorithmES256:
		pemBytes, err = cryptox.GenerateES256Key()
	default:
		return nil, nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: EdDSA, ES256)", algorithm)
	}
	if err != nil {
		return nil, nil, err
	}

	signer, err := NewSignerFromPEM(algorithm, kid, pemBytes)
	if err != nil {
		return nil, nil, err
	}
	return signer, pemBytes, nil
}

// NewSignerFromPEM creates a signer from PEM-encoded private key data.
func NewSignerFromPEM(algorithm, kid string, pemData []byte) (Signer, error) {
	switch algorithm {
	case AlgorithmEdDSA:
		return NewSignerEdDSA(kid, pemData)
	case AlgorithmES256:
		return NewSignerES256(kid, pemData)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", algorithm)
	}
}

// GenerateKeyID creates a random key identifier with 128 bits of entropy.
func GenerateKeyID() (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("jwtx: failed to generate key ID: %w", err)
	}
	return fmt.Sprintf("accountd-%s", token), nil
}

// Algorithm returns the signing algorithm used for new keys.
func (km *KeyManager) Algorithm() string { return km.algorithm }

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool { return km.KeySet.IsReady() }

// GetSigner returns a randomly selected signer from the active signing keys,
// distributing signing load across keys.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))]
	}
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// AddSigner adds a new active signing key and publishes its public half.
// Safe for runtime key rotation.
func (km *KeyManager) AddSigner(signer Signer) error {
	if signer == nil {
		return fmt.Errorf("jwtx: signer cannot be nil")
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: failed to add signer to keyset: %w", err)
	}
	km.signers = append(km.signers, signer)
	return nil
}

// RetireSignerByKid removes a key from active signing. The key remains in
// the KeySet, so tokens signed under it keep verifying until the key is
// removed from the published set. Refuses to retire the last active key.
func (km *KeyManager) RetireSignerByKid(kid string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if len(km.signers) <= 1 {
		return fmt.Errorf("jwtx: cannot retire the last signing key")
	}

	found := false
	remaining := make([]Signer, 0, len(km.signers)-1)
	for _, signer := range km.signers {
		if signer.KID() == kid {
			found = true
			continue
		}
		remaining = append(remaining, signer)
	}
	if !found {
		return fmt.Errorf("jwtx: signer with kid %q not found", kid)
	}

	km.signers = remaining
	return nil
}

// GetSigners returns a copy of all active signing keys.
func (km *KeyManager) GetSigners() []Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	signers := make([]Signer, len(km.signers))
	copy(signers, km.signers)
	return signers
}

func clampNumKeys(n int) int {
	if n <= 0 {
		return 3
	}
	if n > 10 {
		return 10
	}
	return n
}
