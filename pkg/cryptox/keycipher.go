package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// KeyCipher encrypts private key material at rest using AES-256-GCM.
// The AES key is derived from arbitrary secret material with SHA-256, so
// callers can pass a file's contents or an environment value directly.
//
// Ciphertext layout: [nonce][encrypted data + auth tag].
type KeyCipher struct {
	aead cipher.AEAD
}

// NewKeyCipher derives an AES-256 key from the given secret material.
func NewKeyCipher(secret []byte) (*KeyCipher, error) {
	if len(secret) == 0 {
		return nil, errors.New("cryptox: empty key cipher secret")
	}

	sum := sha256.Sum256(secret)
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to create GCM: %w", err)
	}
	return &KeyCipher{aead: aead}, nil
}

// NewEphemeralKeyCipher generates a random secret. Anything encrypted with it
// is unreadable after the process exits; only useful when keys themselves are
// ephemeral.
func NewEphemeralKeyCipher() (*KeyCipher, error) {
	secret, err := randomBytes(32)
	if err != nil {
		return nil, err
	}
	return NewKeyCipher(secret)
}

// Encrypt seals PEM-encoded private key data with a fresh random nonce.
func (c *KeyCipher) Encrypt(pemData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: failed to generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, pemData, nil), nil
}

// Decrypt opens data produced by Encrypt, verifying the auth tag.
func (c *KeyCipher) Decrypt(encrypted []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(encrypted) < nonceSize {
		return nil, errors.New("cryptox: ciphertext too short")
	}
	nonce, ciphertext := encrypted[:nonceSize], encrypted[nonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decryption failed: %w", err)
	}
	return plaintext, nil
}
