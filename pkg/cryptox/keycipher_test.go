package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyCipherRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := NewKeyCipher([]byte("master secret"))
	require.NoError(t, err)

	pemData, err := GenerateEd25519Key()
	require.NoError(t, err)

	encrypted, err := c.Encrypt(pemData)
	require.NoError(t, err)
	require.NotEqual(t, pemData, encrypted)

	decrypted, err := c.Decrypt(encrypted)
	require.NoError(t, err)
	require.Equal(t, pemData, decrypted)
}

func TestKeyCipherNonceIsRandom(t *testing.T) {
	t.Parallel()

	c, err := NewKeyCipher([]byte("master secret"))
	require.NoError(t, err)

	a, err := c.Encrypt([]byte("same plaintext"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same plaintext"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestKeyCipherRejectsTamperedCiphertext(t *testing.T) {
	t.Parallel()

	c, err := NewKeyCipher([]byte("master secret"))
	require.NoError(t, err)

	encrypted, err := c.Encrypt([]byte("key material"))
	require.NoError(t, err)

	encrypted[len(encrypted)-1] ^= 0xff
	_, err = c.Decrypt(encrypted)
	require.Error(t, err)
}

func TestKeyCipherRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	a, err := NewKeyCipher([]byte("secret a"))
	require.NoError(t, err)
	b, err := NewKeyCipher([]byte("secret b"))
	require.NoError(t, err)

	encrypted, err := a.Encrypt([]byte("key material"))
	require.NoError(t, err)

	_, err = b.Decrypt(encrypted)
	require.Error(t, err)
}

func TestKeyCipherRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewKeyCipher(nil)
	require.Error(t, err)

	_, err = NewEphemeralKeyCipher()
	require.NoError(t, err)
}
