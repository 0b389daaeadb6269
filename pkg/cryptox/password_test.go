package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashProducesPHCFormat(t *testing.T) {
	t.Parallel()

	h := NewHasher("")

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"unicode password", "пароль🔒密码"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6)
			require.Equal(t, "argon2id", parts[1])
			require.Equal(t, "v=19", parts[2])
			require.Contains(t, parts[3], "m=")
			require.NotEmpty(t, parts[4])
			require.NotEmpty(t, parts[5])
		})
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	h := NewHasher("")
	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)

	require.NoError(t, h.Verify("correct horse battery staple", hash))
	require.ErrorIs(t, h.Verify("wrong password", hash), ErrPasswordMismatch)
}

func TestHashIsSalted(t *testing.T) {
	t.Parallel()

	h := NewHasher("")
	a, err := h.Hash("same password")
	require.NoError(t, err)
	b, err := h.Hash("same password")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestPepperChangesVerification(t *testing.T) {
	t.Parallel()

	peppered := NewHasher("secret-pepper")
	plain := NewHasher("")

	hash, err := peppered.Hash("pw")
	require.NoError(t, err)

	require.NoError(t, peppered.Verify("pw", hash))
	require.ErrorIs(t, plain.Verify("pw", hash), ErrPasswordMismatch)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	t.Parallel()

	h := NewHasher("")
	for _, bad := range []string{
		"",
		"$argon2id$v=19$m=19456,t=2",
		"$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
	} {
		err := h.Verify("pw", bad)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrPasswordMismatch)
	}
}
