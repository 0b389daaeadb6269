package jwtx

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSessionClaimsSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	c := NewSessionClaims(
		"alice@example.com",
		false,
		map[string]any{"reports": "read"},
		365*24*time.Hour,
		"accountd",
		now,
	)

	require.Equal(t, "alice@example.com", c.Subject)
	require.Equal(t, "accountd", c.Issuer)
	require.True(t, c.HasAdmin())
	require.False(t, c.IsAdmin())
	require.Equal(t, now.Unix(), c.IssuedAt.Unix())
	require.Equal(t, now.Add(365*24*time.Hour).Unix(), c.ExpiresAt.Unix())
	require.NotEmpty(t, c.ID)
}

func TestAdminFalseSerializes(t *testing.T) {
	t.Parallel()

	// A false admin claim must still appear on the wire; the authorization
	// engine treats "claim absent" as an invalid token, not as non-admin.
	c := NewSessionClaims("a@x.com", false, nil, time.Hour, "accountd", time.Now().UTC())
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"admin":false`)
}

func TestHasAdminDistinguishesAbsence(t *testing.T) {
	t.Parallel()

	var c Claims
	require.NoError(t, json.Unmarshal([]byte(`{"sub":"a@x.com"}`), &c))
	require.True(t, c.HasSubject())
	require.False(t, c.HasAdmin())
	require.False(t, c.IsAdmin())

	require.NoError(t, json.Unmarshal([]byte(`{"sub":"a@x.com","admin":false}`), &c))
	require.True(t, c.HasAdmin())
	require.False(t, c.IsAdmin())
}

func TestValidateIssuer(t *testing.T) {
	t.Parallel()

	c := NewSessionClaims("a@x.com", false, nil, time.Hour, "accountd", time.Now().UTC())
	require.NoError(t, c.ValidateIssuer(""))
	require.NoError(t, c.ValidateIssuer("accountd"))
	require.ErrorIs(t, c.ValidateIssuer("someone-else"), ErrIssuer)
}

func TestValidateExpiry(t *testing.T) {
	t.Parallel()

	fresh := NewSessionClaims("a@x.com", false, nil, time.Hour, "accountd", time.Now().UTC())
	require.NoError(t, fresh.ValidateExpiry())

	stale := NewSessionClaims("a@x.com", false, nil, time.Hour, "accountd", time.Now().UTC().Add(-2*time.Hour))
	require.ErrorIs(t, stale.ValidateExpiry(), ErrExpired)
}
