package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyhavenhq/accountd/internal/account/rpcerr"
)

func TestRegisterIssuesTokenAndMails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.registration.Register(ctx, "ada@example.com", "pw", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", res.Email)
	assert.NotEmpty(t, res.Token)

	require.Len(t, *env.sent, 1)
	sent := (*env.sent)[0]
	assert.Equal(t, "ada@example.com", sent.To)
	assert.Contains(t, sent.Body, "token="+res.Token)
	assert.Contains(t, sent.Body, "https://accounts.test/confirm/register?")

	// The stored record is pending and never holds the plaintext password.
	user, err := env.store.Users().GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, user.Pending())
	assert.NotEqual(t, "pw", user.PasswordHash)
	assert.Contains(t, user.PasswordHash, "$argon2id$")
}

func TestRegisterValidatesBeforeStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		email     string
		password  string
		profile   map[string]any
		parameter string
	}{
		{"missing email", "", "pw", map[string]any{"a": 1}, "email"},
		{"missing password", "a@x.com", "", map[string]any{"a": 1}, "password"},
		{"empty profile", "a@x.com", "pw", map[string]any{}, "profile"},
		{"nil profile", "a@x.com", "pw", nil, "profile"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.registration.Register(ctx, tc.email, tc.password, tc.profile)
			rpcErr, ok := rpcerr.From(err)
			require.True(t, ok)
			assert.Equal(t, rpcerr.CodeInvalidParams, rpcErr.Code)
			assert.Equal(t, tc.parameter, rpcErr.Data["parameter"])
		})
	}

	// Nothing was inserted and no mail went out.
	assert.Empty(t, *env.sent)
}

func TestRegisterDuplicateLeavesFirstRecordAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.registration.Register(ctx, "ada@example.com", "pw", map[string]any{"name": "Ada"})
	require.NoError(t, err)

	_, err = env.registration.Register(ctx, "ada@example.com", "other", map[string]any{"name": "Impostor"})
	rpcErr, ok := rpcerr.From(err)
	require.True(t, ok)
	assert.Equal(t, rpcerr.CodeEntityDuplicated, rpcErr.Code)
	assert.Equal(t, "ada@example.com", rpcErr.Data["email"])

	// First registration is untouched: same profile, same token still valid.
	user, err := env.store.Users().GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Profile["name"])
	require.NotNil(t, user.RegistrationToken)
	assert.Equal(t, first.Token, *user.RegistrationToken)
}

func TestConfirmRegisterSucceedsExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.registration.Register(ctx, "ada@example.com", "pw", map[string]any{"name": "Ada"})
	require.NoError(t, err)

	confirmed, err := env.registration.ConfirmRegister(ctx, "ada@example.com", res.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", confirmed.Email)
	assert.False(t, confirmed.DateRegister.IsZero())

	// Immediate replay of the same pair fails.
	_, err = env.registration.ConfirmRegister(ctx, "ada@example.com", res.Token)
	rpcErr, ok := rpcerr.From(err)
	require.True(t, ok)
	assert.Equal(t, rpcerr.CodeEntityNotFound, rpcErr.Code)
}

func TestConfirmRegisterAmbiguousFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.registration.Register(ctx, "ada@example.com", "pw", map[string]any{"name": "Ada"})
	require.NoError(t, err)

	// Unknown user and wrong token are indistinguishable.
	_, errUnknown := env.registration.ConfirmRegister(ctx, "ghost@example.com", "whatever")
	_, errWrong := env.registration.ConfirmRegister(ctx, "ada@example.com", "wrong-token")

	for _, err := range []error{errUnknown, errWrong} {
		rpcErr, ok := rpcerr.From(err)
		require.True(t, ok)
		assert.Equal(t, rpcerr.CodeEntityNotFound, rpcErr.Code)
	}
}

func TestCreateAdminAccountIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.registration.CreateAdminAccount(ctx, "root@example.com", "secret"))

	user, err := env.store.Users().GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.True(t, user.Admin)
	assert.False(t, user.Pending())
	require.NotNil(t, user.DateRegister)

	// Re-running bootstrap is a no-op, not a duplicate error.
	require.NoError(t, env.registration.CreateAdminAccount(ctx, "root@example.com", "different"))

	// Login with the original password still works, proving the record
	// was not overwritten.
	_, err = env.session.Login(ctx, "root@example.com", "secret", nil)
	assert.NoError(t, err)
}
