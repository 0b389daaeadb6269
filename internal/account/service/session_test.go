package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyhavenhq/accountd/internal/account/rpcerr"
)

func TestLoginBeforeConfirmation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.registration.Register(ctx, "ada@example.com", "pw", map[string]any{"name": "Ada"})
	require.NoError(t, err)

	_, err = env.session.Login(ctx, "ada@example.com", "pw", nil)
	rpcErr, ok := rpcerr.From(err)
	require.True(t, ok)
	assert.Equal(t, rpcerr.CodeAccountNotActivated, rpcErr.Code)
}

func TestLoginAfterConfirmation(t *testing.T) {
	env := newTestEnv(t)
	env.registerConfirmed(t, "ada@example.com", "pw", map[string]any{"name": "Ada"})

	res, err := env.session.Login(context.Background(), "ada@example.com", "pw", nil)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", res.Email)

	claims, err := env.keys.Verifier.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Subject)
	require.NotNil(t, claims.Admin)
	assert.False(t, *claims.Admin)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.NotNil(t, claims.ExpiresAt)
	assert.NotNil(t, claims.IssuedAt)
}

func TestLoginWrongPasswordIsUnauthorizedNotNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.registerConfirmed(t, "ada@example.com", "pw", map[string]any{"name": "Ada"})

	_, err := env.session.Login(context.Background(), "ada@example.com", "wrong", nil)
	rpcErr, ok := rpcerr.From(err)
	require.True(t, ok)
	assert.Equal(t, rpcerr.CodeUnauthorized, rpcErr.Code)
	assert.Equal(t, "password does not match", rpcErr.Data["reason"])
}

func TestLoginUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.session.Login(context.Background(), "ghost@example.com", "pw", nil)
	rpcErr, ok := rpcerr.From(err)
	require.True(t, ok)
	assert.Equal(t, rpcerr.CodeEntityNotFound, rpcErr.Code)
}

func TestLoginMissingCredentials(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.session.Login(context.Background(), "", "", nil)
	rpcErr, ok := rpcerr.From(err)
	require.True(t, ok)
	assert.Equal(t, rpcerr.CodeUnauthorized, rpcErr.Code)
	assert.Equal(t, "Basic authorization required", rpcErr.Data["reason"])
}

func TestLoginAPIKeyGate(t *testing.T) {
	env := newTestEnv(t)
	env.registerConfirmed(t, "ada@example.com", "pw", map[string]any{"name": "Ada"})
	env.session.APIKey = "shared-secret"

	ctx := context.Background()

	// Header absent.
	_, err := env.session.Login(ctx, "ada@example.com", "pw", nil)
	rpcErr, ok := rpcerr.From(err)
	require.True(t, ok)
	assert.Equal(t, rpcerr.CodeUnauthorized, rpcErr.Code)
	assert.Equal(t, "Expected X-API-KEY header", rpcErr.Data["reason"])

	// Header present but wrong.
	wrong := "nope"
	_, err = env.session.Login(ctx, "ada@example.com", "pw", &wrong)
	rpcErr, ok = rpcerr.From(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid X-API-KEY header", rpcErr.Data["reason"])

	// Correct key passes through to credential verification.
	right := "shared-secret"
	res, err := env.session.Login(ctx, "ada@example.com", "pw", &right)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestLoginClaimsSnapshotAdminAndPermission(t *testing.T) {
	env := newTestEnv(t)
	env.registerConfirmed(t, "root@example.com", "pw", map[string]any{"name": "Root"})
	ctx := context.Background()

	_, err := env.accounts.SetAdmin(ctx, "root@example.com", true)
	require.NoError(t, err)
	_, err = env.accounts.UpdatePermission(ctx, "root@example.com", map[string]any{"billing": true})
	require.NoError(t, err)

	res, err := env.session.Login(ctx, "root@example.com", "pw", nil)
	require.NoError(t, err)

	claims, err := env.keys.Verifier.Verify(res.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, true, claims.Permission["billing"])

	// Revoking admin afterwards does not touch the already-issued token;
	// the claim set is a point-in-time snapshot.
	_, err = env.accounts.SetAdmin(ctx, "root@example.com", false)
	require.NoError(t, err)

	claims, err = env.keys.Verifier.Verify(res.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
}
