package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyhavenhq/accountd/internal/account/store"
	"github.com/keyhavenhq/accountd/pkg/idx"
	"github.com/keyhavenhq/accountd/pkg/jwtx"
)

func testKey(kid string, createdAt time.Time) jwtx.SigningKeyRecord {
	return jwtx.SigningKeyRecord{
		ID:                  idx.New().String(),
		Kid:                 kid,
		Algorithm:           "EdDSA",
		PrivateKeyEncrypted: []byte("encrypted-pem-" + kid),
		CreatedAt:           createdAt,
		ExpiresAt:           createdAt.Add(jwtx.ActiveKeyLifetime),
	}
}

func TestSigningKeysCreateAndList(t *testing.T) {
	ctx := context.Background()
	keys := newTestStore(t).SigningKeys()

	now := time.Now().UTC()
	require.NoError(t, keys.CreateSigningKey(ctx, testKey("key-old", now.Add(-time.Hour))))
	require.NoError(t, keys.CreateSigningKey(ctx, testKey("key-new", now)))

	active, err := keys.ListActiveSigningKeys(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "key-new", active[0].Kid) // newest first
	assert.Equal(t, "key-old", active[1].Kid)
	assert.Equal(t, []byte("encrypted-pem-key-new"), active[0].PrivateKeyEncrypted)
}

func TestSigningKeysDuplicateKid(t *testing.T) {
	ctx := context.Background()
	keys := newTestStore(t).SigningKeys()

	now := time.Now().UTC()
	require.NoError(t, keys.CreateSigningKey(ctx, testKey("key-a", now)))

	err := keys.CreateSigningKey(ctx, testKey("key-a", now))
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestRetireSigningKey(t *testing.T) {
	ctx := context.Background()
	keys := newTestStore(t).SigningKeys()

	now := time.Now().UTC()
	require.NoError(t, keys.CreateSigningKey(ctx, testKey("key-a", now)))
	require.NoError(t, keys.CreateSigningKey(ctx, testKey("key-b", now)))

	grace := 30 * 24 * time.Hour
	require.NoError(t, keys.RetireSigningKey(ctx, "key-a", grace))

	// Retired keys leave the active list but stay visible for verification.
	active, err := keys.ListActiveSigningKeys(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "key-b", active[0].Kid)

	all, err := keys.ListAllSigningKeys(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	var retired *jwtx.SigningKeyRecord
	for i := range all {
		if all[i].Kid == "key-a" {
			retired = &all[i]
		}
	}
	require.NotNil(t, retired)
	require.NotNil(t, retired.RetiredAt)
	assert.WithinDuration(t, time.Now().UTC().Add(grace), retired.ExpiresAt, time.Minute)

	// Retiring again must not reset the grace window.
	err = keys.RetireSigningKey(ctx, "key-a", grace)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRetireUnknownKid(t *testing.T) {
	keys := newTestStore(t).SigningKeys()

	err := keys.RetireSigningKey(context.Background(), "ghost", time.Hour)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteExpiredSigningKeys(t *testing.T) {
	ctx := context.Background()
	keys := newTestStore(t).SigningKeys()

	now := time.Now().UTC()
	expired := testKey("key-expired", now.Add(-3*jwtx.ActiveKeyLifetime))
	expired.ExpiresAt = now.Add(-time.Hour)
	require.NoError(t, keys.CreateSigningKey(ctx, expired))
	require.NoError(t, keys.CreateSigningKey(ctx, testKey("key-live", now)))

	// Expired keys never show up in listings.
	all, err := keys.ListAllSigningKeys(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "key-live", all[0].Kid)

	n, err := keys.DeleteExpiredSigningKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = keys.DeleteExpiredSigningKeys(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
