package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/keyhavenhq/accountd/internal/account/store"
	"github.com/keyhavenhq/accountd/pkg/jwtx"
)

type signingKeysRepo struct {
	db *sql.DB
}

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key jwtx.SigningKeyRecord) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO signing_keys (
			id, kid, algorithm, private_key_encrypted,
			created_at, retired_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.Kid,
		key.Algorithm,
		key.PrivateKeyEncrypted,
		key.CreatedAt,
		key.RetiredAt,
		key.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return store.ErrFailedInsert
	}
	return nil
}

func (r *signingKeysRepo) ListActiveSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	return r.list(ctx, `
		SELECT id, kid, algorithm, private_key_encrypted,
		       created_at, retired_at, expires_at
		FROM signing_keys
		WHERE retired_at IS NULL AND expires_at > ?
		ORDER BY created_at DESC`, time.Now().UTC())
}

func (r *signingKeysRepo) ListAllSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	return r.list(ctx, `
		SELECT id, kid, algorithm, private_key_encrypted,
		       created_at, retired_at, expires_at
		FROM signing_keys
		WHERE expires_at > ?
		ORDER BY created_at DESC`, time.Now().UTC())
}

func (r *signingKeysRepo) list(ctx context.Context, query string, args ...any) ([]jwtx.SigningKeyRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []jwtx.SigningKeyRecord
	for rows.Next() {
		var (
			key       jwtx.SigningKeyRecord
			retiredAt sql.NullTime
		)
		if err := rows.Scan(
			&key.ID,
			&key.Kid,
			&key.Algorithm,
			&key.PrivateKeyEncrypted,
			&key.CreatedAt,
			&retiredAt,
			&key.ExpiresAt,
		); err != nil {
			return nil, err
		}
		if retiredAt.Valid {
			at := retiredAt.Time
			key.RetiredAt = &at
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// RetireSigningKey stamps the key retired and rewrites its expiry to the end
// of the verification grace period. Already-retired keys match zero rows so
// the original grace window cannot be extended by repeated calls.
func (r *signingKeysRepo) RetireSigningKey(ctx context.Context, kid string, gracePeriod time.Duration) error {
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE signing_keys
		SET retired_at = ?, expires_at = ?
		WHERE kid = ? AND retired_at IS NULL`,
		now, now.Add(gracePeriod), kid,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM signing_keys WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
