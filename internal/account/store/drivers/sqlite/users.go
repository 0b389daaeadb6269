package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/keyhavenhq/accountd/internal/account/domain"
	"github.com/keyhavenhq/accountd/internal/account/store"
)

type usersRepo struct {
	db *sql.DB
}

func (r *usersRepo) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *usersRepo) Insert(ctx context.Context, u domain.User) error {
	profile, err := marshalMap(u.Profile)
	if err != nil {
		return err
	}
	permission, err := marshalMap(u.Permission)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			email, password_hash, profile, permission, admin,
			registration_token, date_create, date_register
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Email,
		u.PasswordHash,
		profile,
		permission,
		u.Admin,
		u.RegistrationToken,
		u.DateCreate,
		u.DateRegister,
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

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var (
		u                 domain.User
		profile           string
		permission        string
		registrationToken sql.NullString
		dateRegister      sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT email, password_hash, profile, permission, admin,
		       registration_token, date_create, date_register
		FROM users WHERE email = ?`, email,
	).Scan(
		&u.Email,
		&u.PasswordHash,
		&profile,
		&permission,
		&u.Admin,
		&registrationToken,
		&u.DateCreate,
		&dateRegister,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	if u.Profile, err = unmarshalMap(profile); err != nil {
		return domain.User{}, err
	}
	if u.Permission, err = unmarshalMap(permission); err != nil {
		return domain.User{}, err
	}
	if registrationToken.Valid {
		token := registrationToken.String
		u.RegistrationToken = &token
	}
	if dateRegister.Valid {
		at := dateRegister.Time
		u.DateRegister = &at
	}
	return u, nil
}

// ConfirmRegistration is the single atomic check-and-clear: the token
// comparison, the clear, and the date_register stamp happen in one
// conditional UPDATE. A replay or a wrong token matches zero rows.
func (r *usersRepo) ConfirmRegistration(ctx context.Context, email, token string) (time.Time, error) {
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET registration_token = NULL, date_register = ?
		WHERE email = ? AND registration_token = ?`,
		now, email, token,
	)
	if err != nil {
		return time.Time{}, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return time.Time{}, err
	}
	if n == 0 {
		return time.Time{}, store.ErrNotFound
	}
	return now, nil
}

func (r *usersRepo) UpdateProfile(ctx context.Context, email string, profile map[string]any) error {
	raw, err := marshalMap(profile)
	if err != nil {
		return err
	}
	return r.conditionalUpdate(ctx,
		`UPDATE users SET profile = ? WHERE email = ?`, raw, email)
}

func (r *usersRepo) UpdatePermission(ctx context.Context, email string, permission map[string]any) error {
	raw, err := marshalMap(permission)
	if err != nil {
		return err
	}
	return r.conditionalUpdate(ctx,
		`UPDATE users SET permission = ? WHERE email = ?`, raw, email)
}

func (r *usersRepo) SetAdmin(ctx context.Context, email string, admin bool) error {
	return r.conditionalUpdate(ctx,
		`UPDATE users SET admin = ? WHERE email = ?`, admin, email)
}

func (r *usersRepo) conditionalUpdate(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func (r *usersRepo) ListAll(ctx context.Context) ([]domain.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT email, profile FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserSummary
	for rows.Next() {
		var (
			summary domain.UserSummary
			profile string
		)
		if err := rows.Scan(&summary.Email, &profile); err != nil {
			return nil, err
		}
		if summary.Profile, err = unmarshalMap(profile); err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

func (r *usersRepo) Remove(ctx context.Context, email string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE email = ?`, email)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
