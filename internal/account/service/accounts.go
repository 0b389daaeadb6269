package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/keyhavenhq/accountd/internal/account/domain"
	"github.com/keyhavenhq/accountd/internal/account/rpcerr"
	"github.com/keyhavenhq/accountd/internal/account/store"
	"github.com/keyhavenhq/accountd/pkg/slogx"
)

// AccountService exposes profile, permission and admin-flag management.
// Authorization decisions belong to the Authorizer; methods here assume the
// caller has already been cleared.
type AccountService struct {
	Store store.Store
}

// ProfileResult is the readProfile/updateProfile reply shape.
type ProfileResult struct {
	Email   string         `json:"email"`
	Profile map[string]any `json:"profile"`
}

// PermissionResult is the readPermission/updatePermission reply shape.
type PermissionResult struct {
	Email      string         `json:"email"`
	Permission map[string]any `json:"permission"`
}

// AdminResult is the setAdmin reply shape.
type AdminResult struct {
	Email string `json:"email"`
	Admin bool   `json:"admin"`
}

func (s *AccountService) ReadProfile(ctx context.Context, email string) (ProfileResult, error) {
	user, err := s.getUser(ctx, email)
	if err != nil {
		return ProfileResult{}, err
	}
	return ProfileResult{Email: user.Email, Profile: user.Profile}, nil
}

// UpdateProfile replaces the profile map. Permitted on unconfirmed accounts.
func (s *AccountService) UpdateProfile(ctx context.Context, email string, profile map[string]any) (ProfileResult, error) {
	err := s.Store.Users().UpdateProfile(ctx, email, profile)
	if errors.Is(err, store.ErrNotFound) {
		return ProfileResult{}, rpcerr.EntityNotFound(map[string]any{"email": email})
	}
	if err != nil {
		return ProfileResult{}, err
	}
	return ProfileResult{Email: email, Profile: profile}, nil
}

func (s *AccountService) ReadPermission(ctx context.Context, email string) (PermissionResult, error) {
	user, err := s.getUser(ctx, email)
	if err != nil {
		return PermissionResult{}, err
	}
	return PermissionResult{Email: user.Email, Permission: user.Permission}, nil
}

func (s *AccountService) UpdatePermission(ctx context.Context, email string, permission map[string]any) (PermissionResult, error) {
	err := s.Store.Users().UpdatePermission(ctx, email, permission)
	if errors.Is(err, store.ErrNotFound) {
		return PermissionResult{}, rpcerr.EntityNotFound(map[string]any{"email": email})
	}
	if err != nil {
		return PermissionResult{}, err
	}

	slogx.FromContext(ctx).Info("permission updated", slog.String("email", email))
	return PermissionResult{Email: email, Permission: permission}, nil
}

func (s *AccountService) SetAdmin(ctx context.Context, email string, admin bool) (AdminResult, error) {
	err := s.Store.Users().SetAdmin(ctx, email, admin)
	if errors.Is(err, store.ErrNotFound) {
		return AdminResult{}, rpcerr.EntityNotFound(map[string]any{"email": email})
	}
	if err != nil {
		return AdminResult{}, err
	}

	slogx.FromContext(ctx).Info("admin flag changed", slog.String("email", email), slog.Bool("admin", admin))
	return AdminResult{Email: email, Admin: admin}, nil
}

func (s *AccountService) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	list, err := s.Store.Users().ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.UserSummary{}
	}
	return list, nil
}

func (s *AccountService) getUser(ctx context.Context, email string) (domain.User, error) {
	user, err := s.Store.Users().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, rpcerr.EntityNotFound(map[string]any{"email": email})
	}
	return user, err
}
