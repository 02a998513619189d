package security

import (
	"context"
	"log/slog"

	"tenant-rbac/internal/domain"
)

// UserService changes a user's enablement, credentials and explicit
// permissions. Returned aggregates are not persisted.
type UserService struct {
	hasher    domain.PasswordHasher
	publisher domain.EventPublisher
	logger    *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(hasher domain.PasswordHasher, publisher domain.EventPublisher, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &UserService{hasher: hasher, publisher: publisher, logger: logger}
}

// DefineEnablement replaces the user's enablement.
func (s *UserService) DefineEnablement(ctx context.Context, u domain.User, e domain.Enablement) (domain.User, error) {
	if err := requirePermission(ctx, u.TenantID, domain.ProvisionUser); err != nil {
		return domain.User{}, err
	}
	if e.StartMillis >= e.EndMillis {
		return domain.User{}, domain.ErrValidation("enablement start must be before end")
	}
	next := u.WithEnablement(e)
	if err := publish(ctx, s.publisher, domain.NewUserEnablementChanged(next.TenantID, next.Username, e)); err != nil {
		return domain.User{}, err
	}
	return next, nil
}

// ChangePassword replaces the user's password after verifying current.
func (s *UserService) ChangePassword(ctx context.Context, u domain.User, current, next string) (domain.User, error) {
	if !s.hasher.Verify(current, u.PasswordHash, u.SaltHex) {
		s.logger.Info("password change rejected", "tenant", u.TenantID, "user", u.Username)
		return domain.User{}, domain.ErrAccessDenied("current password does not match")
	}
	hash, salt, err := s.hasher.Hash(u.Username, next)
	if err != nil {
		return domain.User{}, err
	}
	updated := u.WithPassword(hash, salt)
	if err := publish(ctx, s.publisher, domain.NewUserPasswordChanged(updated.TenantID, updated.Username)); err != nil {
		return domain.User{}, err
	}
	return updated, nil
}

// GrantPermission sets an explicit grant of p on the user. It overrides any
// revocation inherited from roles.
func (s *UserService) GrantPermission(ctx context.Context, u domain.User, p domain.Permission) (domain.User, error) {
	return s.setPermission(ctx, u, domain.Grant(p))
}

// RevokePermission sets an explicit revocation of p on the user. It
// overrides any grant inherited from roles.
func (s *UserService) RevokePermission(ctx context.Context, u domain.User, p domain.Permission) (domain.User, error) {
	return s.setPermission(ctx, u, domain.Revoke(p))
}

// ClearPermission drops the explicit entry for p, so roles decide again.
func (s *UserService) ClearPermission(ctx context.Context, u domain.User, p domain.Permission) (domain.User, error) {
	if err := requirePermission(ctx, u.TenantID, domain.ProvisionUser); err != nil {
		return domain.User{}, err
	}
	next := u.WithoutPermission(p.Name)
	if err := publish(ctx, s.publisher, domain.NewUserPermissionChanged(next.TenantID, next.Username, domain.Grant(p), true)); err != nil {
		return domain.User{}, err
	}
	return next, nil
}

func (s *UserService) setPermission(ctx context.Context, u domain.User, rp domain.RevocablePermission) (domain.User, error) {
	if err := requirePermission(ctx, u.TenantID, domain.ProvisionUser); err != nil {
		return domain.User{}, err
	}
	next := u.WithPermission(rp)
	if err := publish(ctx, s.publisher, domain.NewUserPermissionChanged(next.TenantID, next.Username, rp, false)); err != nil {
		return domain.User{}, err
	}
	return next, nil
}
