package security

import (
	"context"
	"fmt"
	"log/slog"

	"tenant-rbac/internal/domain"
)

// Effect is the outcome of resolving one permission for a user.
type Effect string

// Effects reported by Check.
const (
	EffectGranted  Effect = "granted"
	EffectRevoked  Effect = "revoked"
	EffectAbsent   Effect = "absent"
	EffectDisabled Effect = "user_disabled"
)

// Decision is the resolved answer to "may this user exercise this
// permission".
type Decision struct {
	TenantID   domain.TenantID `json:"tenant_id"`
	Username   string          `json:"username"`
	Permission string          `json:"permission"`
	Allowed    bool            `json:"allowed"`
	Effect     Effect          `json:"effect"`
	Roles      []string        `json:"roles"`
}

// AuthorizationService computes roles and effective permissions for users.
type AuthorizationService struct {
	users  domain.UserRepository
	roles  domain.RoleRepository
	roleSv *RoleService
	logger *slog.Logger
}

// NewAuthorizationService creates a new AuthorizationService.
func NewAuthorizationService(
	users domain.UserRepository,
	roles domain.RoleRepository,
	roleService *RoleService,
	logger *slog.Logger,
) *AuthorizationService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuthorizationService{users: users, roles: roles, roleSv: roleService, logger: logger}
}

// RolesForUser returns the roles the user holds.
func (s *AuthorizationService) RolesForUser(ctx context.Context, user domain.User) ([]domain.Role, error) {
	roles, err := s.roles.RolesForUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("roles for user %q: %w", user.Username, err)
	}
	return roles, nil
}

// PermissionsForUser returns the user's effective permissions ordered by
// name.
func (s *AuthorizationService) PermissionsForUser(ctx context.Context, user domain.User) ([]domain.RevocablePermission, error) {
	roles, err := s.RolesForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return EffectivePermissions(roles, user), nil
}

// EffectivePermissions folds the permissions of roles by name, keeping a
// revocation over any grant of the same name regardless of order, then
// overlays the user's explicit entries, which always win.
//
// Roles reached through nested groups contribute their entries flat; a
// revocation in one role does not propagate along the nesting beyond this
// name-collision rule.
func EffectivePermissions(roles []domain.Role, user domain.User) []domain.RevocablePermission {
	effective := make(domain.PermissionSet)
	for _, role := range roles {
		for _, p := range role.Permissions() {
			if stored, ok := effective[p.Name()]; ok && stored.IsRevocation && !p.IsRevocation {
				continue
			}
			effective[p.Name()] = p
		}
	}
	for _, p := range user.Permissions() {
		effective[p.Name()] = p
	}
	return effective.Values()
}

// IsUserInRole looks up the user by name and reports whether they hold the
// named role. A missing user is not an error.
func (s *AuthorizationService) IsUserInRole(ctx context.Context, tenantID domain.TenantID, username, roleName string) (bool, error) {
	if tenantID.IsZero() {
		return false, domain.ErrValidation("tenant id is required")
	}
	if username == "" {
		return false, domain.ErrValidation("username is required")
	}
	if roleName == "" {
		return false, domain.ErrValidation("role name is required")
	}
	user, err := s.users.GetByUsername(ctx, tenantID, username)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("lookup user %q: %w", username, err)
	}
	return s.IsUserInRoleFor(ctx, *user, roleName)
}

// IsUserInRoleFor reports whether user holds the named role. Disabled users
// and unknown roles yield false.
func (s *AuthorizationService) IsUserInRoleFor(ctx context.Context, user domain.User, roleName string) (bool, error) {
	if roleName == "" {
		return false, domain.ErrValidation("role name is required")
	}
	if !user.IsEnabled() {
		return false, nil
	}
	role, err := s.roles.GetByName(ctx, user.TenantID, roleName)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("lookup role %q: %w", roleName, err)
	}
	return s.roleSv.IsInRole(ctx, *role, user, true)
}

// SubjectFor resolves the user's roles and permissions and binds the
// resulting Subject into ctx's scope.
func (s *AuthorizationService) SubjectFor(ctx context.Context, tenant domain.Tenant, user domain.User) (*domain.Subject, error) {
	roles, err := s.RolesForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return domain.BuildSubject(ctx, domain.SubjectParams{
		Tenant:      tenant,
		User:        user,
		Roles:       roles,
		Permissions: EffectivePermissions(roles, user),
	})
}

// Check resolves one permission for a user and explains the outcome.
func (s *AuthorizationService) Check(ctx context.Context, tenantID domain.TenantID, username, permissionName string) (Decision, error) {
	perm, ok := domain.PermissionByName(permissionName)
	if !ok {
		return Decision{}, domain.ErrValidation("unknown permission %q", permissionName)
	}
	user, err := s.users.GetByUsername(ctx, tenantID, username)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{TenantID: tenantID, Username: username, Permission: perm.Name, Roles: []string{}}
	if !user.IsEnabled() {
		d.Effect = EffectDisabled
		s.logger.Info("permission denied", "tenant", tenantID, "user", username, "permission", perm.Name, "effect", d.Effect)
		return d, nil
	}

	roles, err := s.RolesForUser(ctx, *user)
	if err != nil {
		return Decision{}, err
	}
	for _, r := range roles {
		d.Roles = append(d.Roles, r.Name)
	}

	d.Effect = EffectAbsent
	for _, p := range EffectivePermissions(roles, *user) {
		if p.Name() != perm.Name {
			continue
		}
		if p.IsRevocation {
			d.Effect = EffectRevoked
		} else {
			d.Effect = EffectGranted
			d.Allowed = true
		}
		break
	}
	if !d.Allowed {
		s.logger.Info("permission denied", "tenant", tenantID, "user", username, "permission", perm.Name, "effect", d.Effect)
	}
	return d, nil
}
