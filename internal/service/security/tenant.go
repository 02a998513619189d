package security

import (
	"context"
	"fmt"
	"log/slog"

	"tenant-rbac/internal/domain"
)

// TenantService changes tenant state and provisions the groups, roles and
// users that live inside a tenant. Returned aggregates are not persisted.
type TenantService struct {
	ids       domain.IDGenerator
	hasher    domain.PasswordHasher
	publisher domain.EventPublisher
	logger    *slog.Logger
}

// NewTenantService creates a new TenantService.
func NewTenantService(ids domain.IDGenerator, hasher domain.PasswordHasher, publisher domain.EventPublisher, logger *slog.Logger) *TenantService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TenantService{ids: ids, hasher: hasher, publisher: publisher, logger: logger}
}

// Activate marks the tenant active. Activating an active tenant is a no-op.
func (s *TenantService) Activate(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	if err := requirePermission(ctx, t.ID, domain.ActivateTenant); err != nil {
		return domain.Tenant{}, err
	}
	if t.Active {
		return t, nil
	}
	next := t.WithActive(true)
	if err := publish(ctx, s.publisher, domain.NewTenantActivated(next.ID)); err != nil {
		return domain.Tenant{}, err
	}
	return next, nil
}

// Deactivate marks the tenant inactive. Deactivating an inactive tenant is
// a no-op.
func (s *TenantService) Deactivate(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	if err := requirePermission(ctx, t.ID, domain.DeactivateTenant); err != nil {
		return domain.Tenant{}, err
	}
	if !t.Active {
		return t, nil
	}
	next := t.WithActive(false)
	if err := publish(ctx, s.publisher, domain.NewTenantDeactivated(next.ID)); err != nil {
		return domain.Tenant{}, err
	}
	return next, nil
}

// ProvisionGroup creates a new empty group in an active tenant.
func (s *TenantService) ProvisionGroup(ctx context.Context, t domain.Tenant, name, description string) (domain.Group, error) {
	if !t.Active {
		return domain.Group{}, domain.ErrValidation("tenant %q is not active", t.Name)
	}
	id, err := s.ids.NextID()
	if err != nil {
		return domain.Group{}, fmt.Errorf("group id: %w", err)
	}
	g, err := domain.NewGroup(domain.GroupParams{
		ID:          domain.GroupID(id),
		TenantID:    t.ID,
		Name:        name,
		Description: description,
	})
	if err != nil {
		return domain.Group{}, err
	}
	if err := publish(ctx, s.publisher, domain.NewGroupProvisioned(t.ID, g.Name)); err != nil {
		return domain.Group{}, err
	}
	return g, nil
}

// ProvisionRole creates a new role in an active tenant granting perms.
func (s *TenantService) ProvisionRole(ctx context.Context, t domain.Tenant, name, description string, perms []domain.Permission, supportsNesting bool) (domain.Role, error) {
	if err := requirePermission(ctx, t.ID, domain.ProvisionRole); err != nil {
		return domain.Role{}, err
	}
	if !t.Active {
		return domain.Role{}, domain.ErrValidation("tenant %q is not active", t.Name)
	}
	roleID, err := s.ids.NextID()
	if err != nil {
		return domain.Role{}, fmt.Errorf("role id: %w", err)
	}
	groupID, err := s.ids.NextID()
	if err != nil {
		return domain.Role{}, fmt.Errorf("role group id: %w", err)
	}
	role, err := domain.CreateRole(domain.RoleParams{
		ID:              domain.RoleID(roleID),
		TenantID:        t.ID,
		Name:            name,
		Description:     description,
		SupportsNesting: supportsNesting,
		Permissions:     domain.AsRevocable(perms, false),
	}, domain.GroupID(groupID))
	if err != nil {
		return domain.Role{}, err
	}
	if err := publish(ctx, s.publisher, domain.NewRoleProvisioned(t.ID, role.Name)); err != nil {
		return domain.Role{}, err
	}
	s.logger.Info("role provisioned", "tenant", t.ID, "role", role.Name, "nesting", supportsNesting)
	return role, nil
}

// RegisterUser creates a user in an active tenant. The password is hashed
// by the PasswordHasher, which also rejects weak passwords.
func (s *TenantService) RegisterUser(ctx context.Context, t domain.Tenant, username, password string, enablement domain.Enablement) (domain.User, error) {
	if err := requirePermission(ctx, t.ID, domain.ProvisionUser); err != nil {
		return domain.User{}, err
	}
	if !t.Active {
		return domain.User{}, domain.ErrValidation("tenant %q is not active", t.Name)
	}
	hash, salt, err := s.hasher.Hash(username, password)
	if err != nil {
		return domain.User{}, err
	}
	id, err := s.ids.NextID()
	if err != nil {
		return domain.User{}, fmt.Errorf("user id: %w", err)
	}
	u, err := domain.NewUser(domain.UserParams{
		ID:           domain.UserID(id),
		TenantID:     t.ID,
		Username:     username,
		PasswordHash: hash,
		SaltHex:      salt,
		Enablement:   enablement,
	})
	if err != nil {
		return domain.User{}, err
	}
	if err := publish(ctx, s.publisher, domain.NewUserRegistered(t.ID, u.Username)); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
