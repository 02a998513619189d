package security

import (
	"context"
	"fmt"
	"log/slog"

	"tenant-rbac/internal/domain"
)

// Administrator role names created by ProvisionTenant.
const (
	TenantAdminRoleName = "Administrator"
	SystemAdminRoleName = "System Administrator"
)

// ProvisionTenantRequest holds the parameters for ProvisionTenant.
type ProvisionTenantRequest struct {
	Name           string
	Description    string
	ServerHostname string
	SystemTenant   bool

	// AdminUsername defaults to AdminEmail.
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// TenantProvisioningService creates a tenant together with its
// administrator and administrator role, and persists all three.
type TenantProvisioningService struct {
	tenants   domain.TenantRepository
	users     domain.UserRepository
	roles     domain.RoleRepository
	tenantSvc *TenantService
	roleSvc   *RoleService
	ids       domain.IDGenerator
	publisher domain.EventPublisher
	logger    *slog.Logger
}

// NewTenantProvisioningService creates a new TenantProvisioningService.
func NewTenantProvisioningService(
	tenants domain.TenantRepository,
	users domain.UserRepository,
	roles domain.RoleRepository,
	tenantSvc *TenantService,
	roleSvc *RoleService,
	ids domain.IDGenerator,
	publisher domain.EventPublisher,
	logger *slog.Logger,
) *TenantProvisioningService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TenantProvisioningService{
		tenants:   tenants,
		users:     users,
		roles:     roles,
		tenantSvc: tenantSvc,
		roleSvc:   roleSvc,
		ids:       ids,
		publisher: publisher,
		logger:    logger,
	}
}

// ProvisionTenant creates an active tenant, registers its administrator and
// assigns them the administrator role. The system tenant's administrator
// receives the whole permission catalog.
func (s *TenantProvisioningService) ProvisionTenant(ctx context.Context, req ProvisionTenantRequest) (domain.Tenant, error) {
	if err := requireSystemPermission(ctx, domain.ProvisionTenant); err != nil {
		return domain.Tenant{}, err
	}
	if req.AdminUsername == "" {
		req.AdminUsername = req.AdminEmail
	}

	id, err := s.ids.NextID()
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("tenant id: %w", err)
	}
	tenant, err := domain.NewTenant(domain.TenantParams{
		ID:             domain.TenantID(id),
		Name:           req.Name,
		Description:    req.Description,
		ServerHostname: req.ServerHostname,
		Active:         true,
		SystemTenant:   req.SystemTenant,
	})
	if err != nil {
		return domain.Tenant{}, err
	}
	if err := s.tenants.Add(ctx, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("add tenant %q: %w", tenant.Name, err)
	}

	if err := s.registerAdministrator(ctx, tenant, req); err != nil {
		return domain.Tenant{}, err
	}
	if err := publish(ctx, s.publisher, domain.NewTenantProvisioned(tenant.ID, tenant.Name)); err != nil {
		return domain.Tenant{}, err
	}
	s.logger.Info("tenant provisioned", "tenant", tenant.ID, "name", tenant.Name, "system", tenant.SystemTenant)
	return tenant, nil
}

func (s *TenantProvisioningService) registerAdministrator(ctx context.Context, tenant domain.Tenant, req ProvisionTenantRequest) error {
	admin, err := s.tenantSvc.RegisterUser(ctx, tenant, req.AdminUsername, req.AdminPassword, domain.IndefiniteEnablement())
	if err != nil {
		return fmt.Errorf("register administrator: %w", err)
	}
	if err := s.users.Add(ctx, admin); err != nil {
		return fmt.Errorf("add administrator %q: %w", admin.Username, err)
	}

	name, desc, perms := TenantAdminRoleName, "The default administrator user for this account.", domain.DefaultTenantAdminPermissions()
	if tenant.SystemTenant {
		name, desc, perms = SystemAdminRoleName, "The default system-wide administrator account. Root.", domain.DefaultSystemAdminPermissions()
	}
	role, err := s.tenantSvc.ProvisionRole(ctx, tenant, name, desc, perms, false)
	if err != nil {
		return fmt.Errorf("provision administrator role: %w", err)
	}
	role, err = s.roleSvc.AssignUser(ctx, role, admin)
	if err != nil {
		return fmt.Errorf("assign administrator role: %w", err)
	}
	if err := s.roles.Add(ctx, role); err != nil {
		return fmt.Errorf("add role %q: %w", role.Name, err)
	}

	return publish(ctx, s.publisher, domain.NewTenantAdministratorRegistered(tenant.ID, tenant.Name, admin.Username, req.AdminEmail))
}
