package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-rbac/internal/domain"
	"tenant-rbac/internal/testutil"
)

func newProvisioning(f *fixture) *TenantProvisioningService {
	return NewTenantProvisioningService(
		f.store.Tenants(), f.store.Users(), f.store.Roles(),
		newTenantService(f), f.roles, f.ids, f.pub, nil,
	)
}

func TestTenantProvisioningService_ProvisionTenant(t *testing.T) {
	f := newFixture(t)
	svc := newProvisioning(f)
	ctx := context.Background()

	tenant, err := svc.ProvisionTenant(ctx, ProvisionTenantRequest{
		Name:          "Globex",
		Description:   "Globex Corporation",
		AdminEmail:    "hank@globex.test",
		AdminPassword: "correct-Horse-battery-9",
	})
	require.NoError(t, err)
	assert.True(t, tenant.Active)
	assert.False(t, tenant.SystemTenant)

	stored, err := f.store.Tenants().GetByName(ctx, "Globex")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, stored.ID)

	admin, err := f.store.Users().GetByUsername(ctx, tenant.ID, "hank@globex.test")
	require.NoError(t, err)

	in, err := f.authz.IsUserInRole(ctx, tenant.ID, admin.Username, TenantAdminRoleName)
	require.NoError(t, err)
	assert.True(t, in)

	perms, err := f.authz.PermissionsForUser(ctx, *admin)
	require.NoError(t, err)
	assert.Len(t, perms, len(domain.DefaultTenantAdminPermissions()))
	_, ok := entry(perms, domain.PermProvisionTenant)
	assert.False(t, ok)

	names := f.pub.Names()
	require.NotEmpty(t, names)
	assert.Equal(t, "TenantProvisioned", names[len(names)-1])
	assert.Contains(t, names, "TenantAdministratorRegistered")
	assert.Contains(t, names, "UserAssignedToRole")
}

func TestTenantProvisioningService_SystemTenant(t *testing.T) {
	f := newFixture(t)
	svc := newProvisioning(f)
	ctx := context.Background()

	tenant, err := svc.ProvisionTenant(ctx, ProvisionTenantRequest{
		Name:          "System",
		SystemTenant:  true,
		AdminUsername: "root",
		AdminEmail:    "root@system.test",
		AdminPassword: "correct-Horse-battery-9",
	})
	require.NoError(t, err)

	role, err := f.store.Roles().GetByName(ctx, tenant.ID, SystemAdminRoleName)
	require.NoError(t, err)
	assert.Len(t, role.Permissions(), len(domain.AllPermissions()))

	decision, err := f.authz.Check(ctx, tenant.ID, "root", domain.PermProvisionTenant)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestTenantProvisioningService_DuplicateName(t *testing.T) {
	f := newFixture(t)
	svc := newProvisioning(f)

	_, err := svc.ProvisionTenant(context.Background(), ProvisionTenantRequest{
		Name: f.tenant.Name, AdminEmail: "x@acme.test", AdminPassword: "pw",
	})
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestTenantProvisioningService_WeakPasswordRejected(t *testing.T) {
	f := newFixture(t)
	hasher := &testutil.MockHasher{
		HashFn: func(string, string) (string, string, error) {
			return "", "", domain.ErrValidation("the password is too weak")
		},
	}
	svc := NewTenantProvisioningService(
		f.store.Tenants(), f.store.Users(), f.store.Roles(),
		NewTenantService(f.ids, hasher, f.pub, nil), f.roles, f.ids, f.pub, nil,
	)

	_, err := svc.ProvisionTenant(context.Background(), ProvisionTenantRequest{
		Name: "Initech", AdminEmail: "bill@initech.test", AdminPassword: "password",
	})
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.False(t, f.pub.HasEvent("TenantProvisioned"))
}

func TestTenantProvisioningService_RequiresSystemSubject(t *testing.T) {
	f := newFixture(t)
	svc := newProvisioning(f)
	req := ProvisionTenantRequest{
		Name:          "Globex",
		AdminEmail:    "hank@globex.test",
		AdminPassword: "correct-Horse-battery-9",
	}

	tenantAdmin := subjectCtx(t, f.tenant, domain.AllAsUserPermissions(false)...)
	_, err := svc.ProvisionTenant(tenantAdmin, req)
	var denial *domain.AccessDeniedError
	require.ErrorAs(t, err, &denial)
	_, err = f.store.Tenants().GetByName(context.Background(), "Globex")
	assert.True(t, isNotFound(err))

	system, err := domain.NewTenant(domain.TenantParams{ID: 2, Name: "System", Active: true, SystemTenant: true})
	require.NoError(t, err)
	operator := subjectCtx(t, system, domain.AllAsUserPermissions(false)...)
	tenant, err := svc.ProvisionTenant(operator, req)
	require.NoError(t, err)
	assert.Equal(t, "Globex", tenant.Name)
}
