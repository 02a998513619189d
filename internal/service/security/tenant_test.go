package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-rbac/internal/domain"
	"tenant-rbac/internal/testutil"
)

func newTenantService(f *fixture) *TenantService {
	return NewTenantService(f.ids, &testutil.MockHasher{}, f.pub, nil)
}

func TestTenantService_ActivateDeactivate(t *testing.T) {
	f := newFixture(t)
	svc := newTenantService(f)
	ctx := context.Background()

	off, err := svc.Deactivate(ctx, f.tenant)
	require.NoError(t, err)
	assert.False(t, off.Active)
	assert.True(t, f.tenant.Active)

	again, err := svc.Deactivate(ctx, off)
	require.NoError(t, err)
	assert.Equal(t, off, again)

	on, err := svc.Activate(ctx, off)
	require.NoError(t, err)
	assert.True(t, on.Active)

	assert.Equal(t, []string{"TenantDeactivated", "TenantActivated"}, f.pub.Names())
}

func TestTenantService_RequiresSubjectPermission(t *testing.T) {
	f := newFixture(t)
	svc := newTenantService(f)

	denied := subjectCtx(t, f.tenant, domain.Grant(domain.ViewTenant))
	_, err := svc.Deactivate(denied, f.tenant)
	var required *domain.PermissionRequiredError
	require.ErrorAs(t, err, &required)
	assert.Equal(t, domain.PermDeactivateTenant, required.Permission)

	revoked := subjectCtx(t, f.tenant, domain.Revoke(domain.DeactivateTenant))
	_, err = svc.Deactivate(revoked, f.tenant)
	require.ErrorAs(t, err, &required)

	allowed := subjectCtx(t, f.tenant, domain.Grant(domain.DeactivateTenant))
	_, err = svc.Deactivate(allowed, f.tenant)
	require.NoError(t, err)

	emptyScope := domain.WithSubjectScope(context.Background())
	_, err = svc.Deactivate(emptyScope, f.tenant)
	var denial *domain.AccessDeniedError
	assert.ErrorAs(t, err, &denial)
}

func TestTenantService_RejectsSubjectOfOtherTenant(t *testing.T) {
	f := newFixture(t)
	svc := newTenantService(f)
	globex, err := domain.NewTenant(domain.TenantParams{ID: 2, Name: "Globex", Active: true})
	require.NoError(t, err)

	acmeAdmin := subjectCtx(t, f.tenant, domain.AllAsUserPermissions(false)...)
	var denial *domain.AccessDeniedError

	_, err = svc.ProvisionRole(acmeAdmin, globex, "Intruders", "Planted role", []domain.Permission{domain.ViewUser}, false)
	assert.ErrorAs(t, err, &denial)
	_, err = svc.RegisterUser(acmeAdmin, globex, "mallory", "s3cret!", domain.IndefiniteEnablement())
	assert.ErrorAs(t, err, &denial)
	_, err = svc.Deactivate(acmeAdmin, globex)
	assert.ErrorAs(t, err, &denial)
	assert.Empty(t, f.pub.Events)

	r, err := svc.ProvisionRole(acmeAdmin, f.tenant, "Auditors", "Read only access", []domain.Permission{domain.ViewUser}, false)
	require.NoError(t, err)
	assert.Equal(t, f.tenant.ID, r.TenantID)

	system, err := domain.NewTenant(domain.TenantParams{ID: 3, Name: "System", Active: true, SystemTenant: true})
	require.NoError(t, err)
	operator := subjectCtx(t, system, domain.Grant(domain.ProvisionUser))
	u, err := svc.RegisterUser(operator, globex, "hank", "s3cret!", domain.IndefiniteEnablement())
	require.NoError(t, err)
	assert.Equal(t, globex.ID, u.TenantID)
}

func TestTenantService_ProvisionGroup(t *testing.T) {
	f := newFixture(t)
	svc := newTenantService(f)
	ctx := context.Background()

	g, err := svc.ProvisionGroup(ctx, f.tenant, "Engineering", "All engineers")
	require.NoError(t, err)
	assert.Equal(t, "Engineering", g.Name)
	assert.Equal(t, f.tenant.ID, g.TenantID)
	assert.False(t, g.ID.IsZero())
	assert.False(t, g.Internal)
	assert.True(t, f.pub.HasEvent("GroupProvisioned"))

	inactive := f.tenant.WithActive(false)
	_, err = svc.ProvisionGroup(ctx, inactive, "Ops", "")
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestTenantService_ProvisionRole(t *testing.T) {
	f := newFixture(t)
	svc := newTenantService(f)

	r, err := svc.ProvisionRole(context.Background(), f.tenant, "Auditors", "Read only access",
		[]domain.Permission{domain.ViewTenant, domain.ViewUser}, true)
	require.NoError(t, err)
	assert.True(t, r.SupportsNesting)
	assert.Len(t, r.Permissions(), 2)
	for _, p := range r.Permissions() {
		assert.False(t, p.IsRevocation)
	}

	backing := r.Group()
	assert.True(t, backing.Internal)
	assert.True(t, backing.IsRoleBacking())
	assert.Contains(t, backing.Description, "Auditors")
	assert.NotEqual(t, domain.GroupID(r.ID), backing.ID)
	assert.Equal(t, []string{"RoleProvisioned"}, f.pub.Names())
}

func TestTenantService_ProvisionRole_Invalid(t *testing.T) {
	f := newFixture(t)
	svc := newTenantService(f)
	var validationErr *domain.ValidationError

	_, err := svc.ProvisionRole(context.Background(), f.tenant, "", "desc", nil, false)
	assert.ErrorAs(t, err, &validationErr)
	_, err = svc.ProvisionRole(context.Background(), f.tenant, "Name", "", nil, false)
	assert.ErrorAs(t, err, &validationErr)
}

func TestTenantService_RegisterUser(t *testing.T) {
	f := newFixture(t)
	svc := newTenantService(f)

	u, err := svc.RegisterUser(context.Background(), f.tenant, "alice", "s3cret!", domain.IndefiniteEnablement())
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "hashed:s3cret!", u.PasswordHash)
	assert.True(t, u.IsEnabled())
	assert.Empty(t, u.Permissions())
	assert.True(t, f.pub.HasEvent("UserRegistered"))

	_, err = svc.RegisterUser(context.Background(), f.tenant, "bob", "", domain.IndefiniteEnablement())
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}
