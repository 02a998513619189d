package security

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-rbac/internal/domain"
	"tenant-rbac/internal/testutil"
)

func roleWith(t *testing.T, id domain.RoleID, name string, perms ...domain.RevocablePermission) domain.Role {
	t.Helper()
	r, err := domain.CreateRole(domain.RoleParams{
		ID: id, TenantID: 1, Name: name, Description: name, Permissions: perms,
	}, domain.GroupID(id+1000))
	require.NoError(t, err)
	return r
}

func plainUser(t *testing.T, perms ...domain.RevocablePermission) domain.User {
	t.Helper()
	u, err := domain.NewUser(domain.UserParams{
		ID: 1, TenantID: 1, Username: "u", Enablement: domain.IndefiniteEnablement(), Permissions: perms,
	})
	require.NoError(t, err)
	return u
}

func entry(perms []domain.RevocablePermission, name string) (domain.RevocablePermission, bool) {
	for _, p := range perms {
		if p.Name() == name {
			return p, true
		}
	}
	return domain.RevocablePermission{}, false
}

func TestEffectivePermissions_RevocationWinsRegardlessOfOrder(t *testing.T) {
	x := domain.ViewTenant
	r1 := roleWith(t, 1, "R1", domain.Grant(x), domain.Revoke(x))
	r2 := roleWith(t, 2, "R2", domain.Grant(x))
	u := plainUser(t)

	orders := [][]domain.Role{{r1, r2}, {r2, r1}}
	for _, roles := range orders {
		got, ok := entry(EffectivePermissions(roles, u), x.Name)
		require.True(t, ok)
		assert.True(t, got.IsRevocation)
	}

	// Revocation listed before the grant within a single role.
	r3 := roleWith(t, 3, "R3", domain.Revoke(x), domain.Grant(x))
	got, ok := entry(EffectivePermissions([]domain.Role{r3}, u), x.Name)
	require.True(t, ok)
	assert.True(t, got.IsRevocation)
}

func TestEffectivePermissions_UserEntryWins(t *testing.T) {
	x := domain.ViewTenant
	revoking := roleWith(t, 1, "Revoking", domain.Revoke(x))
	granting := roleWith(t, 2, "Granting", domain.Grant(x))

	granted, ok := entry(EffectivePermissions([]domain.Role{revoking}, plainUser(t, domain.Grant(x))), x.Name)
	require.True(t, ok)
	assert.False(t, granted.IsRevocation)

	revoked, ok := entry(EffectivePermissions([]domain.Role{granting}, plainUser(t, domain.Revoke(x))), x.Name)
	require.True(t, ok)
	assert.True(t, revoked.IsRevocation)
}

func TestEffectivePermissions_SortedAndDeduplicated(t *testing.T) {
	r1 := roleWith(t, 1, "R1", domain.Grant(domain.ViewUser), domain.Grant(domain.ProvisionRole))
	r2 := roleWith(t, 2, "R2", domain.Grant(domain.ViewUser), domain.Grant(domain.AddUserToGroup))

	got := EffectivePermissions([]domain.Role{r1, r2}, plainUser(t))
	names := make([]string, 0, len(got))
	for _, p := range got {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{domain.PermAddUserToGroup, domain.PermProvisionRole, domain.PermViewUser}, names)
}

func TestAuthorizationService_AcmeScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.role(t, "Admin", false, domain.Grant(domain.ViewTenant))
	support := f.role(t, "Support", false, domain.Revoke(domain.ViewTenant))
	u := f.user(t, "u")

	admin, err := f.roles.AssignUser(ctx, admin, u)
	require.NoError(t, err)
	f.saveRole(t, admin)
	support, err = f.roles.AssignUser(ctx, support, u)
	require.NoError(t, err)
	f.saveRole(t, support)

	roles, err := f.authz.RolesForUser(ctx, u)
	require.NoError(t, err)
	assert.Len(t, roles, 2)

	perms, err := f.authz.PermissionsForUser(ctx, u)
	require.NoError(t, err)
	got, ok := entry(perms, domain.PermViewTenant)
	require.True(t, ok)
	assert.True(t, got.IsRevocation)

	u = u.WithPermission(domain.Grant(domain.ViewTenant))
	perms, err = f.authz.PermissionsForUser(ctx, u)
	require.NoError(t, err)
	got, ok = entry(perms, domain.PermViewTenant)
	require.True(t, ok)
	assert.False(t, got.IsRevocation)
}

func TestAuthorizationService_NestedRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eng := f.group(t, "Engineering")
	bob := f.user(t, "bob")
	eng = f.join(t, eng, bob)

	nesting := f.role(t, "Builders", true, domain.Grant(domain.ViewUser))
	nesting, err := f.roles.AssignGroup(ctx, nesting, eng)
	require.NoError(t, err)
	f.saveRole(t, nesting)

	perms, err := f.authz.PermissionsForUser(ctx, bob)
	require.NoError(t, err)
	got, ok := entry(perms, domain.PermViewUser)
	require.True(t, ok)
	assert.False(t, got.IsRevocation)

	in, err := f.authz.IsUserInRole(ctx, f.tenant.ID, "bob", "Builders")
	require.NoError(t, err)
	assert.True(t, in)
}

func TestAuthorizationService_IsUserInRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.role(t, "Support", false)
	alice := f.user(t, "alice")
	dave := f.disabledUser(t, "dave")
	f.user(t, "outsider")
	r, err := f.roles.AssignUser(ctx, r, alice)
	require.NoError(t, err)
	group, err := f.groups.AddUser(ctx, r.Group(), dave)
	require.NoError(t, err)
	r = r.WithGroup(group)
	f.saveRole(t, r)

	tests := []struct {
		name     string
		username string
		role     string
		want     bool
	}{
		{"member", "alice", "Support", true},
		{"not a member", "outsider", "Support", false},
		{"unknown user", "nobody", "Support", false},
		{"unknown role", "alice", "Nope", false},
		{"disabled member", "dave", "Support", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.authz.IsUserInRole(ctx, f.tenant.ID, tt.username, tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthorizationService_IsUserInRole_Validation(t *testing.T) {
	f := newFixture(t)
	var validationErr *domain.ValidationError

	_, err := f.authz.IsUserInRole(context.Background(), 0, "alice", "Support")
	assert.ErrorAs(t, err, &validationErr)
	_, err = f.authz.IsUserInRole(context.Background(), f.tenant.ID, "", "Support")
	assert.ErrorAs(t, err, &validationErr)
	_, err = f.authz.IsUserInRole(context.Background(), f.tenant.ID, "alice", "")
	assert.ErrorAs(t, err, &validationErr)
}

func TestAuthorizationService_RepositoryFailurePropagates(t *testing.T) {
	boom := errors.New("disk full")
	roles := &testutil.MockRoleRepo{
		RolesForUserFn: func(context.Context, domain.User) ([]domain.Role, error) { return nil, boom },
	}
	svc := NewAuthorizationService(testutil.NewMemoryStore().Users(), roles, nil, nil)

	_, err := svc.PermissionsForUser(context.Background(), plainUser(t))
	assert.ErrorIs(t, err, boom)
}

func TestAuthorizationService_SubjectFor(t *testing.T) {
	f := newFixture(t)
	r := f.role(t, "Viewer", false, domain.Grant(domain.ViewTenant), domain.Grant(domain.ViewUser))
	carol := f.user(t, "carol", domain.Revoke(domain.ViewUser))
	r, err := f.roles.AssignUser(context.Background(), r, carol)
	require.NoError(t, err)
	f.saveRole(t, r)

	ctx := domain.WithSubjectScope(context.Background())
	s, err := f.authz.SubjectFor(ctx, f.tenant, carol)
	require.NoError(t, err)

	bound, ok := domain.SubjectFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, s, bound)
	assert.True(t, s.IsPermitted(domain.ViewTenant))
	assert.False(t, s.IsPermitted(domain.ViewUser))
	assert.Len(t, s.Roles(), 1)

	var required *domain.PermissionRequiredError
	require.ErrorAs(t, s.CheckPermitted(domain.ViewUser), &required)
	assert.Equal(t, domain.PermViewUser, required.Permission)
	assert.Equal(t, "carol", required.Username)
}

func TestAuthorizationService_Check(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.role(t, "Admin", false, domain.Grant(domain.ViewTenant))
	support := f.role(t, "Support", false, domain.Revoke(domain.ViewUser), domain.Grant(domain.ViewUser))
	alice := f.user(t, "alice")
	f.disabledUser(t, "dave")
	for _, r := range []domain.Role{admin, support} {
		assigned, err := f.roles.AssignUser(ctx, r, alice)
		require.NoError(t, err)
		f.saveRole(t, assigned)
	}

	tests := []struct {
		name       string
		username   string
		permission string
		allowed    bool
		effect     Effect
	}{
		{"granted", "alice", domain.PermViewTenant, true, EffectGranted},
		{"revoked", "alice", domain.PermViewUser, false, EffectRevoked},
		{"absent", "alice", domain.PermProvisionTenant, false, EffectAbsent},
		{"disabled", "dave", domain.PermViewTenant, false, EffectDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.authz.Check(ctx, f.tenant.ID, tt.username, tt.permission)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.effect, d.Effect)
		})
	}

	_, err := f.authz.Check(ctx, f.tenant.ID, "alice", "Launch Rockets")
	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = f.authz.Check(ctx, f.tenant.ID, "nobody", domain.PermViewTenant)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
