package security

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"tenant-rbac/internal/domain"
	"tenant-rbac/internal/testutil"
)

// fixture wires the services to an in-memory store and a recording
// publisher inside a single active tenant.
type fixture struct {
	store  *testutil.MemoryStore
	pub    *testutil.RecordingPublisher
	ids    *testutil.SequenceIDs
	groups *GroupService
	roles  *RoleService
	authz  *AuthorizationService
	tenant domain.Tenant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewMemoryStore()
	pub := &testutil.RecordingPublisher{}
	ids := &testutil.SequenceIDs{Next: 100}

	groups := NewGroupService(store.Groups(), pub, nil)
	roles := NewRoleService(groups, pub, nil)
	authz := NewAuthorizationService(store.Users(), store.Roles(), roles, nil)

	tenant, err := domain.NewTenant(domain.TenantParams{ID: 1, Name: "Acme", Active: true})
	require.NoError(t, err)
	require.NoError(t, store.Tenants().Add(context.Background(), tenant))

	return &fixture{store: store, pub: pub, ids: ids, groups: groups, roles: roles, authz: authz, tenant: tenant}
}

func (f *fixture) nextID(t *testing.T) int64 {
	t.Helper()
	id, err := f.ids.NextID()
	require.NoError(t, err)
	return id
}

// user creates and stores an enabled user.
func (f *fixture) user(t *testing.T, username string, perms ...domain.RevocablePermission) domain.User {
	t.Helper()
	u, err := domain.NewUser(domain.UserParams{
		ID:          domain.UserID(f.nextID(t)),
		TenantID:    f.tenant.ID,
		Username:    username,
		Enablement:  domain.IndefiniteEnablement(),
		Permissions: perms,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Users().Add(context.Background(), u))
	return u
}

// disabledUser creates and stores a user whose enablement flag is off.
func (f *fixture) disabledUser(t *testing.T, username string) domain.User {
	t.Helper()
	u, err := domain.NewUser(domain.UserParams{
		ID:         domain.UserID(f.nextID(t)),
		TenantID:   f.tenant.ID,
		Username:   username,
		Enablement: domain.Enablement{Enabled: false, StartMillis: 0, EndMillis: math.MaxInt64},
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Users().Add(context.Background(), u))
	return u
}

// group creates and stores an empty group.
func (f *fixture) group(t *testing.T, name string) domain.Group {
	t.Helper()
	g, err := domain.NewGroup(domain.GroupParams{
		ID:       domain.GroupID(f.nextID(t)),
		TenantID: f.tenant.ID,
		Name:     name,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Groups().Add(context.Background(), g))
	return g
}

// role creates and stores a role with a fresh backing group.
func (f *fixture) role(t *testing.T, name string, nesting bool, perms ...domain.RevocablePermission) domain.Role {
	t.Helper()
	r, err := domain.CreateRole(domain.RoleParams{
		ID:              domain.RoleID(f.nextID(t)),
		TenantID:        f.tenant.ID,
		Name:            name,
		Description:     name + " role",
		SupportsNesting: nesting,
		Permissions:     perms,
	}, domain.GroupID(f.nextID(t)))
	require.NoError(t, err)
	require.NoError(t, f.store.Roles().Add(context.Background(), r))
	return r
}

func (f *fixture) saveGroup(t *testing.T, g domain.Group) {
	t.Helper()
	require.NoError(t, f.store.Groups().Update(context.Background(), g))
}

func (f *fixture) saveRole(t *testing.T, r domain.Role) {
	t.Helper()
	require.NoError(t, f.store.Roles().Update(context.Background(), r))
}

// nest adds child to parent and persists parent.
func (f *fixture) nest(t *testing.T, parent, child domain.Group) domain.Group {
	t.Helper()
	next, err := f.groups.AddGroup(context.Background(), parent, child)
	require.NoError(t, err)
	f.saveGroup(t, next)
	return next
}

// join adds u to g and persists g.
func (f *fixture) join(t *testing.T, g domain.Group, u domain.User) domain.Group {
	t.Helper()
	next, err := f.groups.AddUser(context.Background(), g, u)
	require.NoError(t, err)
	f.saveGroup(t, next)
	return next
}

// subjectCtx binds a Subject holding perms to a fresh scope.
func subjectCtx(t *testing.T, tenant domain.Tenant, perms ...domain.RevocablePermission) context.Context {
	t.Helper()
	ctx := domain.WithSubjectScope(context.Background())
	admin, err := domain.NewUser(domain.UserParams{
		ID:         9999,
		TenantID:   tenant.ID,
		Username:   "operator",
		Enablement: domain.IndefiniteEnablement(),
	})
	require.NoError(t, err)
	_, err = domain.BuildSubject(ctx, domain.SubjectParams{Tenant: tenant, User: admin, Permissions: perms})
	require.NoError(t, err)
	return ctx
}
