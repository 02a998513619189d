package repository

import (
	"context"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "tenant-rbac/internal/db"
	"tenant-rbac/internal/domain"
)

type repos struct {
	tenants *TenantRepo
	users   *UserRepo
	groups  *GroupRepo
	roles   *RoleRepo
	events  *EventRepo
	tenant  domain.Tenant
	nextID  int64
}

func setupRepos(t *testing.T) *repos {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	r := &repos{
		tenants: NewTenantRepo(writeDB),
		users:   NewUserRepo(writeDB),
		groups:  NewGroupRepo(writeDB),
		roles:   NewRoleRepo(writeDB),
		events:  NewEventRepo(writeDB),
		nextID:  100,
	}
	tenant, err := domain.NewTenant(domain.TenantParams{ID: 1, Name: "Acme", Active: true})
	require.NoError(t, err)
	require.NoError(t, r.tenants.Add(context.Background(), tenant))
	r.tenant = tenant
	return r
}

func (r *repos) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *repos) user(t *testing.T, name string, perms ...domain.RevocablePermission) domain.User {
	t.Helper()
	u, err := domain.NewUser(domain.UserParams{
		ID: domain.UserID(r.id()), TenantID: r.tenant.ID, Username: name,
		Enablement: domain.IndefiniteEnablement(), Permissions: perms,
	})
	require.NoError(t, err)
	require.NoError(t, r.users.Add(context.Background(), u))
	return u
}

func (r *repos) group(t *testing.T, name string, members ...domain.MemberRef) domain.Group {
	t.Helper()
	id := domain.GroupID(r.id())
	params := domain.GroupParams{ID: id, TenantID: r.tenant.ID, Name: name}
	for _, m := range members {
		params.Members = append(params.Members, domain.GroupMember{TenantID: r.tenant.ID, Member: m, ParentGroupID: id})
	}
	g, err := domain.NewGroup(params)
	require.NoError(t, err)
	require.NoError(t, r.groups.Add(context.Background(), g))
	return g
}

func TestGroupRepo_CRUD(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	alice := r.user(t, "alice")
	eng := r.group(t, "Engineering")
	all := r.group(t, "Acme-All", domain.UserRef{ID: alice.ID}, domain.GroupRef{ID: eng.ID})

	found, err := r.groups.GetByID(ctx, r.tenant.ID, all.ID)
	require.NoError(t, err)
	assert.Equal(t, all, *found)
	assert.Equal(t, []domain.GroupID{eng.ID}, found.NestedGroupIDs())

	found, err = r.groups.GetByName(ctx, r.tenant.ID, "Engineering")
	require.NoError(t, err)
	assert.Equal(t, eng.ID, found.ID)

	updated := all.WithoutMember(alice.AsMemberOf(all))
	require.NoError(t, r.groups.Update(ctx, updated))
	found, err = r.groups.GetByID(ctx, r.tenant.ID, all.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, found.Len())

	require.NoError(t, r.groups.Remove(ctx, eng))
	_, err = r.groups.GetByID(ctx, r.tenant.ID, eng.ID)
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)

	// Removing a group drops the memberships that pointed at it.
	found, err = r.groups.GetByID(ctx, r.tenant.ID, all.ID)
	require.NoError(t, err)
	assert.Zero(t, found.Len())
}

func TestGroupRepo_TenantIsolation(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	g := r.group(t, "Engineering")

	_, err := r.groups.GetByID(ctx, 2, g.ID)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGroupRepo_UniqueName(t *testing.T) {
	r := setupRepos(t)
	r.group(t, "Engineering")

	dup, err := domain.NewGroup(domain.GroupParams{ID: 999, TenantID: r.tenant.ID, Name: "Engineering"})
	require.NoError(t, err)
	err = r.groups.Add(context.Background(), dup)
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestGroupRepo_UpdateMissing(t *testing.T) {
	r := setupRepos(t)
	ghost, err := domain.NewGroup(domain.GroupParams{ID: 999, TenantID: r.tenant.ID, Name: "Ghost"})
	require.NoError(t, err)

	err = r.groups.Update(context.Background(), ghost)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGroupRepo_ListExcludesRoleBacking(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()
	r.group(t, "Zeta")
	r.group(t, "Alpha")
	role, err := domain.CreateRole(domain.RoleParams{
		ID: domain.RoleID(r.id()), TenantID: r.tenant.ID, Name: "Support", Description: "support",
	}, domain.GroupID(r.id()))
	require.NoError(t, err)
	require.NoError(t, r.roles.Add(ctx, role))

	groups, err := r.groups.List(ctx, r.tenant.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Alpha", groups[0].Name)
	assert.Equal(t, "Zeta", groups[1].Name)
}

func TestGroupRepo_GroupsForUser(t *testing.T) {
	r := setupRepos(t)
	alice := r.user(t, "alice")
	bob := r.user(t, "bob")
	eng := r.group(t, "Engineering", domain.UserRef{ID: alice.ID})
	r.group(t, "Ops", domain.UserRef{ID: bob.ID})
	r.group(t, "All", domain.GroupRef{ID: eng.ID})

	groups, err := r.groups.GroupsForUser(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Engineering", groups[0].Name)
}
