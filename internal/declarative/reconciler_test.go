package declarative

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-rbac/internal/domain"
	"tenant-rbac/internal/service/security"
	"tenant-rbac/internal/testutil"
)

type seedFixture struct {
	store *testutil.MemoryStore
	pub   *testutil.RecordingPublisher
	authz *security.AuthorizationService
	rec   *Reconciler
}

func newSeedFixture(t *testing.T) *seedFixture {
	t.Helper()
	store := testutil.NewMemoryStore()
	pub := &testutil.RecordingPublisher{}
	ids := &testutil.SequenceIDs{Next: 100}
	hasher := &testutil.MockHasher{}

	groups := security.NewGroupService(store.Groups(), pub, nil)
	roles := security.NewRoleService(groups, pub, nil)
	tenants := security.NewTenantService(ids, hasher, pub, nil)
	svc := Services{
		Tenants:      store.Tenants(),
		Users:        store.Users(),
		Groups:       store.Groups(),
		Roles:        store.Roles(),
		Provisioning: security.NewTenantProvisioningService(store.Tenants(), store.Users(), store.Roles(), tenants, roles, ids, pub, nil),
		Tenant:       tenants,
		User:         security.NewUserService(hasher, pub, nil),
		Group:        groups,
		Role:         roles,
	}
	rec := NewReconciler(svc, nil)
	rec.getenv = func(key string) string {
		if key == "BOB_PASSWORD" {
			return "bob-pw"
		}
		return ""
	}
	return &seedFixture{
		store: store,
		pub:   pub,
		authz: security.NewAuthorizationService(store.Users(), store.Roles(), roles, nil),
		rec:   rec,
	}
}

func (f *seedFixture) tenant(t *testing.T) domain.Tenant {
	t.Helper()
	tenant, err := f.store.Tenants().GetByName(context.Background(), "Acme")
	require.NoError(t, err)
	return *tenant
}

func (f *seedFixture) check(t *testing.T, username, permission string) security.Effect {
	t.Helper()
	d, err := f.authz.Check(context.Background(), f.tenant(t).ID, username, permission)
	require.NoError(t, err)
	return d.Effect
}

func TestReconcile_AppliesSeed(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()

	plan, err := f.rec.Reconcile(ctx, validDoc(t), false)
	require.NoError(t, err)
	assert.False(t, plan.DryRun)
	assert.Equal(t, PlanSummary{Creates: 12}, plan.Summary())

	tenant := f.tenant(t)
	assert.True(t, tenant.Active)

	bob, err := f.store.Users().GetByUsername(ctx, tenant.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "hashed:bob-pw", bob.PasswordHash)

	// Engineering ⊂ Acme-All ⊂ Viewer, but Support revokes View Tenant.
	assert.Equal(t, security.EffectRevoked, f.check(t, "alice", domain.PermViewTenant))
	assert.Equal(t, security.EffectGranted, f.check(t, "bob", domain.PermViewTenant))
	assert.Equal(t, security.EffectGranted, f.check(t, "bob", domain.PermViewUser))
	assert.Equal(t, security.EffectAbsent, f.check(t, "alice", domain.PermViewUser))

	inViewer, err := f.authz.IsUserInRole(ctx, tenant.ID, "alice", "Viewer")
	require.NoError(t, err)
	assert.True(t, inViewer)

	admin, err := f.authz.IsUserInRole(ctx, tenant.ID, "admin@acme.test", security.TenantAdminRoleName)
	require.NoError(t, err)
	assert.True(t, admin)

	for _, name := range []string{"TenantProvisioned", "UserRegistered", "GroupProvisioned", "GroupAddedToGroup", "RoleProvisioned", "GroupAssignedToRole"} {
		assert.True(t, f.pub.HasEvent(name), name)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()

	_, err := f.rec.Reconcile(ctx, validDoc(t), false)
	require.NoError(t, err)
	f.pub.Reset()

	plan, err := f.rec.Reconcile(ctx, validDoc(t), false)
	require.NoError(t, err)
	assert.False(t, plan.HasChanges(), "second run should change nothing: %+v", plan.Actions)
	assert.Empty(t, f.pub.Events)
}

func TestReconcile_DryRunWritesNothing(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()

	plan, err := f.rec.Reconcile(ctx, validDoc(t), true)
	require.NoError(t, err)
	assert.True(t, plan.DryRun)
	assert.Equal(t, PlanSummary{Creates: 12}, plan.Summary())
	assert.Equal(t, KindTenant, plan.Actions[0].ResourceKind)

	tenants, err := f.store.Tenants().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tenants)
	assert.Empty(t, f.pub.Events)
}

func TestReconcile_Updates(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()

	_, err := f.rec.Reconcile(ctx, validDoc(t), false)
	require.NoError(t, err)

	doc := validDoc(t)
	doc.Users[1].Permissions = []PermissionSpec{{Name: domain.PermViewUser, Revoke: true}}
	doc.Roles[1].Permissions = append(doc.Roles[1].Permissions, PermissionSpec{Name: domain.PermViewUser})
	doc.Users = append(doc.Users, UserSpec{Username: "carol", Password: SecretSpec{Value: "carol-pw"}})

	dry, err := f.rec.Reconcile(ctx, doc, true)
	require.NoError(t, err)
	assert.Equal(t, PlanSummary{Creates: 1, Updates: 2}, dry.Summary())
	assert.Equal(t, security.EffectGranted, f.check(t, "bob", domain.PermViewUser))

	applied, err := f.rec.Reconcile(ctx, doc, false)
	require.NoError(t, err)
	assert.Equal(t, dry.Summary(), applied.Summary())

	assert.Equal(t, security.EffectRevoked, f.check(t, "bob", domain.PermViewUser))
	assert.Equal(t, security.EffectGranted, f.check(t, "alice", domain.PermViewUser))
}

func TestReconcile_DisableUser(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()

	_, err := f.rec.Reconcile(ctx, validDoc(t), false)
	require.NoError(t, err)

	doc := validDoc(t)
	doc.Users[0].Enablement = &EnablementSpec{Enabled: false}
	plan, err := f.rec.Reconcile(ctx, doc, false)
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, "enabled", plan.Actions[0].Changes[0].Field)

	assert.Equal(t, security.EffectDisabled, f.check(t, "alice", domain.PermViewTenant))
}

func TestReconcile_DeactivatesTenantLast(t *testing.T) {
	f := newSeedFixture(t)
	ctx := context.Background()

	_, err := f.rec.Reconcile(ctx, validDoc(t), false)
	require.NoError(t, err)

	doc := validDoc(t)
	inactive := false
	doc.Tenant.Active = &inactive
	doc.Groups = append(doc.Groups, GroupSpec{Name: "Late"})

	plan, err := f.rec.Reconcile(ctx, doc, false)
	require.NoError(t, err)
	assert.Equal(t, PlanSummary{Creates: 1, Updates: 1}, plan.Summary())
	assert.False(t, f.tenant(t).Active)
	assert.True(t, f.pub.HasEvent("TenantDeactivated"))
}

func TestReconcile_Errors(t *testing.T) {
	t.Run("invalid document", func(t *testing.T) {
		f := newSeedFixture(t)
		doc := validDoc(t)
		doc.Tenant.Name = ""
		_, err := f.rec.Reconcile(context.Background(), doc, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid seed document")
	})

	t.Run("missing environment secret", func(t *testing.T) {
		f := newSeedFixture(t)
		f.rec.getenv = func(string) string { return "" }
		_, err := f.rec.Reconcile(context.Background(), validDoc(t), false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BOB_PASSWORD")
	})
}
