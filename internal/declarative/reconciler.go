package declarative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"tenant-rbac/internal/domain"
	"tenant-rbac/internal/service/security"
)

// Services bundles the repositories and services a Reconciler drives.
type Services struct {
	Tenants domain.TenantRepository
	Users   domain.UserRepository
	Groups  domain.GroupRepository
	Roles   domain.RoleRepository

	Provisioning *security.TenantProvisioningService
	Tenant       *security.TenantService
	User         *security.UserService
	Group        *security.GroupService
	Role         *security.RoleService
}

// Reconciler brings a tenant in line with a TenantSeedDoc. It only ever
// adds: resources and memberships missing from the document are left in
// place.
type Reconciler struct {
	svc    Services
	getenv func(string) string
	logger *slog.Logger
}

// NewReconciler creates a Reconciler. Secrets named by from_env are read
// from the process environment.
func NewReconciler(svc Services, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{svc: svc, getenv: os.Getenv, logger: logger}
}

// Reconcile validates doc and applies it. With dryRun set nothing is
// written and the returned Plan lists what would change.
func (r *Reconciler) Reconcile(ctx context.Context, doc *TenantSeedDoc, dryRun bool) (*Plan, error) {
	if errs := Validate(doc); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("invalid seed document: %w", errors.Join(joined...))
	}

	run := &reconcileRun{
		r:      r,
		doc:    doc,
		dry:    dryRun,
		plan:   &Plan{Tenant: doc.Tenant.Name, DryRun: dryRun},
		users:  make(map[string]*domain.User),
		groups: make(map[string]*domain.Group),
		roles:  make(map[string]*domain.Role),
	}
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"tenant", run.tenantStep},
		{"users", run.usersStep},
		{"groups", run.groupsStep},
		{"group members", run.membersStep},
		{"roles", run.rolesStep},
		{"role assignments", run.assignmentsStep},
		{"tenant state", run.deactivateStep},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return nil, fmt.Errorf("seed %s: %w", s.name, err)
		}
	}
	run.plan.SortActions()

	s := run.plan.Summary()
	r.logger.Info("tenant seed reconciled",
		"tenant", doc.Tenant.Name, "dry_run", dryRun, "creates", s.Creates, "updates", s.Updates)
	return run.plan, nil
}

func (r *Reconciler) secret(s SecretSpec) (string, error) {
	if s.FromEnv != "" {
		v := r.getenv(s.FromEnv)
		if v == "" {
			return "", fmt.Errorf("environment variable %s is empty", s.FromEnv)
		}
		return v, nil
	}
	return s.Value, nil
}

// reconcileRun holds the state of one Reconcile call. Cached aggregates
// are nil when they do not exist yet, which only happens in a dry run.
type reconcileRun struct {
	r      *Reconciler
	doc    *TenantSeedDoc
	dry    bool
	plan   *Plan
	tenant *domain.Tenant
	users  map[string]*domain.User
	groups map[string]*domain.Group
	roles  map[string]*domain.Role
}

func isNotFound(err error) bool {
	var notFound *domain.NotFoundError
	return errors.As(err, &notFound)
}

func (run *reconcileRun) tenantStep(ctx context.Context) error {
	spec := run.doc.Tenant
	t, err := run.r.svc.Tenants.GetByName(ctx, spec.Name)
	switch {
	case isNotFound(err):
		run.plan.add(Action{
			Operation:    OpCreate,
			ResourceKind: KindTenant,
			ResourceName: spec.Name,
			Desired:      map[string]any{"system": spec.System, "admin": adminUsername(spec.Admin)},
		})
		if run.dry {
			return nil
		}
		password, err := run.r.secret(spec.Admin.Password)
		if err != nil {
			return fmt.Errorf("admin password: %w", err)
		}
		created, err := run.r.svc.Provisioning.ProvisionTenant(ctx, security.ProvisionTenantRequest{
			Name:           spec.Name,
			Description:    spec.Description,
			ServerHostname: spec.ServerHostname,
			SystemTenant:   spec.System,
			AdminUsername:  spec.Admin.Username,
			AdminEmail:     spec.Admin.Email,
			AdminPassword:  password,
		})
		if err != nil {
			return err
		}
		run.tenant = &created
		return nil
	case err != nil:
		return err
	}

	run.tenant = t
	if spec.Active != nil && *spec.Active && !t.Active {
		run.plan.add(Action{
			Operation:    OpUpdate,
			ResourceKind: KindTenant,
			ResourceName: spec.Name,
			Changes:      []FieldDiff{{Field: "active", OldValue: "false", NewValue: "true"}},
		})
		if run.dry {
			return nil
		}
		next, err := run.r.svc.Tenant.Activate(ctx, *t)
		if err != nil {
			return err
		}
		if err := run.r.svc.Tenants.Update(ctx, next); err != nil {
			return err
		}
		run.tenant = &next
	}
	return nil
}

// deactivateStep runs last since provisioning needs an active tenant.
func (run *reconcileRun) deactivateStep(ctx context.Context) error {
	spec := run.doc.Tenant
	if spec.Active == nil || *spec.Active || run.tenant == nil || !run.tenant.Active {
		return nil
	}
	run.plan.add(Action{
		Operation:    OpUpdate,
		ResourceKind: KindTenant,
		ResourceName: spec.Name,
		Changes:      []FieldDiff{{Field: "active", OldValue: "true", NewValue: "false"}},
	})
	if run.dry {
		return nil
	}
	next, err := run.r.svc.Tenant.Deactivate(ctx, *run.tenant)
	if err != nil {
		return err
	}
	if err := run.r.svc.Tenants.Update(ctx, next); err != nil {
		return err
	}
	run.tenant = &next
	return nil
}

func (run *reconcileRun) lookupUser(ctx context.Context, name string) (*domain.User, error) {
	if u, ok := run.users[name]; ok {
		return u, nil
	}
	if run.tenant == nil {
		return nil, nil
	}
	u, err := run.r.svc.Users.GetByUsername(ctx, run.tenant.ID, name)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.users[name] = u
	return u, nil
}

func (run *reconcileRun) usersStep(ctx context.Context) error {
	for _, spec := range run.doc.Users {
		if err := run.reconcileUser(ctx, spec); err != nil {
			return fmt.Errorf("user %q: %w", spec.Username, err)
		}
	}
	return nil
}

func (run *reconcileRun) reconcileUser(ctx context.Context, spec UserSpec) error {
	u, err := run.lookupUser(ctx, spec.Username)
	if err != nil {
		return err
	}

	if u == nil {
		enablement := domain.IndefiniteEnablement()
		if spec.Enablement != nil {
			if enablement, err = spec.Enablement.toDomain(); err != nil {
				return err
			}
		}
		run.plan.add(Action{
			Operation:    OpCreate,
			ResourceKind: KindUser,
			ResourceName: spec.Username,
			Desired: map[string]any{
				"enabled":     enablement.Enabled,
				"permissions": permissionNames(spec.Permissions),
			},
		})
		if run.dry {
			return nil
		}
		password, err := run.r.secret(spec.Password)
		if err != nil {
			return fmt.Errorf("password: %w", err)
		}
		created, err := run.r.svc.Tenant.RegisterUser(ctx, *run.tenant, spec.Username, password, enablement)
		if err != nil {
			return err
		}
		if err := run.r.svc.Users.Add(ctx, created); err != nil {
			return err
		}
		run.users[spec.Username] = &created
		_, err = run.applyUserPermissions(ctx, created, spec.Permissions)
		return err
	}

	var changes []FieldDiff
	next := *u
	if spec.Enablement != nil {
		want, diffs, err := mergeEnablement(u.Enablement, *spec.Enablement)
		if err != nil {
			return err
		}
		if len(diffs) > 0 {
			changes = append(changes, diffs...)
			if !run.dry {
				if next, err = run.r.svc.User.DefineEnablement(ctx, next, want); err != nil {
					return err
				}
			}
		}
	}
	for _, p := range spec.Permissions {
		cur := currentEntry(u.Permissions(), p.Name)
		if cur != permissionState(p.Revoke) {
			changes = append(changes, FieldDiff{Field: "permission " + p.Name, OldValue: cur, NewValue: permissionState(p.Revoke)})
		}
	}
	if len(changes) == 0 {
		return nil
	}
	run.plan.add(Action{Operation: OpUpdate, ResourceKind: KindUser, ResourceName: spec.Username, Changes: changes})
	if run.dry {
		return nil
	}
	next, err = run.applyUserPermissions(ctx, next, spec.Permissions)
	if err != nil {
		return err
	}
	run.users[spec.Username] = &next
	return nil
}

// applyUserPermissions sets every explicit entry of perms on u and
// persists the result when anything changed.
func (run *reconcileRun) applyUserPermissions(ctx context.Context, u domain.User, perms []PermissionSpec) (domain.User, error) {
	next := u
	for _, p := range perms {
		perm, _ := domain.PermissionByName(p.Name)
		if currentEntry(next.Permissions(), p.Name) == permissionState(p.Revoke) {
			continue
		}
		var err error
		if p.Revoke {
			next, err = run.r.svc.User.RevokePermission(ctx, next, perm)
		} else {
			next, err = run.r.svc.User.GrantPermission(ctx, next, perm)
		}
		if err != nil {
			return domain.User{}, err
		}
	}
	if err := run.r.svc.Users.Update(ctx, next); err != nil {
		return domain.User{}, err
	}
	return next, nil
}

func (run *reconcileRun) groupsStep(ctx context.Context) error {
	for _, spec := range run.doc.Groups {
		var existing *domain.Group
		if run.tenant != nil {
			g, err := run.r.svc.Groups.GetByName(ctx, run.tenant.ID, spec.Name)
			if err != nil && !isNotFound(err) {
				return fmt.Errorf("group %q: %w", spec.Name, err)
			}
			existing = g
		}
		if existing != nil {
			run.groups[spec.Name] = existing
			continue
		}

		run.plan.add(Action{
			Operation:    OpCreate,
			ResourceKind: KindGroup,
			ResourceName: spec.Name,
			Desired:      map[string]any{"description": spec.Description},
		})
		if run.dry {
			continue
		}
		g, err := run.r.svc.Tenant.ProvisionGroup(ctx, *run.tenant, spec.Name, spec.Description)
		if err != nil {
			return fmt.Errorf("group %q: %w", spec.Name, err)
		}
		if err := run.r.svc.Groups.Add(ctx, g); err != nil {
			return fmt.Errorf("group %q: %w", spec.Name, err)
		}
		run.groups[spec.Name] = &g
	}
	return nil
}

func (run *reconcileRun) membersStep(ctx context.Context) error {
	for _, spec := range run.doc.Groups {
		for _, m := range spec.Members {
			if err := run.reconcileMember(ctx, spec.Name, m); err != nil {
				return fmt.Errorf("group %q member %q: %w", spec.Name, m.Name, err)
			}
		}
	}
	return nil
}

func (run *reconcileRun) reconcileMember(ctx context.Context, groupName string, m MemberRef) error {
	g := run.groups[groupName]
	action := Action{
		Operation:    OpCreate,
		ResourceKind: KindGroupMembership,
		ResourceName: groupName + "/" + m.Name,
		Desired:      map[string]any{"type": m.Type},
	}

	var (
		next domain.Group
		err  error
	)
	switch m.Type {
	case MemberTypeUser:
		u, lookupErr := run.lookupUser(ctx, m.Name)
		if lookupErr != nil {
			return lookupErr
		}
		if g != nil && u != nil && g.HasMember(u.AsMemberOf(*g)) {
			return nil
		}
		run.plan.add(action)
		if run.dry {
			return nil
		}
		next, err = run.r.svc.Group.AddUser(ctx, *g, *u)
	default:
		child := run.groups[m.Name]
		if g != nil && child != nil && g.HasMember(child.AsMemberOf(*g)) {
			return nil
		}
		run.plan.add(action)
		if run.dry {
			return nil
		}
		next, err = run.r.svc.Group.AddGroup(ctx, *g, *child)
	}
	if err != nil {
		return err
	}
	if err := run.r.svc.Groups.Update(ctx, next); err != nil {
		return err
	}
	run.groups[groupName] = &next
	return nil
}

func (run *reconcileRun) rolesStep(ctx context.Context) error {
	for _, spec := range run.doc.Roles {
		if err := run.reconcileRole(ctx, spec); err != nil {
			return fmt.Errorf("role %q: %w", spec.Name, err)
		}
	}
	return nil
}

func (run *reconcileRun) reconcileRole(ctx context.Context, spec RoleSpec) error {
	var existing *domain.Role
	if run.tenant != nil {
		role, err := run.r.svc.Roles.GetByName(ctx, run.tenant.ID, spec.Name)
		if err != nil && !isNotFound(err) {
			return err
		}
		existing = role
	}
	want := revocablePermissions(spec.Permissions)

	if existing == nil {
		run.plan.add(Action{
			Operation:    OpCreate,
			ResourceKind: KindRole,
			ResourceName: spec.Name,
			Desired: map[string]any{
				"supports_nesting": spec.SupportsNesting,
				"permissions":      permissionNames(spec.Permissions),
			},
		})
		if run.dry {
			return nil
		}
		var grants []domain.Permission
		for _, p := range want {
			if !p.IsRevocation {
				grants = append(grants, p.Permission)
			}
		}
		role, err := run.r.svc.Tenant.ProvisionRole(ctx, *run.tenant, spec.Name, spec.Description, grants, spec.SupportsNesting)
		if err != nil {
			return err
		}
		role = role.WithPermissions(want)
		if err := run.r.svc.Roles.Add(ctx, role); err != nil {
			return err
		}
		run.roles[spec.Name] = &role
		return nil
	}

	run.roles[spec.Name] = existing
	if len(spec.Permissions) == 0 {
		return nil
	}
	have := formatPermissions(existing.Permissions())
	if have == formatPermissions(want) {
		return nil
	}
	run.plan.add(Action{
		Operation:    OpUpdate,
		ResourceKind: KindRole,
		ResourceName: spec.Name,
		Changes:      []FieldDiff{{Field: "permissions", OldValue: have, NewValue: formatPermissions(want)}},
	})
	if run.dry {
		return nil
	}
	next := existing.WithPermissions(want)
	if err := run.r.svc.Roles.Update(ctx, next); err != nil {
		return err
	}
	run.roles[spec.Name] = &next
	return nil
}

func (run *reconcileRun) assignmentsStep(ctx context.Context) error {
	for _, spec := range run.doc.Roles {
		for _, name := range spec.Users {
			if err := run.assignUser(ctx, spec.Name, name); err != nil {
				return fmt.Errorf("role %q user %q: %w", spec.Name, name, err)
			}
		}
		for _, name := range spec.Groups {
			if err := run.assignGroup(ctx, spec.Name, name); err != nil {
				return fmt.Errorf("role %q group %q: %w", spec.Name, name, err)
			}
		}
	}
	return nil
}

func (run *reconcileRun) assignUser(ctx context.Context, roleName, username string) error {
	role := run.roles[roleName]
	u, err := run.lookupUser(ctx, username)
	if err != nil {
		return err
	}
	if role != nil && u != nil && role.Group().HasMember(u.AsMemberOf(role.Group())) {
		return nil
	}
	run.plan.add(Action{
		Operation:    OpCreate,
		ResourceKind: KindRoleAssignment,
		ResourceName: roleName + "/" + username,
		Desired:      map[string]any{"type": MemberTypeUser},
	})
	if run.dry {
		return nil
	}
	next, err := run.r.svc.Role.AssignUser(ctx, *role, *u)
	if err != nil {
		return err
	}
	return run.saveRole(ctx, roleName, next)
}

func (run *reconcileRun) assignGroup(ctx context.Context, roleName, groupName string) error {
	role := run.roles[roleName]
	g := run.groups[groupName]
	if role != nil && g != nil && role.Group().HasMember(g.AsMemberOf(role.Group())) {
		return nil
	}
	run.plan.add(Action{
		Operation:    OpCreate,
		ResourceKind: KindRoleAssignment,
		ResourceName: roleName + "/" + groupName,
		Desired:      map[string]any{"type": MemberTypeGroup},
	})
	if run.dry {
		return nil
	}
	next, err := run.r.svc.Role.AssignGroup(ctx, *role, *g)
	if err != nil {
		return err
	}
	return run.saveRole(ctx, roleName, next)
}

func (run *reconcileRun) saveRole(ctx context.Context, name string, role domain.Role) error {
	if err := run.r.svc.Roles.Update(ctx, role); err != nil {
		return err
	}
	run.roles[name] = &role
	return nil
}

func revocablePermissions(specs []PermissionSpec) []domain.RevocablePermission {
	out := make([]domain.RevocablePermission, 0, len(specs))
	for _, s := range specs {
		p, _ := domain.PermissionByName(s.Name)
		out = append(out, domain.RevocablePermission{Permission: p, IsRevocation: s.Revoke})
	}
	return out
}

func formatPermissions(perms []domain.RevocablePermission) string {
	parts := make([]string, len(perms))
	for i, p := range perms {
		parts[i] = permissionState(p.IsRevocation) + " " + p.Name()
	}
	return strings.Join(parts, ", ")
}

func permissionNames(specs []PermissionSpec) string {
	return formatPermissions(revocablePermissions(specs))
}

func permissionState(revoke bool) string {
	if revoke {
		return "revoke"
	}
	return "grant"
}

// currentEntry returns "grant", "revoke" or "" for the user's explicit
// entry named name.
func currentEntry(perms []domain.RevocablePermission, name string) string {
	for _, p := range perms {
		if p.Name() == name {
			return permissionState(p.IsRevocation)
		}
	}
	return ""
}

// mergeEnablement applies the fields set in spec to cur. Omitted bounds
// keep their current value.
func mergeEnablement(cur domain.Enablement, spec EnablementSpec) (domain.Enablement, []FieldDiff, error) {
	start, end := cur.StartMillis, cur.EndMillis
	if spec.Start != "" {
		t, err := time.Parse(time.RFC3339, spec.Start)
		if err != nil {
			return domain.Enablement{}, nil, fmt.Errorf("enablement start: %w", err)
		}
		start = t.UnixMilli()
	}
	if spec.End != "" {
		t, err := time.Parse(time.RFC3339, spec.End)
		if err != nil {
			return domain.Enablement{}, nil, fmt.Errorf("enablement end: %w", err)
		}
		end = t.UnixMilli()
	}
	want, err := domain.NewEnablement(spec.Enabled, start, end)
	if err != nil {
		return domain.Enablement{}, nil, err
	}

	var diffs []FieldDiff
	if cur.Enabled != want.Enabled {
		diffs = append(diffs, FieldDiff{Field: "enabled", OldValue: fmt.Sprint(cur.Enabled), NewValue: fmt.Sprint(want.Enabled)})
	}
	if cur.StartMillis != want.StartMillis || cur.EndMillis != want.EndMillis {
		diffs = append(diffs, FieldDiff{Field: "window", OldValue: cur.String(), NewValue: want.String()})
	}
	return want, diffs, nil
}
