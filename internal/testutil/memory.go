package testutil

import (
	"context"
	"sort"
	"sync"

	"tenant-rbac/internal/domain"
)

// MemoryStore keeps tenants, users, groups, roles and events in maps and
// exposes them through the domain repository interfaces. It is safe for
// concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[domain.TenantID]domain.Tenant
	users   map[domain.UserID]domain.User
	groups  map[domain.GroupID]domain.Group
	roles   map[domain.RoleID]domain.Role
	events  []domain.StoredEvent
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: map[domain.TenantID]domain.Tenant{},
		users:   map[domain.UserID]domain.User{},
		groups:  map[domain.GroupID]domain.Group{},
		roles:   map[domain.RoleID]domain.Role{},
	}
}

// Tenants returns the store as a TenantRepository.
func (s *MemoryStore) Tenants() domain.TenantRepository { return memTenants{s} }

// Users returns the store as a UserRepository.
func (s *MemoryStore) Users() domain.UserRepository { return memUsers{s} }

// Groups returns the store as a GroupRepository.
func (s *MemoryStore) Groups() domain.GroupRepository { return memGroups{s} }

// Roles returns the store as a RoleRepository.
func (s *MemoryStore) Roles() domain.RoleRepository { return memRoles{s} }

// Events returns the store as an EventRepository.
func (s *MemoryStore) Events() domain.EventRepository { return memEvents{s} }

// PutGroup stores g without any uniqueness check. Tests use it to plant
// corrupted data such as membership cycles.
func (s *MemoryStore) PutGroup(g domain.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
}

// === Tenants ===

type memTenants struct{ s *MemoryStore }

func (r memTenants) Add(_ context.Context, t domain.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tenants {
		if existing.Name == t.Name {
			return domain.ErrConflict("tenant %q already exists", t.Name)
		}
	}
	r.s.tenants[t.ID] = t
	return nil
}

func (r memTenants) Update(_ context.Context, t domain.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tenants[t.ID]; !ok {
		return domain.ErrNotFound("tenant %s not found", t.ID)
	}
	r.s.tenants[t.ID] = t
	return nil
}

func (r memTenants) Remove(_ context.Context, t domain.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tenants[t.ID]; !ok {
		return domain.ErrNotFound("tenant %s not found", t.ID)
	}
	delete(r.s.tenants, t.ID)
	return nil
}

func (r memTenants) GetByID(_ context.Context, id domain.TenantID) (*domain.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound("tenant %s not found", id)
	}
	return &t, nil
}

func (r memTenants) GetByName(_ context.Context, name string) (*domain.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.tenants {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound("tenant %q not found", name)
}

func (r memTenants) List(_ context.Context) ([]domain.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Tenant, 0, len(r.s.tenants))
	for _, t := range r.s.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// === Users ===

type memUsers struct{ s *MemoryStore }

func (r memUsers) Add(_ context.Context, u domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.TenantID == u.TenantID && existing.Username == u.Username {
			return domain.ErrConflict("user %q already exists", u.Username)
		}
	}
	r.s.users[u.ID] = u
	return nil
}

func (r memUsers) Update(_ context.Context, u domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return domain.ErrNotFound("user %s not found", u.ID)
	}
	r.s.users[u.ID] = u
	return nil
}

func (r memUsers) Remove(_ context.Context, u domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.users, u.ID)
	return nil
}

func (r memUsers) GetByID(_ context.Context, tenantID domain.TenantID, id domain.UserID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok || u.TenantID != tenantID {
		return nil, domain.ErrNotFound("user %s not found", id)
	}
	return &u, nil
}

func (r memUsers) GetByUsername(_ context.Context, tenantID domain.TenantID, username string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.TenantID == tenantID && u.Username == username {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound("user %q not found", username)
}

func (r memUsers) List(_ context.Context, tenantID domain.TenantID) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.User
	for _, u := range r.s.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// === Groups ===

type memGroups struct{ s *MemoryStore }

func (r memGroups) Add(_ context.Context, g domain.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.groups {
		if existing.TenantID == g.TenantID && existing.Name == g.Name {
			return domain.ErrConflict("group %q already exists", g.Name)
		}
	}
	r.s.groups[g.ID] = g
	return nil
}

func (r memGroups) Update(_ context.Context, g domain.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.groups[g.ID]; !ok {
		return domain.ErrNotFound("group %s not found", g.ID)
	}
	r.s.groups[g.ID] = g
	return nil
}

func (r memGroups) Remove(_ context.Context, g domain.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.groups, g.ID)
	return nil
}

func (r memGroups) GetByID(_ context.Context, tenantID domain.TenantID, id domain.GroupID) (*domain.Group, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	g, ok := r.s.groups[id]
	if !ok || g.TenantID != tenantID {
		return nil, domain.ErrNotFound("group %s not found", id)
	}
	return &g, nil
}

func (r memGroups) GetByName(_ context.Context, tenantID domain.TenantID, name string) (*domain.Group, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, g := range r.s.groups {
		if g.TenantID == tenantID && g.Name == name {
			return &g, nil
		}
	}
	return nil, domain.ErrNotFound("group %q not found", name)
}

func (r memGroups) List(_ context.Context, tenantID domain.TenantID) ([]domain.Group, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Group
	for _, g := range r.s.groups {
		if g.TenantID == tenantID && !g.IsRoleBacking() {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memGroups) GroupsForUser(_ context.Context, u domain.User) ([]domain.Group, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Group
	for _, g := range r.s.groups {
		if g.TenantID == u.TenantID && g.HasMember(u.AsMemberOf(g)) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// === Roles ===

type memRoles struct{ s *MemoryStore }

func (r memRoles) Add(_ context.Context, role domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.roles {
		if existing.TenantID == role.TenantID && existing.Name == role.Name {
			return domain.ErrConflict("role %q already exists", role.Name)
		}
	}
	r.s.roles[role.ID] = role
	r.s.groups[role.Group().ID] = role.Group()
	return nil
}

func (r memRoles) Update(_ context.Context, role domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.roles[role.ID]; !ok {
		return domain.ErrNotFound("role %s not found", role.ID)
	}
	r.s.roles[role.ID] = role
	r.s.groups[role.Group().ID] = role.Group()
	return nil
}

func (r memRoles) Remove(_ context.Context, role domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.roles, role.ID)
	delete(r.s.groups, role.Group().ID)
	return nil
}

func (r memRoles) GetByID(_ context.Context, tenantID domain.TenantID, id domain.RoleID) (*domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	role, ok := r.s.roles[id]
	if !ok || role.TenantID != tenantID {
		return nil, domain.ErrNotFound("role %s not found", id)
	}
	return r.withCurrentGroup(role), nil
}

func (r memRoles) GetByName(_ context.Context, tenantID domain.TenantID, name string) (*domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, role := range r.s.roles {
		if role.TenantID == tenantID && role.Name == name {
			return r.withCurrentGroup(role), nil
		}
	}
	return nil, domain.ErrNotFound("role %q not found", name)
}

func (r memRoles) List(_ context.Context, tenantID domain.TenantID) ([]domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Role
	for _, role := range r.s.roles {
		if role.TenantID == tenantID {
			out = append(out, *r.withCurrentGroup(role))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memRoles) RolesForUser(_ context.Context, u domain.User) ([]domain.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Role
	for _, role := range r.s.roles {
		if role.TenantID != u.TenantID {
			continue
		}
		current := r.withCurrentGroup(role)
		if r.containsUser(current.Group(), u, current.SupportsNesting) {
			out = append(out, *current)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// withCurrentGroup rebuilds role around the stored copy of its backing
// group. Caller holds the read lock.
func (r memRoles) withCurrentGroup(role domain.Role) *domain.Role {
	if g, ok := r.s.groups[role.Group().ID]; ok {
		role = role.WithGroup(g)
	}
	return &role
}

// containsUser walks the nested closure of root with a visited set. Caller
// holds the read lock.
func (r memRoles) containsUser(root domain.Group, u domain.User, deep bool) bool {
	visited := map[domain.GroupID]bool{}
	queue := []domain.Group{root}
	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		if visited[g.ID] {
			continue
		}
		visited[g.ID] = true
		if g.HasMember(u.AsMemberOf(g)) {
			return true
		}
		if !deep {
			return false
		}
		for _, id := range g.NestedGroupIDs() {
			if nested, ok := r.s.groups[id]; ok {
				queue = append(queue, nested)
			}
		}
	}
	return false
}

// === Events ===

type memEvents struct{ s *MemoryStore }

func (r memEvents) Append(_ context.Context, e domain.StoredEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = int64(len(r.s.events) + 1)
	r.s.events = append(r.s.events, e)
	return nil
}

func (r memEvents) List(_ context.Context, tenantID domain.TenantID, limit int) ([]domain.StoredEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.StoredEvent
	for _, e := range r.s.events {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

var (
	_ domain.TenantRepository = memTenants{}
	_ domain.UserRepository   = memUsers{}
	_ domain.GroupRepository  = memGroups{}
	_ domain.RoleRepository   = memRoles{}
	_ domain.EventRepository  = memEvents{}
)
