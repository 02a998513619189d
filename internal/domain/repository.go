package domain

import (
	"context"
	"time"
)

// Repositories return *NotFoundError when a lookup misses and
// *ConflictError when a name is already taken inside the tenant. Any other
// error is a collaborator failure and is propagated unchanged by the
// services.

// TenantRepository persists tenants.
type TenantRepository interface {
	Add(ctx context.Context, t Tenant) error
	Update(ctx context.Context, t Tenant) error
	Remove(ctx context.Context, t Tenant) error
	GetByID(ctx context.Context, id TenantID) (*Tenant, error)
	GetByName(ctx context.Context, name string) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
}

// UserRepository persists users together with their explicit permissions.
type UserRepository interface {
	Add(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
	Remove(ctx context.Context, u User) error
	GetByID(ctx context.Context, tenantID TenantID, id UserID) (*User, error)
	GetByUsername(ctx context.Context, tenantID TenantID, username string) (*User, error)
	List(ctx context.Context, tenantID TenantID) ([]User, error)
}

// GroupRepository persists groups and their direct members.
type GroupRepository interface {
	Add(ctx context.Context, g Group) error
	Update(ctx context.Context, g Group) error
	Remove(ctx context.Context, g Group) error
	GetByID(ctx context.Context, tenantID TenantID, id GroupID) (*Group, error)
	GetByName(ctx context.Context, tenantID TenantID, name string) (*Group, error)
	// List returns the tenant's groups. Role backing groups are excluded.
	List(ctx context.Context, tenantID TenantID) ([]Group, error)
	// GroupsForUser returns the groups that list the user as a direct member.
	GroupsForUser(ctx context.Context, u User) ([]Group, error)
}

// RoleRepository persists roles. Add and Update also write the backing
// group.
type RoleRepository interface {
	Add(ctx context.Context, r Role) error
	Update(ctx context.Context, r Role) error
	Remove(ctx context.Context, r Role) error
	GetByID(ctx context.Context, tenantID TenantID, id RoleID) (*Role, error)
	GetByName(ctx context.Context, tenantID TenantID, name string) (*Role, error)
	List(ctx context.Context, tenantID TenantID) ([]Role, error)
	// RolesForUser returns every role of the user's tenant whose backing
	// group contains the user, directly or through nested groups when the
	// role supports nesting.
	RolesForUser(ctx context.Context, u User) ([]Role, error)
}

// StoredEvent is a published event as kept in the event log.
type StoredEvent struct {
	ID         int64
	TenantID   TenantID
	Name       string
	Version    int
	OccurredAt time.Time
	Payload    []byte
}

// EventRepository appends published events to a durable log.
type EventRepository interface {
	Append(ctx context.Context, e StoredEvent) error
	List(ctx context.Context, tenantID TenantID, limit int) ([]StoredEvent, error)
}
