package domain

import "strings"

// Role is an immutable, tenant-scoped permission bundle. Membership is
// recorded in a hidden backing Group.
type Role struct {
	ID              RoleID
	TenantID        TenantID
	Name            string
	Description     string
	SupportsNesting bool

	group       Group
	permissions []RevocablePermission
}

// RoleParams carries the fields for NewRole and CreateRole.
type RoleParams struct {
	ID              RoleID
	TenantID        TenantID
	Name            string
	Description     string
	SupportsNesting bool
	Permissions     []RevocablePermission
	// Group is the backing group. Ignored by CreateRole.
	Group Group
}

func (p RoleParams) validate() error {
	if p.ID.IsZero() {
		return ErrValidation("role id is required")
	}
	if p.TenantID.IsZero() {
		return ErrValidation("role tenant id is required")
	}
	if err := checkLength("role name", p.Name, 1, 100); err != nil {
		return err
	}
	return checkLength("role description", p.Description, 1, 250)
}

// NewRole rebuilds a role around an existing backing group.
func NewRole(p RoleParams) (Role, error) {
	if err := p.validate(); err != nil {
		return Role{}, err
	}
	if p.Group.ID.IsZero() {
		return Role{}, ErrValidation("role %q has no backing group", p.Name)
	}
	if p.Group.TenantID != p.TenantID {
		return Role{}, ErrValidation("backing group of role %q belongs to another tenant", p.Name)
	}
	return Role{
		ID:              p.ID,
		TenantID:        p.TenantID,
		Name:            p.Name,
		Description:     p.Description,
		SupportsNesting: p.SupportsNesting,
		group:           p.Group,
		permissions:     copyPermissions(p.Permissions),
	}, nil
}

// CreateRole builds a brand new role together with its internal backing
// group, named with RoleGroupPrefix and a random identifier.
func CreateRole(p RoleParams, backingGroupID GroupID) (Role, error) {
	if err := p.validate(); err != nil {
		return Role{}, err
	}
	group, err := NewGroup(GroupParams{
		ID:          backingGroupID,
		TenantID:    p.TenantID,
		Name:        RoleGroupPrefix + strings.ToUpper(NewInternalName()),
		Description: truncateRunes("Role backing group for: "+p.Name, 250),
		Internal:    true,
	})
	if err != nil {
		return Role{}, err
	}
	p.Group = group
	return NewRole(p)
}

// Group returns the backing group.
func (r Role) Group() Group { return r.group }

// Permissions returns a copy of the role's permission entries.
func (r Role) Permissions() []RevocablePermission {
	return copyPermissions(r.permissions)
}

// WithGroup returns a copy of r backed by g.
func (r Role) WithGroup(g Group) Role {
	next := r
	next.group = g
	return next
}

// WithPermissions returns a copy of r with its permission entries replaced.
func (r Role) WithPermissions(perms []RevocablePermission) Role {
	next := r
	next.permissions = copyPermissions(perms)
	return next
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
