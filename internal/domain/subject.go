package domain

import (
	"context"
	"fmt"
)

// Subject is the authenticated tenant user of the current unit of work,
// with the roles and effective permissions computed for it.
type Subject struct {
	tenant      Tenant
	user        User
	roles       []Role
	permissions PermissionSet
}

// SubjectParams carries the inputs of BuildSubject. Roles and Permissions
// may be empty.
type SubjectParams struct {
	Tenant      Tenant
	User        User
	Roles       []Role
	Permissions []RevocablePermission
}

// BuildSubject creates a Subject from p and binds it into ctx's scope. It
// fails with a ScopeError when ctx has no scope or a Subject is already
// bound. When Permissions repeats a name, the later entry wins.
func BuildSubject(ctx context.Context, p SubjectParams) (*Subject, error) {
	if p.Tenant.ID.IsZero() {
		return nil, ErrValidation("subject tenant must be specified")
	}
	if p.User.ID.IsZero() {
		return nil, ErrValidation("subject user must be specified")
	}
	if p.User.TenantID != p.Tenant.ID {
		return nil, ErrValidation("subject user %q does not belong to tenant %q", p.User.Username, p.Tenant.Name)
	}
	roles := make([]Role, len(p.Roles))
	copy(roles, p.Roles)
	s := &Subject{
		tenant:      p.Tenant,
		user:        p.User,
		roles:       roles,
		permissions: NewPermissionSet(p.Permissions),
	}
	if err := bindSubject(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Tenant returns the subject's tenant.
func (s *Subject) Tenant() Tenant { return s.tenant }

// User returns the subject's user.
func (s *Subject) User() User { return s.user }

// Roles returns a copy of the subject's roles.
func (s *Subject) Roles() []Role {
	out := make([]Role, len(s.roles))
	copy(out, s.roles)
	return out
}

// Permissions returns the effective permission entries sorted by name.
func (s *Subject) Permissions() []RevocablePermission { return s.permissions.Values() }

// IsPermitted reports whether p is present and not revoked.
func (s *Subject) IsPermitted(p Permission) bool {
	rp, ok := s.permissions[p.Name]
	return ok && !rp.IsRevocation
}

// CheckPermitted returns a *PermissionRequiredError when p is not permitted.
func (s *Subject) CheckPermitted(p Permission) error {
	if !s.IsPermitted(p) {
		return ErrPermissionRequired(p.Name, s.user.Username)
	}
	return nil
}

// HasTenant reports whether the subject belongs to the given tenant.
func (s *Subject) HasTenant(id TenantID) bool { return s.tenant.ID == id }

// IsSystemUser reports whether the subject belongs to the system tenant.
func (s *Subject) IsSystemUser() bool { return s.tenant.SystemTenant }

func (s *Subject) String() string {
	return fmt.Sprintf("Subject{tenant=%s, user=%s}", s.tenant.Name, s.user.Username)
}
