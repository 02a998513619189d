package domain

import (
	"strings"
	"unicode/utf8"
)

// RoleGroupPrefix names the hidden groups that back roles.
const RoleGroupPrefix = "ROLE-INTERNAL-GROUP: "

// MemberKind discriminates group members.
type MemberKind string

// Member kinds.
const (
	MemberUser  MemberKind = "user"
	MemberGroup MemberKind = "group"
)

// MemberRef is the strongly-typed identifier of a group member: either a
// UserRef or a GroupRef.
type MemberRef interface {
	Kind() MemberKind
	rawID() int64
}

// UserRef references a user member.
type UserRef struct{ ID UserID }

// GroupRef references a nested group member.
type GroupRef struct{ ID GroupID }

func (UserRef) Kind() MemberKind  { return MemberUser }
func (r UserRef) rawID() int64    { return int64(r.ID) }
func (GroupRef) Kind() MemberKind { return MemberGroup }
func (r GroupRef) rawID() int64   { return int64(r.ID) }

// NewMemberRef rebuilds a reference from its persisted form.
func NewMemberRef(kind MemberKind, id int64) (MemberRef, error) {
	if id <= 0 {
		return nil, ErrValidation("member id is required")
	}
	switch kind {
	case MemberUser:
		return UserRef{ID: UserID(id)}, nil
	case MemberGroup:
		return GroupRef{ID: GroupID(id)}, nil
	default:
		return nil, ErrValidation("unknown member kind %q", kind)
	}
}

// MemberRawID exposes the numeric id behind a reference for storage.
func MemberRawID(r MemberRef) int64 { return r.rawID() }

// GroupMember records that Member belongs to the group ParentGroupID.
// Identity is (TenantID, kind, member id); the parent is not part of it, so
// a member value compares equal across groups.
type GroupMember struct {
	TenantID      TenantID
	Member        MemberRef
	ParentGroupID GroupID
}

type memberKey struct {
	tenant TenantID
	kind   MemberKind
	id     int64
}

func (m GroupMember) key() memberKey {
	return memberKey{tenant: m.TenantID, kind: m.Member.Kind(), id: m.Member.rawID()}
}

// Equal compares two members by identity.
func (m GroupMember) Equal(o GroupMember) bool {
	if m.Member == nil || o.Member == nil {
		return m.Member == nil && o.Member == nil && m.TenantID == o.TenantID
	}
	return m.key() == o.key()
}

// IsUser reports whether the member is a user.
func (m GroupMember) IsUser() bool { return m.Member != nil && m.Member.Kind() == MemberUser }

// IsGroup reports whether the member is a nested group.
func (m GroupMember) IsGroup() bool { return m.Member != nil && m.Member.Kind() == MemberGroup }

// GroupID returns the nested group id when the member is a group.
func (m GroupMember) GroupID() (GroupID, bool) {
	if r, ok := m.Member.(GroupRef); ok {
		return r.ID, true
	}
	return 0, false
}

// UserID returns the user id when the member is a user.
func (m GroupMember) UserID() (UserID, bool) {
	if r, ok := m.Member.(UserRef); ok {
		return r.ID, true
	}
	return 0, false
}

func (m GroupMember) validate() error {
	if m.TenantID.IsZero() {
		return ErrValidation("group member tenant id is required")
	}
	if m.Member == nil || m.Member.rawID() <= 0 {
		return ErrValidation("group member id is required")
	}
	if m.ParentGroupID.IsZero() {
		return ErrValidation("group member parent group is required")
	}
	return nil
}

// Group is an immutable, tenant-scoped container of users and nested
// groups. Mutating methods return a new value.
type Group struct {
	ID          GroupID
	TenantID    TenantID
	Name        string
	Description string
	Internal    bool

	members []GroupMember
}

// GroupParams carries the fields for NewGroup.
type GroupParams struct {
	ID          GroupID
	TenantID    TenantID
	Name        string
	Description string
	Internal    bool
	Members     []GroupMember
}

// NewGroup validates p and returns a Group.
func NewGroup(p GroupParams) (Group, error) {
	if p.ID.IsZero() {
		return Group{}, ErrValidation("group id is required")
	}
	if p.TenantID.IsZero() {
		return Group{}, ErrValidation("group tenant id is required")
	}
	if err := checkLength("group name", p.Name, 1, 100); err != nil {
		return Group{}, err
	}
	if err := checkLength("group description", p.Description, 0, 250); err != nil {
		return Group{}, err
	}

	g := Group{
		ID:          p.ID,
		TenantID:    p.TenantID,
		Name:        p.Name,
		Description: p.Description,
		Internal:    p.Internal,
	}
	for _, m := range p.Members {
		if err := m.validate(); err != nil {
			return Group{}, err
		}
		if m.TenantID != p.TenantID {
			return Group{}, ErrValidation("group member belongs to %s, group %q belongs to %s", m.TenantID, p.Name, p.TenantID)
		}
		if g.indexOf(m) < 0 {
			g.members = append(g.members, m)
		}
	}
	return g, nil
}

// IsRoleBacking reports whether the group was generated to back a role.
func (g Group) IsRoleBacking() bool {
	return g.Internal && strings.HasPrefix(g.Name, RoleGroupPrefix)
}

// Members returns a copy of the member list in insertion order.
func (g Group) Members() []GroupMember {
	out := make([]GroupMember, len(g.members))
	copy(out, g.members)
	return out
}

// Len returns the number of direct members.
func (g Group) Len() int { return len(g.members) }

// HasMember reports whether m is a direct member.
func (g Group) HasMember(m GroupMember) bool {
	return g.indexOf(m) >= 0
}

// NestedGroupIDs returns the ids of directly nested groups.
func (g Group) NestedGroupIDs() []GroupID {
	var ids []GroupID
	for _, m := range g.members {
		if id, ok := m.GroupID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// WithMember returns a copy of g containing m. If m is already a member, g
// is returned unchanged.
func (g Group) WithMember(m GroupMember) (Group, error) {
	if err := m.validate(); err != nil {
		return Group{}, err
	}
	if m.TenantID != g.TenantID {
		return Group{}, ErrValidation("wrong tenant for group %q", g.Name)
	}
	if g.HasMember(m) {
		return g, nil
	}
	next := g
	next.members = make([]GroupMember, 0, len(g.members)+1)
	next.members = append(next.members, g.members...)
	next.members = append(next.members, m)
	return next, nil
}

// WithoutMember returns a copy of g without m. If m is not a direct member,
// g is returned unchanged.
func (g Group) WithoutMember(m GroupMember) Group {
	idx := g.indexOf(m)
	if idx < 0 {
		return g
	}
	next := g
	next.members = make([]GroupMember, 0, len(g.members)-1)
	next.members = append(next.members, g.members[:idx]...)
	next.members = append(next.members, g.members[idx+1:]...)
	return next
}

// AsMemberOf returns the membership record for g nested inside parent.
func (g Group) AsMemberOf(parent Group) GroupMember {
	return GroupMember{TenantID: g.TenantID, Member: GroupRef{ID: g.ID}, ParentGroupID: parent.ID}
}

func (g Group) indexOf(m GroupMember) int {
	for i, existing := range g.members {
		if existing.Equal(m) {
			return i
		}
	}
	return -1
}

func checkLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(value)
	if n < minLen {
		if minLen == 1 {
			return ErrValidation("%s is required", field)
		}
		return ErrValidation("%s must be at least %d characters", field, minLen)
	}
	if n > maxLen {
		return ErrValidation("%s must be %d characters or less", field, maxLen)
	}
	return nil
}
