package domain

import "time"

// Event is a domain event handed to the EventPublisher.
type Event interface {
	EventName() string
	OccurredAt() time.Time
	EventTenantID() TenantID
	EventVersion() int
}

// EventMeta carries the fields common to every event.
type EventMeta struct {
	Tenant  TenantID  `json:"tenant_id"`
	At      time.Time `json:"occurred_at"`
	Version int       `json:"event_version"`
}

func newMeta(tenant TenantID) EventMeta {
	return EventMeta{Tenant: tenant, At: Now().UTC(), Version: 1}
}

// OccurredAt implements Event.
func (m EventMeta) OccurredAt() time.Time { return m.At }

// EventTenantID implements Event.
func (m EventMeta) EventTenantID() TenantID { return m.Tenant }

// EventVersion implements Event.
func (m EventMeta) EventVersion() int { return m.Version }

// === Group events ===

// GroupProvisioned is published when a tenant group is created.
type GroupProvisioned struct {
	EventMeta
	GroupName string `json:"group_name"`
}

// GroupAddedToGroup is published when a group is nested in another.
type GroupAddedToGroup struct {
	EventMeta
	GroupName       string `json:"group_name"`
	NestedGroupName string `json:"nested_group_name"`
}

// GroupRemovedFromGroup is published when a nested group is removed.
type GroupRemovedFromGroup struct {
	EventMeta
	GroupName       string `json:"group_name"`
	NestedGroupName string `json:"nested_group_name"`
}

// GroupUserAdded is published when a user joins a group.
type GroupUserAdded struct {
	EventMeta
	GroupName string `json:"group_name"`
	Username  string `json:"username"`
}

// GroupUserRemoved is published when a user leaves a group.
type GroupUserRemoved struct {
	EventMeta
	GroupName string `json:"group_name"`
	Username  string `json:"username"`
}

// === Role events ===

// RoleProvisioned is published when a role is created.
type RoleProvisioned struct {
	EventMeta
	RoleName string `json:"role_name"`
}

// UserAssignedToRole is published when a user is assigned to a role.
type UserAssignedToRole struct {
	EventMeta
	RoleName string `json:"role_name"`
	Username string `json:"username"`
}

// UserUnassignedFromRole is published when a user is unassigned from a role.
type UserUnassignedFromRole struct {
	EventMeta
	RoleName string `json:"role_name"`
	Username string `json:"username"`
}

// GroupAssignedToRole is published when a group is nested in a role.
type GroupAssignedToRole struct {
	EventMeta
	RoleName  string `json:"role_name"`
	GroupName string `json:"group_name"`
}

// GroupUnassignedFromRole is published when a group is removed from a role.
type GroupUnassignedFromRole struct {
	EventMeta
	RoleName  string `json:"role_name"`
	GroupName string `json:"group_name"`
}

// === Tenant events ===

// TenantProvisioned is published when a tenant is created.
type TenantProvisioned struct {
	EventMeta
	TenantName string `json:"tenant_name"`
}

// TenantActivated is published when a tenant is activated.
type TenantActivated struct {
	EventMeta
}

// TenantDeactivated is published when a tenant is deactivated.
type TenantDeactivated struct {
	EventMeta
}

// TenantAdministratorRegistered is published once the administrator of a
// freshly provisioned tenant exists.
type TenantAdministratorRegistered struct {
	EventMeta
	TenantName   string `json:"tenant_name"`
	Username     string `json:"username"`
	EmailAddress string `json:"email_address"`
}

// === User events ===

// UserRegistered is published when a user is registered in a tenant.
type UserRegistered struct {
	EventMeta
	Username string `json:"username"`
}

// UserEnablementChanged is published when a user's enablement changes.
type UserEnablementChanged struct {
	EventMeta
	Username   string     `json:"username"`
	Enablement Enablement `json:"enablement"`
}

// UserPasswordChanged is published when a user's password changes.
type UserPasswordChanged struct {
	EventMeta
	Username string `json:"username"`
}

// UserPermissionChanged is published when an explicit per-user permission
// entry is set or removed.
type UserPermissionChanged struct {
	EventMeta
	Username       string `json:"username"`
	PermissionName string `json:"permission_name"`
	IsRevocation   bool   `json:"is_revocation"`
	Removed        bool   `json:"removed"`
}

func (GroupProvisioned) EventName() string              { return "GroupProvisioned" }
func (GroupAddedToGroup) EventName() string             { return "GroupAddedToGroup" }
func (GroupRemovedFromGroup) EventName() string         { return "GroupRemovedFromGroup" }
func (GroupUserAdded) EventName() string                { return "GroupUserAdded" }
func (GroupUserRemoved) EventName() string              { return "GroupUserRemoved" }
func (RoleProvisioned) EventName() string               { return "RoleProvisioned" }
func (UserAssignedToRole) EventName() string            { return "UserAssignedToRole" }
func (UserUnassignedFromRole) EventName() string        { return "UserUnassignedFromRole" }
func (GroupAssignedToRole) EventName() string           { return "GroupAssignedToRole" }
func (GroupUnassignedFromRole) EventName() string       { return "GroupUnassignedFromRole" }
func (TenantProvisioned) EventName() string             { return "TenantProvisioned" }
func (TenantActivated) EventName() string               { return "TenantActivated" }
func (TenantDeactivated) EventName() string             { return "TenantDeactivated" }
func (TenantAdministratorRegistered) EventName() string { return "TenantAdministratorRegistered" }
func (UserRegistered) EventName() string                { return "UserRegistered" }
func (UserEnablementChanged) EventName() string         { return "UserEnablementChanged" }
func (UserPasswordChanged) EventName() string           { return "UserPasswordChanged" }
func (UserPermissionChanged) EventName() string         { return "UserPermissionChanged" }

// NewGroupProvisioned builds a GroupProvisioned event.
func NewGroupProvisioned(tenant TenantID, groupName string) GroupProvisioned {
	return GroupProvisioned{EventMeta: newMeta(tenant), GroupName: groupName}
}

// NewGroupAddedToGroup builds a GroupAddedToGroup event.
func NewGroupAddedToGroup(tenant TenantID, groupName, nestedGroupName string) GroupAddedToGroup {
	return GroupAddedToGroup{EventMeta: newMeta(tenant), GroupName: groupName, NestedGroupName: nestedGroupName}
}

// NewGroupRemovedFromGroup builds a GroupRemovedFromGroup event.
func NewGroupRemovedFromGroup(tenant TenantID, groupName, nestedGroupName string) GroupRemovedFromGroup {
	return GroupRemovedFromGroup{EventMeta: newMeta(tenant), GroupName: groupName, NestedGroupName: nestedGroupName}
}

// NewGroupUserAdded builds a GroupUserAdded event.
func NewGroupUserAdded(tenant TenantID, groupName, username string) GroupUserAdded {
	return GroupUserAdded{EventMeta: newMeta(tenant), GroupName: groupName, Username: username}
}

// NewGroupUserRemoved builds a GroupUserRemoved event.
func NewGroupUserRemoved(tenant TenantID, groupName, username string) GroupUserRemoved {
	return GroupUserRemoved{EventMeta: newMeta(tenant), GroupName: groupName, Username: username}
}

// NewRoleProvisioned builds a RoleProvisioned event.
func NewRoleProvisioned(tenant TenantID, roleName string) RoleProvisioned {
	return RoleProvisioned{EventMeta: newMeta(tenant), RoleName: roleName}
}

// NewUserAssignedToRole builds a UserAssignedToRole event.
func NewUserAssignedToRole(tenant TenantID, roleName, username string) UserAssignedToRole {
	return UserAssignedToRole{EventMeta: newMeta(tenant), RoleName: roleName, Username: username}
}

// NewUserUnassignedFromRole builds a UserUnassignedFromRole event.
func NewUserUnassignedFromRole(tenant TenantID, roleName, username string) UserUnassignedFromRole {
	return UserUnassignedFromRole{EventMeta: newMeta(tenant), RoleName: roleName, Username: username}
}

// NewGroupAssignedToRole builds a GroupAssignedToRole event.
func NewGroupAssignedToRole(tenant TenantID, roleName, groupName string) GroupAssignedToRole {
	return GroupAssignedToRole{EventMeta: newMeta(tenant), RoleName: roleName, GroupName: groupName}
}

// NewGroupUnassignedFromRole builds a GroupUnassignedFromRole event.
func NewGroupUnassignedFromRole(tenant TenantID, roleName, groupName string) GroupUnassignedFromRole {
	return GroupUnassignedFromRole{EventMeta: newMeta(tenant), RoleName: roleName, GroupName: groupName}
}

// NewTenantProvisioned builds a TenantProvisioned event.
func NewTenantProvisioned(tenant TenantID, tenantName string) TenantProvisioned {
	return TenantProvisioned{EventMeta: newMeta(tenant), TenantName: tenantName}
}

// NewTenantActivated builds a TenantActivated event.
func NewTenantActivated(tenant TenantID) TenantActivated {
	return TenantActivated{EventMeta: newMeta(tenant)}
}

// NewTenantDeactivated builds a TenantDeactivated event.
func NewTenantDeactivated(tenant TenantID) TenantDeactivated {
	return TenantDeactivated{EventMeta: newMeta(tenant)}
}

// NewTenantAdministratorRegistered builds a TenantAdministratorRegistered event.
func NewTenantAdministratorRegistered(tenant TenantID, tenantName, username, email string) TenantAdministratorRegistered {
	return TenantAdministratorRegistered{EventMeta: newMeta(tenant), TenantName: tenantName, Username: username, EmailAddress: email}
}

// NewUserRegistered builds a UserRegistered event.
func NewUserRegistered(tenant TenantID, username string) UserRegistered {
	return UserRegistered{EventMeta: newMeta(tenant), Username: username}
}

// NewUserEnablementChanged builds a UserEnablementChanged event.
func NewUserEnablementChanged(tenant TenantID, username string, e Enablement) UserEnablementChanged {
	return UserEnablementChanged{EventMeta: newMeta(tenant), Username: username, Enablement: e}
}

// NewUserPasswordChanged builds a UserPasswordChanged event.
func NewUserPasswordChanged(tenant TenantID, username string) UserPasswordChanged {
	return UserPasswordChanged{EventMeta: newMeta(tenant), Username: username}
}

// NewUserPermissionChanged builds a UserPermissionChanged event.
func NewUserPermissionChanged(tenant TenantID, username string, p RevocablePermission, removed bool) UserPermissionChanged {
	return UserPermissionChanged{
		EventMeta:      newMeta(tenant),
		Username:       username,
		PermissionName: p.Name(),
		IsRevocation:   p.IsRevocation,
		Removed:        removed,
	}
}
