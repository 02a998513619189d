package domain

import "sort"

// Permission is a named entry of the fixed permission catalog.
type Permission struct {
	ID   PermissionID
	Name string
}

// Catalog permission names.
const (
	PermProvisionTenant             = "Provision Tenant"
	PermActivateTenant              = "Activate Tenant"
	PermDeactivateTenant            = "Deactivate Tenant"
	PermAddUserToGroup              = "Add User to Group"
	PermProvisionRole               = "Provision Role"
	PermProvisionUser               = "Provision User"
	PermOfferRegistrationInvitation = "Offer registration invitation"
	PermViewTenant                  = "View Tenant"
	PermViewUser                    = "View User"
)

// The permission catalog. New permissions are added here, never at runtime.
var (
	ProvisionTenant             = Permission{ID: 1001, Name: PermProvisionTenant}
	ActivateTenant              = Permission{ID: 1002, Name: PermActivateTenant}
	DeactivateTenant            = Permission{ID: 1003, Name: PermDeactivateTenant}
	AddUserToGroup              = Permission{ID: 10001, Name: PermAddUserToGroup}
	ProvisionRole               = Permission{ID: 10002, Name: PermProvisionRole}
	ProvisionUser               = Permission{ID: 10003, Name: PermProvisionUser}
	OfferRegistrationInvitation = Permission{ID: 10004, Name: PermOfferRegistrationInvitation}
	ViewTenant                  = Permission{ID: 10005, Name: PermViewTenant}
	ViewUser                    = Permission{ID: 10006, Name: PermViewUser}
)

var catalog = []Permission{
	ProvisionTenant,
	ActivateTenant,
	DeactivateTenant,
	AddUserToGroup,
	ProvisionRole,
	ProvisionUser,
	OfferRegistrationInvitation,
	ViewTenant,
	ViewUser,
}

var (
	catalogByName = make(map[string]Permission, len(catalog))
	catalogByID   = make(map[PermissionID]Permission, len(catalog))
)

func init() {
	for _, p := range catalog {
		catalogByName[p.Name] = p
		catalogByID[p.ID] = p
	}
}

// AllPermissions returns the full catalog ordered by id.
func AllPermissions() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// PermissionByName looks up a catalog entry by its name.
func PermissionByName(name string) (Permission, bool) {
	p, ok := catalogByName[name]
	return p, ok
}

// PermissionByID looks up a catalog entry by its id.
func PermissionByID(id PermissionID) (Permission, bool) {
	p, ok := catalogByID[id]
	return p, ok
}

// DefaultSystemAdminPermissions is granted to the system tenant administrator.
func DefaultSystemAdminPermissions() []Permission {
	return AllPermissions()
}

// DefaultTenantAdminPermissions is granted to a regular tenant administrator.
func DefaultTenantAdminPermissions() []Permission {
	return []Permission{
		ViewTenant,
		ViewUser,
		ProvisionRole,
		ProvisionUser,
		AddUserToGroup,
		OfferRegistrationInvitation,
	}
}

// RevocablePermission is either a grant or an explicit revocation of a
// permission. Resolution keys on the permission name.
type RevocablePermission struct {
	Permission   Permission
	IsRevocation bool
}

// Grant returns a granting entry for p.
func Grant(p Permission) RevocablePermission {
	return RevocablePermission{Permission: p}
}

// Revoke returns a revoking entry for p.
func Revoke(p Permission) RevocablePermission {
	return RevocablePermission{Permission: p, IsRevocation: true}
}

// Name returns the resolution key.
func (r RevocablePermission) Name() string { return r.Permission.Name }

// AsRevocable wraps each permission with the given revocation flag.
func AsRevocable(perms []Permission, revoke bool) []RevocablePermission {
	out := make([]RevocablePermission, 0, len(perms))
	for _, p := range perms {
		out = append(out, RevocablePermission{Permission: p, IsRevocation: revoke})
	}
	return out
}

// AllAsUserPermissions returns the whole catalog as grants or revocations.
func AllAsUserPermissions(revoke bool) []RevocablePermission {
	return AsRevocable(catalog, revoke)
}

// PermissionSet is a name-keyed set of revocable permissions. Adding an
// entry whose name is already present replaces it.
type PermissionSet map[string]RevocablePermission

// NewPermissionSet builds a set from perms; for duplicate names the last
// entry wins.
func NewPermissionSet(perms []RevocablePermission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p.Name()] = p
	}
	return set
}

// Values returns the entries ordered by permission name.
func (s PermissionSet) Values() []RevocablePermission {
	out := make([]RevocablePermission, 0, len(s))
	for _, p := range s {
		out = append(out, p)
	}
	sortPermissions(out)
	return out
}

func sortPermissions(perms []RevocablePermission) {
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name() < perms[j].Name() })
}

func copyPermissions(perms []RevocablePermission) []RevocablePermission {
	if perms == nil {
		return nil
	}
	out := make([]RevocablePermission, len(perms))
	copy(out, perms)
	return out
}
