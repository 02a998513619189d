package declarative

// ResourceKind identifies the type of a seeded resource.
type ResourceKind int

const (
	// KindTenant is the tenant itself.
	KindTenant ResourceKind = iota
	// KindUser is a tenant user.
	KindUser
	// KindGroup is a tenant group.
	KindGroup
	// KindRole is a role with its permission set.
	KindRole
	// KindGroupMembership is a direct member of a group.
	KindGroupMembership
	// KindRoleAssignment is a user or group assigned to a role.
	KindRoleAssignment
)

// String returns the kebab-case name of the resource kind.
func (k ResourceKind) String() string {
	switch k {
	case KindTenant:
		return "tenant"
	case KindUser:
		return "user"
	case KindGroup:
		return "group"
	case KindRole:
		return "role"
	case KindGroupMembership:
		return "group-membership"
	case KindRoleAssignment:
		return "role-assignment"
	default:
		return "unknown"
	}
}

// Layer returns the dependency layer used to order actions. Higher layers
// depend on lower ones.
func (k ResourceKind) Layer() int {
	switch k {
	case KindTenant:
		return 0
	case KindUser, KindGroup, KindRole:
		return 1
	case KindGroupMembership:
		return 2
	case KindRoleAssignment:
		return 3
	default:
		return 99
	}
}

// Operation represents a planned change type.
type Operation int

const (
	// OpCreate indicates a resource should be created.
	OpCreate Operation = iota
	// OpUpdate indicates a resource should be updated.
	OpUpdate
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// KindNameTenantSeed is the only document kind understood by the loader.
const KindNameTenantSeed = "TenantSeed"

// SupportedAPIVersion is the current API version for YAML documents.
const SupportedAPIVersion = "iam/v1"

// Member types accepted in group member references.
const (
	MemberTypeUser  = "user"
	MemberTypeGroup = "group"
)
