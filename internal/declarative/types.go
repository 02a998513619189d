// Package declarative loads TenantSeed YAML documents and reconciles a
// tenant's users, groups and roles against them.
package declarative

// Document is the generic envelope parsed first to determine Kind.
type Document struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
}

// TenantSeedDoc declares one tenant and everything that lives inside it.
type TenantSeedDoc struct {
	APIVersion string      `yaml:"apiVersion"`
	Kind       string      `yaml:"kind"`
	Tenant     TenantSpec  `yaml:"tenant"`
	Users      []UserSpec  `yaml:"users,omitempty"`
	Groups     []GroupSpec `yaml:"groups,omitempty"`
	Roles      []RoleSpec  `yaml:"roles,omitempty"`
}

// TenantSpec describes the tenant and its administrator.
type TenantSpec struct {
	Name           string    `yaml:"name"`
	Description    string    `yaml:"description,omitempty"`
	ServerHostname string    `yaml:"server_hostname,omitempty"`
	System         bool      `yaml:"system,omitempty"`
	Active         *bool     `yaml:"active,omitempty"` // nil leaves the current state alone
	Admin          AdminSpec `yaml:"admin"`
}

// AdminSpec describes the administrator registered with a new tenant.
type AdminSpec struct {
	Username string     `yaml:"username,omitempty"` // defaults to email
	Email    string     `yaml:"email"`
	Password SecretSpec `yaml:"password"`
}

// SecretSpec holds a secret inline or names the environment variable
// that carries it. FromEnv wins when both are set.
type SecretSpec struct {
	Value   string `yaml:"value,omitempty"`
	FromEnv string `yaml:"from_env,omitempty"`
}

// UserSpec describes a tenant user.
type UserSpec struct {
	Username    string           `yaml:"username"`
	Password    SecretSpec       `yaml:"password"`
	Enablement  *EnablementSpec  `yaml:"enablement,omitempty"`
	Permissions []PermissionSpec `yaml:"permissions,omitempty"`
}

// EnablementSpec bounds when a user may act. Times are RFC3339; an empty
// start means now and an empty end means forever.
type EnablementSpec struct {
	Enabled bool   `yaml:"enabled"`
	Start   string `yaml:"start,omitempty"`
	End     string `yaml:"end,omitempty"`
}

// PermissionSpec names a catalog permission, granted unless Revoke is set.
type PermissionSpec struct {
	Name   string `yaml:"name"`
	Revoke bool   `yaml:"revoke,omitempty"`
}

// GroupSpec describes a group and its direct members.
type GroupSpec struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Members     []MemberRef `yaml:"members,omitempty"`
}

// MemberRef is a reference to a user or nested group within a group.
type MemberRef struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // "user" or "group"
}

// RoleSpec describes a role, its permissions and who is assigned to it.
type RoleSpec struct {
	Name            string           `yaml:"name"`
	Description     string           `yaml:"description"`
	SupportsNesting bool             `yaml:"supports_nesting,omitempty"`
	Permissions     []PermissionSpec `yaml:"permissions,omitempty"`
	Users           []string         `yaml:"users,omitempty"`
	Groups          []string         `yaml:"groups,omitempty"`
}
