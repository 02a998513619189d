package declarative

import (
	"fmt"
	"time"

	"tenant-rbac/internal/domain"
)

// ValidationError represents a single validation problem.
type ValidationError struct {
	Path    string // e.g. "tenant" or "group[Engineering]"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Valid member types within a group.
var validMemberTypes = map[string]bool{
	MemberTypeUser:  true,
	MemberTypeGroup: true,
}

// Validate checks the document for structural correctness and referential
// integrity. It returns every problem found, not just the first.
func Validate(doc *TenantSeedDoc) []ValidationError {
	var errs []ValidationError
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if doc.Tenant.Name == "" {
		add("tenant", "name is required")
	}
	if doc.Tenant.Admin.Email == "" && doc.Tenant.Admin.Username == "" {
		add("tenant.admin", "email or username is required")
	}
	if doc.Tenant.Admin.Password.isEmpty() {
		add("tenant.admin", "password is required")
	}

	userNames := make(map[string]bool, len(doc.Users)+1)
	if admin := adminUsername(doc.Tenant.Admin); admin != "" {
		userNames[admin] = true
	}
	for i, u := range doc.Users {
		path := fmt.Sprintf("user[%d]", i)
		if u.Username == "" {
			add(path, "username is required")
			continue
		}
		path = fmt.Sprintf("user[%s]", u.Username)
		if userNames[u.Username] {
			add(path, "duplicate username")
		}
		userNames[u.Username] = true
		if u.Password.isEmpty() {
			add(path, "password is required")
		}
		if u.Enablement != nil {
			if _, err := u.Enablement.toDomain(); err != nil {
				add(path, "enablement: %v", err)
			}
		}
		validatePermissions(path, u.Permissions, add)
	}

	groupNames := make(map[string]bool, len(doc.Groups))
	for i, g := range doc.Groups {
		if g.Name == "" {
			add(fmt.Sprintf("group[%d]", i), "name is required")
			continue
		}
		if groupNames[g.Name] {
			add(fmt.Sprintf("group[%s]", g.Name), "duplicate group name")
		}
		groupNames[g.Name] = true
	}
	for _, g := range doc.Groups {
		path := fmt.Sprintf("group[%s]", g.Name)
		for _, m := range g.Members {
			switch {
			case !validMemberTypes[m.Type]:
				add(path, "member %q has invalid type %q (expected user or group)", m.Name, m.Type)
			case m.Type == MemberTypeUser && !userNames[m.Name]:
				add(path, "member user %q is not declared", m.Name)
			case m.Type == MemberTypeGroup && !groupNames[m.Name]:
				add(path, "member group %q is not declared", m.Name)
			case m.Type == MemberTypeGroup && m.Name == g.Name:
				add(path, "group cannot contain itself")
			}
		}
	}
	if cycle := findGroupCycle(doc.Groups); cycle != "" {
		add("groups", "group recursion is not allowed: %s", cycle)
	}

	roleNames := make(map[string]bool, len(doc.Roles))
	for i, r := range doc.Roles {
		if r.Name == "" {
			add(fmt.Sprintf("role[%d]", i), "name is required")
			continue
		}
		path := fmt.Sprintf("role[%s]", r.Name)
		if roleNames[r.Name] {
			add(path, "duplicate role name")
		}
		roleNames[r.Name] = true
		if r.Description == "" {
			add(path, "description is required")
		}
		validatePermissions(path, r.Permissions, add)
		for _, u := range r.Users {
			if !userNames[u] {
				add(path, "assigned user %q is not declared", u)
			}
		}
		if len(r.Groups) > 0 && !r.SupportsNesting {
			add(path, "groups can only be assigned when supports_nesting is true")
		}
		for _, g := range r.Groups {
			if !groupNames[g] {
				add(path, "assigned group %q is not declared", g)
			}
		}
	}

	return errs
}

func validatePermissions(path string, perms []PermissionSpec, add func(path, format string, args ...any)) {
	for _, p := range perms {
		if _, ok := domain.PermissionByName(p.Name); !ok {
			add(path, "unknown permission %q", p.Name)
		}
	}
}

// findGroupCycle returns a description of the first nesting cycle among
// the declared groups, or "" when there is none.
func findGroupCycle(groups []GroupSpec) string {
	children := make(map[string][]string, len(groups))
	for _, g := range groups {
		for _, m := range g.Members {
			if m.Type == MemberTypeGroup {
				children[g.Name] = append(children[g.Name], m.Name)
			}
		}
	}

	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(groups))
	var visit func(name string) string
	visit = func(name string) string {
		state[name] = inProgress
		for _, child := range children[name] {
			switch state[child] {
			case inProgress:
				return fmt.Sprintf("%q is nested in %q", child, name)
			case unvisited:
				if c := visit(child); c != "" {
					return c
				}
			}
		}
		state[name] = done
		return ""
	}
	for _, g := range groups {
		if state[g.Name] == unvisited {
			if c := visit(g.Name); c != "" {
				return c
			}
		}
	}
	return ""
}

func adminUsername(a AdminSpec) string {
	if a.Username != "" {
		return a.Username
	}
	return a.Email
}

func (s SecretSpec) isEmpty() bool {
	return s.Value == "" && s.FromEnv == ""
}

// toDomain converts the spec into a domain.Enablement.
func (e EnablementSpec) toDomain() (domain.Enablement, error) {
	def := domain.IndefiniteEnablement()
	start, end := def.StartMillis, def.EndMillis
	if e.Start != "" {
		t, err := time.Parse(time.RFC3339, e.Start)
		if err != nil {
			return domain.Enablement{}, fmt.Errorf("start: %w", err)
		}
		start = t.UnixMilli()
	}
	if e.End != "" {
		t, err := time.Parse(time.RFC3339, e.End)
		if err != nil {
			return domain.Enablement{}, fmt.Errorf("end: %w", err)
		}
		end = t.UnixMilli()
	}
	return domain.NewEnablement(e.Enabled, start, end)
}
