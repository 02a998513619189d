package domain

// Tenant is the top-level isolation boundary.
type Tenant struct {
	ID             TenantID
	Name           string
	Description    string
	ServerHostname string
	Active         bool
	SystemTenant   bool
}

// TenantParams carries the fields for NewTenant.
type TenantParams struct {
	ID             TenantID
	Name           string
	Description    string
	ServerHostname string
	Active         bool
	SystemTenant   bool
}

// NewTenant validates p and returns a Tenant.
func NewTenant(p TenantParams) (Tenant, error) {
	if p.ID.IsZero() {
		return Tenant{}, ErrValidation("tenant id is required")
	}
	if err := checkLength("tenant name", p.Name, 1, 100); err != nil {
		return Tenant{}, err
	}
	return Tenant(p), nil
}

// WithActive returns a copy of t with the activation flag set.
func (t Tenant) WithActive(active bool) Tenant {
	next := t
	next.Active = active
	return next
}
