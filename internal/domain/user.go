package domain

// User is an immutable tenant member. Its permission entries are explicit
// per-user overrides that win over anything inherited from roles.
type User struct {
	ID           UserID
	TenantID     TenantID
	Username     string
	PasswordHash string
	SaltHex      string
	Enablement   Enablement

	permissions []RevocablePermission
}

// UserParams carries the fields for NewUser.
type UserParams struct {
	ID           UserID
	TenantID     TenantID
	Username     string
	PasswordHash string
	SaltHex      string
	Enablement   Enablement
	Permissions  []RevocablePermission
}

// NewUser validates p and returns a User.
func NewUser(p UserParams) (User, error) {
	if p.ID.IsZero() {
		return User{}, ErrValidation("user id is required")
	}
	if p.TenantID.IsZero() {
		return User{}, ErrValidation("user tenant id is required")
	}
	if err := checkLength("username", p.Username, 1, 100); err != nil {
		return User{}, err
	}
	if p.Enablement.StartMillis >= p.Enablement.EndMillis {
		return User{}, ErrValidation("enablement start must be before end")
	}
	return User{
		ID:           p.ID,
		TenantID:     p.TenantID,
		Username:     p.Username,
		PasswordHash: p.PasswordHash,
		SaltHex:      p.SaltHex,
		Enablement:   p.Enablement,
		permissions:  copyPermissions(p.Permissions),
	}, nil
}

// IsEnabled reports whether the user's enablement is currently in effect.
func (u User) IsEnabled() bool { return u.Enablement.IsActive() }

// Permissions returns a copy of the explicit per-user entries.
func (u User) Permissions() []RevocablePermission {
	return copyPermissions(u.permissions)
}

// AsMemberOf returns the membership record for u inside parent.
func (u User) AsMemberOf(parent Group) GroupMember {
	return GroupMember{TenantID: u.TenantID, Member: UserRef{ID: u.ID}, ParentGroupID: parent.ID}
}

// WithEnablement returns a copy of u with e applied.
func (u User) WithEnablement(e Enablement) User {
	next := u
	next.Enablement = e
	return next
}

// WithPassword returns a copy of u with new credentials.
func (u User) WithPassword(hash, saltHex string) User {
	next := u
	next.PasswordHash = hash
	next.SaltHex = saltHex
	return next
}

// WithPermission returns a copy of u whose explicit entry for p's name is
// replaced by p.
func (u User) WithPermission(p RevocablePermission) User {
	next := u
	next.permissions = make([]RevocablePermission, 0, len(u.permissions)+1)
	for _, existing := range u.permissions {
		if existing.Name() != p.Name() {
			next.permissions = append(next.permissions, existing)
		}
	}
	next.permissions = append(next.permissions, p)
	return next
}

// WithoutPermission returns a copy of u without an explicit entry for name.
func (u User) WithoutPermission(name string) User {
	next := u
	next.permissions = make([]RevocablePermission, 0, len(u.permissions))
	for _, existing := range u.permissions {
		if existing.Name() != name {
			next.permissions = append(next.permissions, existing)
		}
	}
	return next
}
