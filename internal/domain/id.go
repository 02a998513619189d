package domain

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// TenantID identifies a tenant, the top-level isolation boundary.
type TenantID int64

// UserID identifies a user within a tenant.
type UserID int64

// GroupID identifies a group within a tenant.
type GroupID int64

// RoleID identifies a role within a tenant.
type RoleID int64

// PermissionID identifies an entry of the permission catalog.
type PermissionID int64

// IsZero reports whether the id is unset.
func (id TenantID) IsZero() bool { return id == 0 }

// IsZero reports whether the id is unset.
func (id UserID) IsZero() bool { return id == 0 }

// IsZero reports whether the id is unset.
func (id GroupID) IsZero() bool { return id == 0 }

// IsZero reports whether the id is unset.
func (id RoleID) IsZero() bool { return id == 0 }

// IsZero reports whether the id is unset.
func (id PermissionID) IsZero() bool { return id == 0 }

func (id TenantID) String() string     { return fmt.Sprintf("TenantID:%d", int64(id)) }
func (id UserID) String() string       { return fmt.Sprintf("UserID:%d", int64(id)) }
func (id GroupID) String() string      { return fmt.Sprintf("GroupID:%d", int64(id)) }
func (id RoleID) String() string       { return fmt.Sprintf("RoleID:%d", int64(id)) }
func (id PermissionID) String() string { return fmt.Sprintf("PermissionID:%d", int64(id)) }

// ParseTenantID converts a decimal string into a TenantID.
func ParseTenantID(s string) (TenantID, error) {
	v, err := parseID(s)
	return TenantID(v), err
}

// ParseUserID converts a decimal string into a UserID.
func ParseUserID(s string) (UserID, error) {
	v, err := parseID(s)
	return UserID(v), err
}

// ParseGroupID converts a decimal string into a GroupID.
func ParseGroupID(s string) (GroupID, error) {
	v, err := parseID(s)
	return GroupID(v), err
}

// ParseRoleID converts a decimal string into a RoleID.
func ParseRoleID(s string) (RoleID, error) {
	v, err := parseID(s)
	return RoleID(v), err
}

func parseID(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrValidation("invalid id %q", s)
	}
	if v <= 0 {
		return 0, ErrValidation("invalid id %q: must be positive", s)
	}
	return v, nil
}

// UUIDv7Generator hands out strictly increasing int64 ids derived from the
// high 64 bits of a UUIDv7 (48-bit unix milliseconds, version nibble and the
// 12-bit monotonic sequence). The top bit stays clear until the year 6429.
type UUIDv7Generator struct {
	mu   sync.Mutex
	last int64
}

// NewIDGenerator creates the default IDGenerator.
func NewIDGenerator() *UUIDv7Generator {
	return &UUIDv7Generator{}
}

// NextID returns a new id greater than any id previously returned by g.
func (g *UUIDv7Generator) NextID() (int64, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return 0, fmt.Errorf("generate uuidv7: %w", err)
	}
	next := int64(binary.BigEndian.Uint64(u[:8]) &^ (1 << 63))

	g.mu.Lock()
	defer g.mu.Unlock()
	if next <= g.last {
		next = g.last + 1
	}
	g.last = next
	return next, nil
}

var _ IDGenerator = (*UUIDv7Generator)(nil)

// NewInternalName returns a random identifier used to name
// hidden role backing groups.
func NewInternalName() string {
	return uuid.Must(uuid.NewRandom()).String()
}
