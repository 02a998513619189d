// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sync"

	"tenant-rbac/internal/domain"
)

// === Event Publisher Mock ===

// RecordingPublisher implements domain.EventPublisher and keeps every
// published event for assertions.
type RecordingPublisher struct {
	PublishFn func(ctx context.Context, e domain.Event) error

	mu     sync.Mutex
	Events []domain.Event
}

// Publish implements the interface method for testing.
func (p *RecordingPublisher) Publish(ctx context.Context, e domain.Event) error {
	if p.PublishFn != nil {
		if err := p.PublishFn(ctx, e); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, e)
	return nil
}

// Names returns the names of the recorded events in publication order.
func (p *RecordingPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		names = append(names, e.EventName())
	}
	return names
}

// HasEvent returns true if any recorded event has the given name.
func (p *RecordingPublisher) HasEvent(name string) bool {
	for _, n := range p.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Last returns the last recorded event, or nil if none.
func (p *RecordingPublisher) Last() domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Events) == 0 {
		return nil
	}
	return p.Events[len(p.Events)-1]
}

// Reset forgets all recorded events.
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = nil
}

var _ domain.EventPublisher = (*RecordingPublisher)(nil)

// === ID Generator Mock ===

// SequenceIDs implements domain.IDGenerator with a counter starting at
// Next (or 1).
type SequenceIDs struct {
	mu   sync.Mutex
	Next int64
}

// NextID implements the interface method for testing.
func (s *SequenceIDs) NextID() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Next == 0 {
		s.Next = 1
	}
	id := s.Next
	s.Next++
	return id, nil
}

var _ domain.IDGenerator = (*SequenceIDs)(nil)

// === Password Hasher Mock ===

// MockHasher implements domain.PasswordHasher without real cryptography.
// By default Hash prefixes the password and Verify compares.
type MockHasher struct {
	HashFn   func(username, password string) (string, string, error)
	VerifyFn func(password, hash, saltHex string) bool
}

// Hash implements the interface method for testing.
func (m *MockHasher) Hash(username, password string) (string, string, error) {
	if m.HashFn != nil {
		return m.HashFn(username, password)
	}
	if password == "" {
		return "", "", domain.ErrValidation("password is required")
	}
	return "hashed:" + password, "00", nil
}

// Verify implements the interface method for testing.
func (m *MockHasher) Verify(password, hash, saltHex string) bool {
	if m.VerifyFn != nil {
		return m.VerifyFn(password, hash, saltHex)
	}
	return hash == "hashed:"+password
}

var _ domain.PasswordHasher = (*MockHasher)(nil)

// === Group Repository Mock ===

// MockGroupRepo implements domain.GroupRepository for testing.
type MockGroupRepo struct {
	AddFn           func(ctx context.Context, g domain.Group) error
	UpdateFn        func(ctx context.Context, g domain.Group) error
	RemoveFn        func(ctx context.Context, g domain.Group) error
	GetByIDFn       func(ctx context.Context, tenantID domain.TenantID, id domain.GroupID) (*domain.Group, error)
	GetByNameFn     func(ctx context.Context, tenantID domain.TenantID, name string) (*domain.Group, error)
	ListFn          func(ctx context.Context, tenantID domain.TenantID) ([]domain.Group, error)
	GroupsForUserFn func(ctx context.Context, u domain.User) ([]domain.Group, error)
}

// Add implements the interface method for testing.
func (m *MockGroupRepo) Add(ctx context.Context, g domain.Group) error {
	if m.AddFn != nil {
		return m.AddFn(ctx, g)
	}
	panic("unexpected call to MockGroupRepo.Add")
}

// Update implements the interface method for testing.
func (m *MockGroupRepo) Update(ctx context.Context, g domain.Group) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, g)
	}
	panic("unexpected call to MockGroupRepo.Update")
}

// Remove implements the interface method for testing.
func (m *MockGroupRepo) Remove(ctx context.Context, g domain.Group) error {
	if m.RemoveFn != nil {
		return m.RemoveFn(ctx, g)
	}
	panic("unexpected call to MockGroupRepo.Remove")
}

// GetByID implements the interface method for testing.
func (m *MockGroupRepo) GetByID(ctx context.Context, tenantID domain.TenantID, id domain.GroupID) (*domain.Group, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, tenantID, id)
	}
	panic("unexpected call to MockGroupRepo.GetByID")
}

// GetByName implements the interface method for testing.
func (m *MockGroupRepo) GetByName(ctx context.Context, tenantID domain.TenantID, name string) (*domain.Group, error) {
	if m.GetByNameFn != nil {
		return m.GetByNameFn(ctx, tenantID, name)
	}
	panic("unexpected call to MockGroupRepo.GetByName")
}

// List implements the interface method for testing.
func (m *MockGroupRepo) List(ctx context.Context, tenantID domain.TenantID) ([]domain.Group, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, tenantID)
	}
	panic("unexpected call to MockGroupRepo.List")
}

// GroupsForUser implements the interface method for testing.
func (m *MockGroupRepo) GroupsForUser(ctx context.Context, u domain.User) ([]domain.Group, error) {
	if m.GroupsForUserFn != nil {
		return m.GroupsForUserFn(ctx, u)
	}
	panic("unexpected call to MockGroupRepo.GroupsForUser")
}

var _ domain.GroupRepository = (*MockGroupRepo)(nil)

// === Role Repository Mock ===

// MockRoleRepo implements domain.RoleRepository for testing.
type MockRoleRepo struct {
	AddFn          func(ctx context.Context, r domain.Role) error
	UpdateFn       func(ctx context.Context, r domain.Role) error
	RemoveFn       func(ctx context.Context, r domain.Role) error
	GetByIDFn      func(ctx context.Context, tenantID domain.TenantID, id domain.RoleID) (*domain.Role, error)
	GetByNameFn    func(ctx context.Context, tenantID domain.TenantID, name string) (*domain.Role, error)
	ListFn         func(ctx context.Context, tenantID domain.TenantID) ([]domain.Role, error)
	RolesForUserFn func(ctx context.Context, u domain.User) ([]domain.Role, error)
}

// Add implements the interface method for testing.
func (m *MockRoleRepo) Add(ctx context.Context, r domain.Role) error {
	if m.AddFn != nil {
		return m.AddFn(ctx, r)
	}
	panic("unexpected call to MockRoleRepo.Add")
}

// Update implements the interface method for testing.
func (m *MockRoleRepo) Update(ctx context.Context, r domain.Role) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, r)
	}
	panic("unexpected call to MockRoleRepo.Update")
}

// Remove implements the interface method for testing.
func (m *MockRoleRepo) Remove(ctx context.Context, r domain.Role) error {
	if m.RemoveFn != nil {
		return m.RemoveFn(ctx, r)
	}
	panic("unexpected call to MockRoleRepo.Remove")
}

// GetByID implements the interface method for testing.
func (m *MockRoleRepo) GetByID(ctx context.Context, tenantID domain.TenantID, id domain.RoleID) (*domain.Role, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, tenantID, id)
	}
	panic("unexpected call to MockRoleRepo.GetByID")
}

// GetByName implements the interface method for testing.
func (m *MockRoleRepo) GetByName(ctx context.Context, tenantID domain.TenantID, name string) (*domain.Role, error) {
	if m.GetByNameFn != nil {
		return m.GetByNameFn(ctx, tenantID, name)
	}
	panic("unexpected call to MockRoleRepo.GetByName")
}

// List implements the interface method for testing.
func (m *MockRoleRepo) List(ctx context.Context, tenantID domain.TenantID) ([]domain.Role, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, tenantID)
	}
	panic("unexpected call to MockRoleRepo.List")
}

// RolesForUser implements the interface method for testing.
func (m *MockRoleRepo) RolesForUser(ctx context.Context, u domain.User) ([]domain.Role, error) {
	if m.RolesForUserFn != nil {
		return m.RolesForUserFn(ctx, u)
	}
	panic("unexpected call to MockRoleRepo.RolesForUser")
}

var _ domain.RoleRepository = (*MockRoleRepo)(nil)
