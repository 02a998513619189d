package security

import (
	"context"
	"fmt"
	"log/slog"

	"tenant-rbac/internal/domain"
)

// GroupService maintains group membership. It never persists: callers save
// the returned aggregate. Events are published for non-internal groups only.
type GroupService struct {
	groups    domain.GroupRepository
	publisher domain.EventPublisher
	logger    *slog.Logger
}

// NewGroupService creates a new GroupService.
func NewGroupService(groups domain.GroupRepository, publisher domain.EventPublisher, logger *slog.Logger) *GroupService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GroupService{groups: groups, publisher: publisher, logger: logger}
}

// AddGroup nests child inside target. It fails when the groups belong to
// different tenants or when the new edge would close a cycle, that is when
// target is child itself or already reachable from child.
func (s *GroupService) AddGroup(ctx context.Context, target, child domain.Group) (domain.Group, error) {
	if target.TenantID != child.TenantID {
		return domain.Group{}, domain.ErrValidation("wrong tenant for group %q", target.Name)
	}
	if target.ID == child.ID {
		return domain.Group{}, domain.ErrValidation("group recursion is not allowed: %q cannot contain itself", target.Name)
	}
	cyclic, err := s.IsMemberGroup(ctx, child, target.AsMemberOf(child))
	if err != nil {
		return domain.Group{}, err
	}
	if cyclic {
		return domain.Group{}, domain.ErrValidation("group recursion is not allowed: %q already contains %q", child.Name, target.Name)
	}

	member := child.AsMemberOf(target)
	if target.HasMember(member) {
		return target, nil
	}
	next, err := target.WithMember(member)
	if err != nil {
		return domain.Group{}, err
	}
	if !target.Internal {
		if err := publish(ctx, s.publisher, domain.NewGroupAddedToGroup(next.TenantID, next.Name, child.Name)); err != nil {
			return domain.Group{}, err
		}
	}
	return next, nil
}

// RemoveGroup removes child from the direct members of target. Groups
// nested deeper are left alone.
func (s *GroupService) RemoveGroup(ctx context.Context, target, child domain.Group) (domain.Group, error) {
	if target.TenantID != child.TenantID {
		return domain.Group{}, domain.ErrValidation("wrong tenant for group %q", target.Name)
	}
	member := child.AsMemberOf(target)
	if !target.HasMember(member) {
		return target, nil
	}
	next := target.WithoutMember(member)
	if !target.Internal {
		if err := publish(ctx, s.publisher, domain.NewGroupRemovedFromGroup(next.TenantID, next.Name, child.Name)); err != nil {
			return domain.Group{}, err
		}
	}
	return next, nil
}

// AddUser adds user as a direct member of target.
func (s *GroupService) AddUser(ctx context.Context, target domain.Group, user domain.User) (domain.Group, error) {
	if target.TenantID != user.TenantID {
		return domain.Group{}, domain.ErrValidation("wrong tenant for group %q", target.Name)
	}
	member := user.AsMemberOf(target)
	if target.HasMember(member) {
		return target, nil
	}
	next, err := target.WithMember(member)
	if err != nil {
		return domain.Group{}, err
	}
	if !target.Internal {
		if err := publish(ctx, s.publisher, domain.NewGroupUserAdded(next.TenantID, next.Name, user.Username)); err != nil {
			return domain.Group{}, err
		}
	}
	return next, nil
}

// RemoveUser removes user from the direct members of target.
func (s *GroupService) RemoveUser(ctx context.Context, target domain.Group, user domain.User) (domain.Group, error) {
	if target.TenantID != user.TenantID {
		return domain.Group{}, domain.ErrValidation("wrong tenant for group %q", target.Name)
	}
	member := user.AsMemberOf(target)
	if !target.HasMember(member) {
		return target, nil
	}
	next := target.WithoutMember(member)
	if !target.Internal {
		if err := publish(ctx, s.publisher, domain.NewGroupUserRemoved(next.TenantID, next.Name, user.Username)); err != nil {
			return domain.Group{}, err
		}
	}
	return next, nil
}

// HasMember reports whether user belongs to target. With deep set, nested
// groups are searched too. The user must currently be enabled.
func (s *GroupService) HasMember(ctx context.Context, target domain.Group, user domain.User, deep bool) (bool, error) {
	if target.TenantID != user.TenantID {
		return false, domain.ErrValidation("wrong tenant for group %q", target.Name)
	}
	if !user.IsEnabled() {
		return false, domain.ErrValidation("user %q must be enabled", user.Username)
	}
	if target.HasMember(user.AsMemberOf(target)) {
		return true, nil
	}
	if !deep {
		return false, nil
	}

	found := false
	err := s.walkNested(ctx, target, func(g domain.Group) bool {
		found = g.HasMember(user.AsMemberOf(g))
		return found
	})
	return found, err
}

// IsMemberGroup reports whether candidate appears anywhere in the nested
// group closure of parent.
func (s *GroupService) IsMemberGroup(ctx context.Context, parent domain.Group, candidate domain.GroupMember) (bool, error) {
	if !candidate.IsGroup() {
		return false, nil
	}
	if parent.HasMember(candidate) {
		return true, nil
	}
	found := false
	err := s.walkNested(ctx, parent, func(g domain.Group) bool {
		found = g.HasMember(candidate)
		return found
	})
	return found, err
}

// walkNested visits every group reachable from root through nested-group
// members, root excluded, until visit returns true. Each group id is loaded
// at most once, so cyclic data terminates. Members whose group no longer
// exists are skipped.
func (s *GroupService) walkNested(ctx context.Context, root domain.Group, visit func(domain.Group) bool) error {
	visited := map[domain.GroupID]bool{root.ID: true}
	queue := root.NestedGroupIDs()

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		g, err := s.groups.GetByID(ctx, root.TenantID, id)
		if err != nil {
			if isNotFound(err) {
				s.logger.Debug("nested group missing, skipping", "tenant", root.TenantID, "group_id", id)
				continue
			}
			return fmt.Errorf("load nested group %s: %w", id, err)
		}
		if visit(*g) {
			return nil
		}
		queue = append(queue, g.NestedGroupIDs()...)
	}
	return nil
}
