package security

import (
	"context"
	"errors"
	"fmt"

	"tenant-rbac/internal/domain"
)

// publish hands e to p. A nil publisher drops the event.
func publish(ctx context.Context, p domain.EventPublisher, e domain.Event) error {
	if p == nil {
		return nil
	}
	if err := p.Publish(ctx, e); err != nil {
		return fmt.Errorf("publish %s: %w", e.EventName(), err)
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound *domain.NotFoundError
	return errors.As(err, &notFound)
}

// requirePermission checks that the Subject bound in ctx holds p and acts
// inside tenant. Subjects of the system tenant may act in any tenant.
// Calls made outside a subject scope are trusted, as is the case for
// bootstrap and seeding.
func requirePermission(ctx context.Context, tenant domain.TenantID, p domain.Permission) error {
	subject, err := boundSubject(ctx)
	if err != nil || subject == nil {
		return err
	}
	if !subject.HasTenant(tenant) && !subject.IsSystemUser() {
		return domain.ErrAccessDenied("%s may not act in %s", subject.User().Username, tenant)
	}
	return subject.CheckPermitted(p)
}

// requireSystemPermission is requirePermission for operations that are not
// scoped to an existing tenant. Only system tenant subjects pass.
func requireSystemPermission(ctx context.Context, p domain.Permission) error {
	subject, err := boundSubject(ctx)
	if err != nil || subject == nil {
		return err
	}
	if !subject.IsSystemUser() {
		return domain.ErrAccessDenied("%s is not a system user", subject.User().Username)
	}
	return subject.CheckPermitted(p)
}

// boundSubject returns nil, nil when ctx has no subject scope.
func boundSubject(ctx context.Context) (*domain.Subject, error) {
	if !domain.HasSubjectScope(ctx) {
		return nil, nil
	}
	subject, ok := domain.SubjectFromContext(ctx)
	if !ok {
		return nil, domain.ErrAccessDenied("authentication required")
	}
	return subject, nil
}
