package app

import (
	"context"

	"tenant-rbac/internal/declarative"
)

func (a *App) seedServices() declarative.Services {
	return declarative.Services{
		Tenants:      a.Repos.Tenants,
		Users:        a.Repos.Users,
		Groups:       a.Repos.Groups,
		Roles:        a.Repos.Roles,
		Provisioning: a.Services.Provisioning,
		Tenant:       a.Services.Tenant,
		User:         a.Services.User,
		Group:        a.Services.Group,
		Role:         a.Services.Role,
	}
}

// Seed loads the TenantSeed document at path and reconciles the store
// with it. Seeding runs outside any subject scope and is therefore not
// permission checked.
func (a *App) Seed(ctx context.Context, path string, dryRun bool) (*declarative.Plan, error) {
	doc, err := declarative.LoadFile(path)
	if err != nil {
		return nil, err
	}
	plan, err := a.Seeder.Reconcile(ctx, doc, dryRun)
	if err != nil {
		return nil, err
	}
	if !dryRun && plan.HasChanges() {
		a.logger.Info("seed applied", "path", path, "tenant", plan.Tenant, "actions", len(plan.Actions))
	}
	return plan, nil
}
