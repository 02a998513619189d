// Package app provides application-level wiring and dependency injection
// for the IAM server and iamctl.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"tenant-rbac/internal/config"
	"tenant-rbac/internal/crypto"
	"tenant-rbac/internal/db/repository"
	"tenant-rbac/internal/declarative"
	"tenant-rbac/internal/domain"
	"tenant-rbac/internal/event"
	"tenant-rbac/internal/service/security"
)

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB // optional; falls back to WriteDB
	Logger  *slog.Logger

	// Hasher overrides the bcrypt password collaborator.
	Hasher domain.PasswordHasher
	// IDs overrides the UUIDv7 id generator.
	IDs domain.IDGenerator
}

// Repositories groups the SQLite repositories. Writers use the
// single-connection write pool.
type Repositories struct {
	Tenants *repository.TenantRepo
	Users   *repository.UserRepo
	Groups  *repository.GroupRepo
	Roles   *repository.RoleRepo
	Events  *repository.EventRepo
}

// Services groups all service pointers that the router and CLI need.
type Services struct {
	Tenant        *security.TenantService
	Provisioning  *security.TenantProvisioningService
	User          *security.UserService
	Group         *security.GroupService
	Role          *security.RoleService
	Authorization *security.AuthorizationService
}

// App holds the fully-wired application.
type App struct {
	Repos    Repositories
	Services Services
	Bus      *event.Bus
	Seeder   *declarative.Reconciler

	logger *slog.Logger
}

// New wires repositories, the event bus and services from the provided
// deps. When Cfg.SeedFile is set the seed is applied before returning.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	readDB := deps.ReadDB
	if readDB == nil {
		readDB = deps.WriteDB
	}

	// === Repositories (write-pool) ===
	repos := Repositories{
		Tenants: repository.NewTenantRepo(deps.WriteDB),
		Users:   repository.NewUserRepo(deps.WriteDB),
		Groups:  repository.NewGroupRepo(deps.WriteDB),
		Roles:   repository.NewRoleRepo(deps.WriteDB),
		Events:  repository.NewEventRepo(deps.WriteDB),
	}

	// === Repositories (read-pool) ===
	readUsers := repository.NewUserRepo(readDB)
	readRoles := repository.NewRoleRepo(readDB)

	// === Events ===
	bus := event.NewBus(logger.With("component", "events"))
	bus.Subscribe("recorder", event.NewRecorder(repos.Events))
	bus.Subscribe("log", event.LogSubscriber(logger.With("component", "events")))

	// === Collaborators ===
	hasher := deps.Hasher
	if hasher == nil {
		cost := 0
		if cfg != nil {
			cost = cfg.BcryptCost
		}
		hasher = crypto.NewBcryptHasher(cost)
	}
	ids := deps.IDs
	if ids == nil {
		ids = domain.NewIDGenerator()
	}

	// === Services ===
	svcLogger := logger.With("component", "security")
	groupSvc := security.NewGroupService(repos.Groups, bus, svcLogger)
	roleSvc := security.NewRoleService(groupSvc, bus, svcLogger)
	tenantSvc := security.NewTenantService(ids, hasher, bus, svcLogger)
	services := Services{
		Tenant:        tenantSvc,
		Provisioning:  security.NewTenantProvisioningService(repos.Tenants, repos.Users, repos.Roles, tenantSvc, roleSvc, ids, bus, svcLogger),
		User:          security.NewUserService(hasher, bus, svcLogger),
		Group:         groupSvc,
		Role:          roleSvc,
		Authorization: security.NewAuthorizationService(readUsers, readRoles, roleSvc, svcLogger),
	}

	a := &App{
		Repos:    repos,
		Services: services,
		Bus:      bus,
		logger:   logger,
	}
	a.Seeder = declarative.NewReconciler(a.seedServices(), logger.With("component", "seed"))

	if cfg != nil && cfg.SeedFile != "" {
		if _, err := a.Seed(ctx, cfg.SeedFile, false); err != nil {
			return nil, fmt.Errorf("apply seed %s: %w", cfg.SeedFile, err)
		}
	}
	return a, nil
}
