package cli

import (
	"context"
	"fmt"
	"io"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"tenant-rbac/internal/app"
	internaldb "tenant-rbac/internal/db"
	"tenant-rbac/internal/domain"
)

// openApp opens the store named by --db, migrates it and wires the
// services. The returned func closes the store.
func openApp(ctx context.Context, g *globals, stderr io.Writer) (*app.App, func(), error) {
	writeDB, readDB, err := internaldb.OpenSQLitePair(g.db, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("open store %s: %w", g.db, err)
	}
	closeAll := func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	}
	if err := internaldb.RunMigrations(writeDB); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("migrate %s: %w", g.db, err)
	}
	a, err := app.New(ctx, app.Deps{WriteDB: writeDB, ReadDB: readDB, Logger: g.logger(stderr)})
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return a, closeAll, nil
}

// withTenant opens the store and resolves --tenant before calling fn.
func withTenant(cmd *cobra.Command, g *globals, fn func(a *app.App, tenant *domain.Tenant) error) error {
	if g.tenant == "" {
		return fmt.Errorf("--tenant is required")
	}
	a, closeFn, err := openApp(cmd.Context(), g, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeFn()

	tenant, err := a.Repos.Tenants.GetByName(cmd.Context(), g.tenant)
	if err != nil {
		return err
	}
	return fn(a, tenant)
}
