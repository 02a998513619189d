package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tenant-rbac/internal/domain"
)

const tenantColumns = `id, name, description, server_hostname, active, system_tenant`

// TenantRepo implements domain.TenantRepository.
type TenantRepo struct {
	db *sql.DB
}

// NewTenantRepo creates a TenantRepo.
func NewTenantRepo(db *sql.DB) *TenantRepo {
	return &TenantRepo{db: db}
}

func (r *TenantRepo) Add(ctx context.Context, t domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		int64(t.ID), t.Name, t.Description, t.ServerHostname, boolToInt(t.Active), boolToInt(t.SystemTenant))
	return mapDBError(err, fmt.Sprintf("tenant %q", t.Name))
}

func (r *TenantRepo) Update(ctx context.Context, t domain.Tenant) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET name = ?, description = ?, server_hostname = ?, active = ?, system_tenant = ? WHERE id = ?`,
		t.Name, t.Description, t.ServerHostname, boolToInt(t.Active), boolToInt(t.SystemTenant), int64(t.ID))
	if err != nil {
		return mapDBError(err, fmt.Sprintf("tenant %q", t.Name))
	}
	return requireAffected(res, t.ID.String())
}

// Remove deletes a tenant with everything it owns. Roles go first because
// their backing groups are not cascaded from the role side.
func (r *TenantRepo) Remove(ctx context.Context, t domain.Tenant) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE tenant_id = ?`, int64(t.ID)); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, int64(t.ID))
		if err != nil {
			return err
		}
		return requireAffected(res, t.ID.String())
	})
}

func (r *TenantRepo) GetByID(ctx context.Context, id domain.TenantID) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, int64(id))
	t, err := scanTenant(row)
	if err != nil {
		return nil, mapDBError(err, id.String())
	}
	return t, nil
}

func (r *TenantRepo) GetByName(ctx context.Context, name string) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE name = ?`, name)
	t, err := scanTenant(row)
	if err != nil {
		return nil, mapDBError(err, fmt.Sprintf("tenant %q", name))
	}
	return t, nil
}

func (r *TenantRepo) List(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTenant(s rowScanner) (*domain.Tenant, error) {
	var (
		id             int64
		p              domain.TenantParams
		active, system int64
	)
	if err := s.Scan(&id, &p.Name, &p.Description, &p.ServerHostname, &active, &system); err != nil {
		return nil, err
	}
	p.ID = domain.TenantID(id)
	p.Active = active != 0
	p.SystemTenant = system != 0
	t, err := domain.NewTenant(p)
	if err != nil {
		return nil, fmt.Errorf("load tenant %d: %w", id, err)
	}
	return &t, nil
}

var _ domain.TenantRepository = (*TenantRepo)(nil)
