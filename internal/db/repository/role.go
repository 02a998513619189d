package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tenant-rbac/internal/domain"
)

const roleColumns = `id, tenant_id, name, description, supports_nesting, group_id`

// rolesForUserQuery selects the roles whose backing group holds the user
// directly, plus, for nesting roles, those whose backing group reaches the
// user through nested groups. UNION keeps the recursion finite on cyclic
// data.
const rolesForUserQuery = `
WITH RECURSIVE
  direct(group_id) AS (
    SELECT group_id FROM group_members
     WHERE tenant_id = ? AND member_type = 'user' AND member_id = ?
  ),
  ancestors(group_id) AS (
    SELECT group_id FROM direct
    UNION
    SELECT gm.group_id
      FROM group_members gm
      JOIN ancestors a ON gm.member_type = 'group' AND gm.member_id = a.group_id
  )
SELECT ` + roleColumns + `
  FROM roles r
 WHERE r.tenant_id = ?
   AND (r.group_id IN (SELECT group_id FROM direct)
        OR (r.supports_nesting = 1 AND r.group_id IN (SELECT group_id FROM ancestors)))
 ORDER BY r.name`

// RoleRepo implements domain.RoleRepository. A role and its backing group
// are always written in one transaction.
type RoleRepo struct {
	db *sql.DB
}

// NewRoleRepo creates a RoleRepo.
func NewRoleRepo(db *sql.DB) *RoleRepo {
	return &RoleRepo{db: db}
}

func (r *RoleRepo) Add(ctx context.Context, role domain.Role) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertGroup(ctx, tx, role.Group()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO roles (`+roleColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			int64(role.ID), int64(role.TenantID), role.Name, role.Description,
			boolToInt(role.SupportsNesting), int64(role.Group().ID))
		if err != nil {
			return mapDBError(err, fmt.Sprintf("role %q", role.Name))
		}
		return writeRolePermissions(ctx, tx, role)
	})
}

func (r *RoleRepo) Update(ctx context.Context, role domain.Role) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE roles SET name = ?, description = ?, supports_nesting = ? WHERE id = ? AND tenant_id = ?`,
			role.Name, role.Description, boolToInt(role.SupportsNesting), int64(role.ID), int64(role.TenantID))
		if err != nil {
			return mapDBError(err, fmt.Sprintf("role %q", role.Name))
		}
		if err := requireAffected(res, role.ID.String()); err != nil {
			return err
		}
		if err := updateGroup(ctx, tx, role.Group()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = ?`, int64(role.ID)); err != nil {
			return err
		}
		return writeRolePermissions(ctx, tx, role)
	})
}

func (r *RoleRepo) Remove(ctx context.Context, role domain.Role) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM roles WHERE id = ? AND tenant_id = ?`, int64(role.ID), int64(role.TenantID)); err != nil {
			return err
		}
		return deleteGroup(ctx, tx, role.Group())
	})
}

func (r *RoleRepo) GetByID(ctx context.Context, tenantID domain.TenantID, id domain.RoleID) (*domain.Role, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE tenant_id = ? AND id = ?`, int64(tenantID), int64(id))
	return r.load(ctx, row, id.String())
}

func (r *RoleRepo) GetByName(ctx context.Context, tenantID domain.TenantID, name string) (*domain.Role, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE tenant_id = ? AND name = ?`, int64(tenantID), name)
	return r.load(ctx, row, fmt.Sprintf("role %q", name))
}

func (r *RoleRepo) List(ctx context.Context, tenantID domain.TenantID) ([]domain.Role, error) {
	return r.list(ctx, `SELECT `+roleColumns+` FROM roles WHERE tenant_id = ? ORDER BY name`, int64(tenantID))
}

func (r *RoleRepo) RolesForUser(ctx context.Context, u domain.User) ([]domain.Role, error) {
	return r.list(ctx, rolesForUserQuery, int64(u.TenantID), int64(u.ID), int64(u.TenantID))
}

type roleRow struct {
	params  domain.RoleParams
	groupID domain.GroupID
}

func (r *RoleRepo) load(ctx context.Context, row *sql.Row, what string) (*domain.Role, error) {
	rr, err := scanRole(row)
	if err != nil {
		return nil, mapDBError(err, what)
	}
	return r.build(ctx, rr)
}

func (r *RoleRepo) list(ctx context.Context, query string, args ...any) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var found []roleRow
	for rows.Next() {
		rr, err := scanRole(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		found = append(found, rr)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Role, 0, len(found))
	for _, rr := range found {
		role, err := r.build(ctx, rr)
		if err != nil {
			return nil, err
		}
		out = append(out, *role)
	}
	return out, nil
}

func (r *RoleRepo) build(ctx context.Context, rr roleRow) (*domain.Role, error) {
	group, err := getGroup(ctx, r.db, `id = ?`, rr.groupID.String(), int64(rr.groupID))
	if err != nil {
		return nil, fmt.Errorf("load backing group of role %q: %w", rr.params.Name, err)
	}
	perms, err := readRolePermissions(ctx, r.db, rr.params.ID)
	if err != nil {
		return nil, err
	}
	p := rr.params
	p.Group = *group
	p.Permissions = perms
	role, err := domain.NewRole(p)
	if err != nil {
		return nil, fmt.Errorf("load role %d: %w", int64(p.ID), err)
	}
	return &role, nil
}

func scanRole(s rowScanner) (roleRow, error) {
	var (
		id, tenantID, nesting, groupID int64
		rr                             roleRow
	)
	if err := s.Scan(&id, &tenantID, &rr.params.Name, &rr.params.Description, &nesting, &groupID); err != nil {
		return roleRow{}, err
	}
	rr.params.ID = domain.RoleID(id)
	rr.params.TenantID = domain.TenantID(tenantID)
	rr.params.SupportsNesting = nesting != 0
	rr.groupID = domain.GroupID(groupID)
	return rr, nil
}

func writeRolePermissions(ctx context.Context, q dbtx, role domain.Role) error {
	for i, p := range role.Permissions() {
		_, err := q.ExecContext(ctx,
			`INSERT INTO role_permissions (role_id, position, permission_id, is_revocation) VALUES (?, ?, ?, ?)`,
			int64(role.ID), i, int64(p.Permission.ID), boolToInt(p.IsRevocation))
		if err != nil {
			return fmt.Errorf("write permission %q of role %q: %w", p.Name(), role.Name, err)
		}
	}
	return nil
}

func readRolePermissions(ctx context.Context, q dbtx, id domain.RoleID) ([]domain.RevocablePermission, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT permission_id, is_revocation FROM role_permissions WHERE role_id = ? ORDER BY position`, int64(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.RevocablePermission
	for rows.Next() {
		var pid, revoke int64
		if err := rows.Scan(&pid, &revoke); err != nil {
			return nil, err
		}
		p, err := permissionFromRow(pid, revoke)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ domain.RoleRepository = (*RoleRepo)(nil)
