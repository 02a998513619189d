package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tenant-rbac/internal/domain"
)

const userColumns = `id, tenant_id, username, password_hash, salt_hex, enabled, enablement_start, enablement_end`

// UserRepo implements domain.UserRepository. Explicit permission entries
// live in user_permissions and are rewritten on every Update.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo creates a UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Add(ctx context.Context, u domain.User) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(u.ID), int64(u.TenantID), u.Username, u.PasswordHash, u.SaltHex,
			boolToInt(u.Enablement.Enabled), u.Enablement.StartMillis, u.Enablement.EndMillis)
		if err != nil {
			return mapDBError(err, fmt.Sprintf("user %q", u.Username))
		}
		return writeUserPermissions(ctx, tx, u)
	})
}

func (r *UserRepo) Update(ctx context.Context, u domain.User) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET username = ?, password_hash = ?, salt_hex = ?, enabled = ?,
			        enablement_start = ?, enablement_end = ?
			  WHERE id = ? AND tenant_id = ?`,
			u.Username, u.PasswordHash, u.SaltHex, boolToInt(u.Enablement.Enabled),
			u.Enablement.StartMillis, u.Enablement.EndMillis, int64(u.ID), int64(u.TenantID))
		if err != nil {
			return mapDBError(err, fmt.Sprintf("user %q", u.Username))
		}
		if err := requireAffected(res, u.ID.String()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_permissions WHERE user_id = ?`, int64(u.ID)); err != nil {
			return err
		}
		return writeUserPermissions(ctx, tx, u)
	})
}

func (r *UserRepo) Remove(ctx context.Context, u domain.User) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM group_members WHERE tenant_id = ? AND member_type = 'user' AND member_id = ?`,
			int64(u.TenantID), int64(u.ID)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ? AND tenant_id = ?`, int64(u.ID), int64(u.TenantID))
		return err
	})
}

func (r *UserRepo) GetByID(ctx context.Context, tenantID domain.TenantID, id domain.UserID) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = ? AND id = ?`, int64(tenantID), int64(id))
	return r.load(ctx, row, id.String())
}

func (r *UserRepo) GetByUsername(ctx context.Context, tenantID domain.TenantID, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = ? AND username = ?`, int64(tenantID), username)
	return r.load(ctx, row, fmt.Sprintf("user %q", username))
}

func (r *UserRepo) List(ctx context.Context, tenantID domain.TenantID) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = ? ORDER BY username`, int64(tenantID))
	if err != nil {
		return nil, err
	}
	var params []domain.UserParams
	for rows.Next() {
		p, err := scanUser(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		params = append(params, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.User, 0, len(params))
	for _, p := range params {
		u, err := r.build(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func (r *UserRepo) load(ctx context.Context, row *sql.Row, what string) (*domain.User, error) {
	p, err := scanUser(row)
	if err != nil {
		return nil, mapDBError(err, what)
	}
	return r.build(ctx, p)
}

func (r *UserRepo) build(ctx context.Context, p domain.UserParams) (*domain.User, error) {
	perms, err := readUserPermissions(ctx, r.db, p.ID)
	if err != nil {
		return nil, err
	}
	p.Permissions = perms
	u, err := domain.NewUser(p)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", int64(p.ID), err)
	}
	return &u, nil
}

func scanUser(s rowScanner) (domain.UserParams, error) {
	var (
		id, tenantID, enabled int64
		p                     domain.UserParams
	)
	err := s.Scan(&id, &tenantID, &p.Username, &p.PasswordHash, &p.SaltHex,
		&enabled, &p.Enablement.StartMillis, &p.Enablement.EndMillis)
	if err != nil {
		return domain.UserParams{}, err
	}
	p.ID = domain.UserID(id)
	p.TenantID = domain.TenantID(tenantID)
	p.Enablement.Enabled = enabled != 0
	return p, nil
}

func writeUserPermissions(ctx context.Context, q dbtx, u domain.User) error {
	for i, p := range u.Permissions() {
		_, err := q.ExecContext(ctx,
			`INSERT INTO user_permissions (user_id, permission_id, is_revocation, position) VALUES (?, ?, ?, ?)`,
			int64(u.ID), int64(p.Permission.ID), boolToInt(p.IsRevocation), i)
		if err != nil {
			return fmt.Errorf("write permission %q of user %q: %w", p.Name(), u.Username, err)
		}
	}
	return nil
}

func readUserPermissions(ctx context.Context, q dbtx, id domain.UserID) ([]domain.RevocablePermission, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT permission_id, is_revocation FROM user_permissions WHERE user_id = ? ORDER BY position`, int64(id))
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

var _ domain.UserRepository = (*UserRepo)(nil)
