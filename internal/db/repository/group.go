package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tenant-rbac/internal/domain"
)

const groupColumns = `id, tenant_id, name, description, internal`

// GroupRepo implements domain.GroupRepository. Direct members are kept in
// group_members in insertion order.
type GroupRepo struct {
	db *sql.DB
}

// NewGroupRepo creates a GroupRepo.
func NewGroupRepo(db *sql.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

func (r *GroupRepo) Add(ctx context.Context, g domain.Group) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return insertGroup(ctx, tx, g)
	})
}

func (r *GroupRepo) Update(ctx context.Context, g domain.Group) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return updateGroup(ctx, tx, g)
	})
}

func (r *GroupRepo) Remove(ctx context.Context, g domain.Group) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return deleteGroup(ctx, tx, g)
	})
}

func (r *GroupRepo) GetByID(ctx context.Context, tenantID domain.TenantID, id domain.GroupID) (*domain.Group, error) {
	return getGroup(ctx, r.db, `tenant_id = ? AND id = ?`, id.String(), int64(tenantID), int64(id))
}

func (r *GroupRepo) GetByName(ctx context.Context, tenantID domain.TenantID, name string) (*domain.Group, error) {
	return getGroup(ctx, r.db, `tenant_id = ? AND name = ?`, fmt.Sprintf("group %q", name), int64(tenantID), name)
}

func (r *GroupRepo) List(ctx context.Context, tenantID domain.TenantID) ([]domain.Group, error) {
	return listGroups(ctx, r.db,
		`SELECT `+groupColumns+` FROM groups
		  WHERE tenant_id = ? AND NOT (internal = 1 AND name LIKE ? ESCAPE '\')
		  ORDER BY name`,
		int64(tenantID), likePrefix(domain.RoleGroupPrefix))
}

func (r *GroupRepo) GroupsForUser(ctx context.Context, u domain.User) ([]domain.Group, error) {
	return listGroups(ctx, r.db,
		`SELECT `+groupColumns+` FROM groups
		  WHERE id IN (SELECT group_id FROM group_members
		                WHERE tenant_id = ? AND member_type = 'user' AND member_id = ?)
		  ORDER BY id`,
		int64(u.TenantID), int64(u.ID))
}

func insertGroup(ctx context.Context, q dbtx, g domain.Group) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?)`,
		int64(g.ID), int64(g.TenantID), g.Name, g.Description, boolToInt(g.Internal))
	if err != nil {
		return mapDBError(err, fmt.Sprintf("group %q", g.Name))
	}
	return writeMembers(ctx, q, g)
}

func updateGroup(ctx context.Context, q dbtx, g domain.Group) error {
	res, err := q.ExecContext(ctx,
		`UPDATE groups SET name = ?, description = ?, internal = ? WHERE id = ? AND tenant_id = ?`,
		g.Name, g.Description, boolToInt(g.Internal), int64(g.ID), int64(g.TenantID))
	if err != nil {
		return mapDBError(err, fmt.Sprintf("group %q", g.Name))
	}
	if err := requireAffected(res, g.ID.String()); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, int64(g.ID)); err != nil {
		return err
	}
	return writeMembers(ctx, q, g)
}

// deleteGroup removes g and every membership that references it as a
// nested member.
func deleteGroup(ctx context.Context, q dbtx, g domain.Group) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM group_members WHERE tenant_id = ? AND member_type = 'group' AND member_id = ?`,
		int64(g.TenantID), int64(g.ID)); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `DELETE FROM groups WHERE id = ? AND tenant_id = ?`, int64(g.ID), int64(g.TenantID))
	return mapDBError(err, g.ID.String())
}

func writeMembers(ctx context.Context, q dbtx, g domain.Group) error {
	for i, m := range g.Members() {
		_, err := q.ExecContext(ctx,
			`INSERT INTO group_members (group_id, tenant_id, member_type, member_id, position) VALUES (?, ?, ?, ?, ?)`,
			int64(g.ID), int64(m.TenantID), string(m.Member.Kind()), domain.MemberRawID(m.Member), i)
		if err != nil {
			return fmt.Errorf("write member of group %q: %w", g.Name, err)
		}
	}
	return nil
}

func readMembers(ctx context.Context, q dbtx, id domain.GroupID) ([]domain.GroupMember, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT tenant_id, member_type, member_id FROM group_members WHERE group_id = ? ORDER BY position`, int64(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.GroupMember
	for rows.Next() {
		var (
			tenantID, memberID int64
			kind               string
		)
		if err := rows.Scan(&tenantID, &kind, &memberID); err != nil {
			return nil, err
		}
		ref, err := domain.NewMemberRef(domain.MemberKind(kind), memberID)
		if err != nil {
			return nil, fmt.Errorf("load member of group %d: %w", int64(id), err)
		}
		out = append(out, domain.GroupMember{TenantID: domain.TenantID(tenantID), Member: ref, ParentGroupID: id})
	}
	return out, rows.Err()
}

func getGroup(ctx context.Context, q dbtx, where, what string, args ...any) (*domain.Group, error) {
	row := q.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE `+where, args...)
	p, err := scanGroup(row)
	if err != nil {
		return nil, mapDBError(err, what)
	}
	return buildGroup(ctx, q, p)
}

func listGroups(ctx context.Context, q dbtx, query string, args ...any) ([]domain.Group, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var params []domain.GroupParams
	for rows.Next() {
		p, err := scanGroup(rows)
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

	out := make([]domain.Group, 0, len(params))
	for _, p := range params {
		g, err := buildGroup(ctx, q, p)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, nil
}

func buildGroup(ctx context.Context, q dbtx, p domain.GroupParams) (*domain.Group, error) {
	members, err := readMembers(ctx, q, p.ID)
	if err != nil {
		return nil, err
	}
	p.Members = members
	g, err := domain.NewGroup(p)
	if err != nil {
		return nil, fmt.Errorf("load group %d: %w", int64(p.ID), err)
	}
	return &g, nil
}

func scanGroup(s rowScanner) (domain.GroupParams, error) {
	var (
		id, tenantID, internal int64
		p                      domain.GroupParams
	)
	if err := s.Scan(&id, &tenantID, &p.Name, &p.Description, &internal); err != nil {
		return domain.GroupParams{}, err
	}
	p.ID = domain.GroupID(id)
	p.TenantID = domain.TenantID(tenantID)
	p.Internal = internal != 0
	return p, nil
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

var _ domain.GroupRepository = (*GroupRepo)(nil)
