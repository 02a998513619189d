package repository

import (
	"context"
	"database/sql"
	"time"

	"tenant-rbac/internal/domain"
)

// EventRepo implements domain.EventRepository on the domain_events table.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo creates an EventRepo.
func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) Append(ctx context.Context, e domain.StoredEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO domain_events (tenant_id, name, event_version, occurred_at, payload) VALUES (?, ?, ?, ?, ?)`,
		int64(e.TenantID), e.Name, e.Version, e.OccurredAt.UnixNano(), e.Payload)
	return err
}

// List returns the newest limit events of the tenant in the order they
// were appended. A limit of zero or less returns all of them.
func (r *EventRepo) List(ctx context.Context, tenantID domain.TenantID, limit int) ([]domain.StoredEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, event_version, occurred_at, payload FROM (
		   SELECT * FROM domain_events WHERE tenant_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id`,
		int64(tenantID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.StoredEvent
	for rows.Next() {
		var (
			e            domain.StoredEvent
			tenant, nano int64
		)
		if err := rows.Scan(&e.ID, &tenant, &e.Name, &e.Version, &nano, &e.Payload); err != nil {
			return nil, err
		}
		e.TenantID = domain.TenantID(tenant)
		e.OccurredAt = time.Unix(0, nano).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ domain.EventRepository = (*EventRepo)(nil)
