// Package repository implements the domain repository interfaces on SQLite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tenant-rbac/internal/domain"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// mapDBError translates driver errors into domain errors. what names the
// looked-up resource in the resulting message.
func mapDBError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound("%s not found", what)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrConflict("%s already exists", what)
	}
	return err
}

// withTx runs fn inside a transaction, committing when fn succeeds.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// requireAffected turns an UPDATE that touched no rows into a NotFoundError.
func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("%s not found", what)
	}
	return nil
}

func permissionFromRow(id int64, revoke int64) (domain.RevocablePermission, error) {
	p, ok := domain.PermissionByID(domain.PermissionID(id))
	if !ok {
		return domain.RevocablePermission{}, fmt.Errorf("unknown permission id %d", id)
	}
	return domain.RevocablePermission{Permission: p, IsRevocation: revoke != 0}, nil
}
