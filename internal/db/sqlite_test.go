package db

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		mode     Mode
		wantLock bool
	}{
		{ModeWrite, true},
		{ModeRead, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			dsn := buildDSN("/tmp/iam.sqlite", tt.mode)
			assert.True(t, strings.HasPrefix(dsn, "/tmp/iam.sqlite?"))
			assert.Contains(t, dsn, "_journal_mode=WAL")
			assert.Contains(t, dsn, "_busy_timeout=5000")
			assert.Contains(t, dsn, "_foreign_keys=on")
			if tt.wantLock {
				assert.Contains(t, dsn, "_txlock=immediate")
			} else {
				assert.NotContains(t, dsn, "_txlock")
			}
		})
	}
}

func TestOpenSQLite_InvalidMode(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "iam.sqlite"), "invalid", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQLite mode")
}

func TestOpenSQLite_InvalidPath(t *testing.T) {
	_, _, err := OpenSQLitePair("/nonexistent/dir/iam.sqlite", 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping sqlite")
}

func TestOpenSQLitePair_Pools(t *testing.T) {
	writeDB, readDB, err := OpenSQLitePair(filepath.Join(t.TempDir(), "iam.sqlite"), 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		writeDB.Close()
		readDB.Close()
	})

	assert.Equal(t, 1, writeDB.Stats().MaxOpenConnections)
	assert.Equal(t, 4, readDB.Stats().MaxOpenConnections)

	var journalMode string
	require.NoError(t, readDB.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", strings.ToLower(journalMode))

	var fk int
	require.NoError(t, writeDB.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestRunMigrations_CreatesSchema(t *testing.T) {
	writeDB, _ := OpenTestSQLite(t)

	for _, table := range []string{
		"tenants", "users", "user_permissions", "groups",
		"group_members", "roles", "role_permissions", "domain_events",
	} {
		var name string
		err := writeDB.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	v, err := SchemaVersion(writeDB, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	// Re-running is a no-op.
	require.NoError(t, RunMigrations(writeDB))
}

func TestOpenSQLite_ConcurrentWritesSerialize(t *testing.T) {
	writeDB, readDB := OpenTestSQLite(t)

	_, err := writeDB.Exec("INSERT INTO tenants (id, name, active) VALUES (1, 'Acme', 1)")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = writeDB.Exec(
				"INSERT INTO groups (id, tenant_id, name) VALUES (?, 1, ?)",
				idx+10, "group-"+string(rune('a'+idx)),
			)
		}(i)
	}
	wg.Wait()
	for i, e := range errs {
		assert.NoError(t, e, "writer %d failed", i)
	}

	var n int
	require.NoError(t, readDB.QueryRow("SELECT count(*) FROM groups").Scan(&n))
	assert.Equal(t, 20, n)
}
