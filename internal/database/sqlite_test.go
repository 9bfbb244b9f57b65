package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain path", "cryptopal.db", "file:cryptopal.db?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", false},
		{"sqlite scheme", "sqlite://data/chat.db", "file:data/chat.db?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", false},
		{"file dsn passes through", "file::memory:?cache=shared", "file::memory:?cache=shared", false},
		{"empty", "  ", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SQLiteDSN(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestIsPostgresURL(t *testing.T) {
	require.True(t, IsPostgresURL("postgres://u:p@localhost/db"))
	require.True(t, IsPostgresURL("postgresql://localhost/db"))
	require.False(t, IsPostgresURL("cryptopal.db"))
	require.False(t, IsPostgresURL("file:cryptopal.db"))
}

func TestRunSQLiteMigrations_Idempotent(t *testing.T) {
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunSQLiteMigrations(db))
	require.NoError(t, RunSQLiteMigrations(db))

	cols, err := tableColumns(context.Background(), db, "conversations")
	require.NoError(t, err)
	for _, c := range []string{"id", "session_id", "role", "content", "created_at"} {
		require.True(t, cols[c], "missing column %s", c)
	}

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&applied))
	require.Equal(t, 1, applied)
}

func TestRunSQLiteMigrations_UpgradesLegacyTable(t *testing.T) {
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "legacy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			role TEXT,
			content TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO conversations (session_id, role, content) VALUES ('abc', 'user', 'hi')`)
	require.NoError(t, err)

	require.NoError(t, RunSQLiteMigrations(db))

	cols, err := tableColumns(context.Background(), db, "conversations")
	require.NoError(t, err)
	require.True(t, cols["created_at"])
	require.False(t, cols["timestamp"])

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM conversations WHERE session_id = 'abc'`).Scan(&n))
	require.Equal(t, 1, n)
}
