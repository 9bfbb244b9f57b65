package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// SQLiteDSN turns a DATABASE_URL that is not a PostgreSQL URL into a
// go-sqlite3 DSN. Plain paths get WAL, a busy timeout and immediate write
// transactions; "file:" DSNs are passed through untouched.
func SQLiteDSN(databaseURL string) (string, error) {
	path := strings.TrimSpace(databaseURL)
	path = strings.TrimPrefix(path, "sqlite://")
	path = strings.TrimPrefix(path, "sqlite3://")
	if path == "" {
		return "", errors.New("sqlite: empty path")
	}
	if strings.HasPrefix(path, "file:") {
		return path, nil
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", path), nil
}

func NewSQLiteDB(databaseURL string) (*sql.DB, error) {
	dsn, err := SQLiteDSN(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

// RunSQLiteMigrations applies the embedded SQLite migrations in version order.
func RunSQLiteMigrations(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := upgradeLegacySchema(ctx, db); err != nil {
		return fmt.Errorf("failed to upgrade legacy schema: %w", err)
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := loadMigrations(sqliteMigrations)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var exists bool
		err := db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", m.version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}

		log.Info().Int("version", m.version).Str("name", m.name).Msg("applied sqlite migration")
	}

	return nil
}

// upgradeLegacySchema renames the "timestamp" column used by earlier
// databases of this service to created_at, so old history stays readable.
func upgradeLegacySchema(ctx context.Context, db *sql.DB) error {
	cols, err := tableColumns(ctx, db, "conversations")
	if err != nil {
		return err
	}
	if len(cols) == 0 || cols["created_at"] || !cols["timestamp"] {
		return nil
	}
	if _, err := db.ExecContext(ctx, `ALTER TABLE conversations RENAME COLUMN timestamp TO created_at`); err != nil {
		return err
	}
	log.Info().Msg("renamed legacy conversations.timestamp column to created_at")
	return nil
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return out, rows.Err()
}
