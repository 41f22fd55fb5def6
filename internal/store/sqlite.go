// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Handles connection setup, schema creation, and shared scan helpers

package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"database/sql"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			username        TEXT NOT NULL UNIQUE,
			email           TEXT NOT NULL UNIQUE,
			password_hash   TEXT NOT NULL,
			salt            TEXT NOT NULL,
			kdf_params      TEXT NOT NULL,
			email_verified  INTEGER NOT NULL DEFAULT 0,
			vault_blob      BLOB,
			created_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS devices (
			id                   TEXT PRIMARY KEY,
			fingerprint          TEXT NOT NULL UNIQUE,
			public_key           BLOB NOT NULL,
			pending_challenge    BLOB,
			challenge_issued_at  TEXT,
			created_at           TEXT NOT NULL,
			last_seen            TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_devices_fingerprint ON devices(fingerprint);

		CREATE TABLE IF NOT EXISTS user_devices (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			device_id  TEXT NOT NULL REFERENCES devices(id),
			linked_at  TEXT NOT NULL,

			PRIMARY KEY (user_id, device_id)
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			device_id     TEXT NOT NULL REFERENCES devices(id),
			refresh_token TEXT NOT NULL,
			ip_address    TEXT,
			user_agent    TEXT,
			created_at    TEXT NOT NULL,

			UNIQUE (user_id, device_id)
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

		CREATE TABLE IF NOT EXISTS vault_items (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type           TEXT NOT NULL,
			encrypted_data BLOB NOT NULL,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL,
			deleted_at     TEXT,

			CHECK (type IN ('login', 'identity', 'card', 'note', 'ssh_key'))
		);

		CREATE INDEX IF NOT EXISTS idx_vault_items_user ON vault_items(user_id);
		CREATE INDEX IF NOT EXISTS idx_vault_items_deleted ON vault_items(deleted_at);

		CREATE TABLE IF NOT EXISTS user_settings (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			device_id       TEXT NOT NULL REFERENCES devices(id),
			session_timeout INTEGER NOT NULL DEFAULT 3,
			theme           TEXT NOT NULL DEFAULT 'dark',

			UNIQUE (user_id, device_id)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the database connection is still usable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// formatTime renders a timestamp in the canonical column format
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a timestamp stored by formatTime
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// parseNullTime converts a nullable timestamp column to *time.Time
func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullTime converts a *time.Time to a nullable column value
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
