// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides credential and account persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

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
		CREATE TABLE IF NOT EXISTS credentials (
			id            TEXT PRIMARY KEY,
			credential_id TEXT UNIQUE NOT NULL,
			owner         TEXT NOT NULL,
			public_key    TEXT NOT NULL,
			sign_count    INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_credentials_owner ON credentials(owner);

		CREATE TABLE IF NOT EXISTS accounts (
			id            INTEGER PRIMARY KEY,
			name          TEXT NOT NULL,
			role          TEXT,
			online_access INTEGER NOT NULL DEFAULT 0,
			consent       INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS volunteers (
			id         TEXT PRIMARY KEY,
			email      TEXT UNIQUE NOT NULL,
			name       TEXT NOT NULL,
			account_id INTEGER REFERENCES accounts(id),
			consent    INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_volunteers_account ON volunteers(account_id);

		CREATE TABLE IF NOT EXISTS volunteer_roles (
			volunteer_id TEXT NOT NULL REFERENCES volunteers(id) ON DELETE CASCADE,
			role_name    TEXT NOT NULL,

			PRIMARY KEY (volunteer_id, role_name)
		);

		CREATE TABLE IF NOT EXISTS staff (
			id          TEXT PRIMARY KEY,
			email       TEXT UNIQUE NOT NULL,
			name        TEXT NOT NULL,
			access_json TEXT,
			consent     INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
