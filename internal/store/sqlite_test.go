// ABOUTME: Shared test fixture for SQLite store tests
// ABOUTME: Creates a temporary database per test with automatic cleanup

package store

import (
	"path/filepath"
	"testing"
)

// setupTestStore creates a SQLite store backed by a temporary file.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})

	return s
}
