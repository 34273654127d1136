// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"projecthub/internal/platform/config"
	"projecthub/internal/platform/database"
)

// New returns a fresh in-memory SQLite database with all migrations applied.
// The single connection is closed when the test ends.
func New(t testing.TB) *sql.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Driver: database.DriverCGO, URL: ":memory:", MaxConnections: 1})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
