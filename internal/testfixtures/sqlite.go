package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/persistence/sqlstore"
)

// SQLiteHarness provides repositories backed by a migrated SQLite file in a
// temporary directory.
type SQLiteHarness struct {
	Pool   *sqlstore.ConnectionPool
	Users  *sqlstore.UserRepository
	Events *sqlstore.EventRepository
}

// NewSQLiteHarness opens and migrates the database; it is closed by tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "calendar.db")
	pool, err := sqlstore.Open(context.Background(), sqlstore.Config{
		Dialect: sqlstore.DialectSQLite,
		DSN:     "file:" + path,
	})
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = pool.Close() })

	if err := pool.Migrate(context.Background(), zerolog.Nop()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	return &SQLiteHarness{
		Pool:   pool,
		Users:  sqlstore.NewUserRepository(pool),
		Events: sqlstore.NewEventRepository(pool),
	}
}
