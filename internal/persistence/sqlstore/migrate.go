package sqlstore

import (
	"context"
	"embed"

	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/persistence/sqlstore/migration"
)

//go:embed migrations
var migrationFiles embed.FS

// Migrate applies the embedded migrations for the pool's dialect.
func (cp *ConnectionPool) Migrate(ctx context.Context, logger zerolog.Logger) error {
	return cp.migrationManager(logger).RunMigrations(ctx)
}

// MigrationStatus reports applied and pending migrations.
func (cp *ConnectionPool) MigrationStatus(ctx context.Context) (*migration.Status, error) {
	return cp.migrationManager(zerolog.Nop()).Status(ctx)
}

func (cp *ConnectionPool) migrationManager(logger zerolog.Logger) *migration.Manager {
	executor := migration.NewSQLExecutor(cp.db, cp.dialect.Rebind)
	return migration.NewManager(migrationFiles, "migrations/"+string(cp.dialect), executor, logger)
}
