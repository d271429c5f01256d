package migration

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/rs/zerolog"
)

// Manager applies pending migrations in version order.
type Manager struct {
	fsys     fs.FS
	dir      string
	executor Executor
	logger   zerolog.Logger
}

// NewManager returns a manager reading migrations from dir of fsys.
func NewManager(fsys fs.FS, dir string, executor Executor, logger zerolog.Logger) *Manager {
	return &Manager{
		fsys:     fsys,
		dir:      dir,
		executor: executor,
		logger:   logger.With().Str("component", "migration").Str("dir", dir).Logger(),
	}
}

// RunMigrations executes all pending migrations in sequential order. A
// previously applied file whose checksum changed aborts the run.
func (m *Manager) RunMigrations(ctx context.Context) error {
	started := time.Now()
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	m.logger.Info().
		Str("current_version", status.CurrentVersion).
		Int("pending", status.PendingCount).
		Msg("schema state")

	for i, migration := range status.PendingMigrations {
		migrationStart := time.Now()
		m.logger.Info().
			Str("version", migration.Version).
			Str("description", migration.Description).
			Msgf("applying migration %d/%d", i+1, status.PendingCount)

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.Error().Err(err).Str("version", migration.Version).Msg("migration failed")
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		elapsed := time.Since(migrationStart)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			return NewMigrationError(migration.Version, migration.FilePath, "record migration", err)
		}
		m.logger.Info().Str("version", migration.Version).Dur("elapsed", elapsed).Msg("migration applied")
	}

	if status.PendingCount > 0 {
		m.logger.Info().Int("applied", status.PendingCount).Dur("elapsed", time.Since(started)).Msg("migrations complete")
	}
	return nil
}

// Status compares the migration files with the schema_migrations table.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}
	available, err := Scan(m.fsys, m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	appliedByVersion := make(map[string]AppliedMigration, len(applied))
	status := &Status{AppliedMigrations: applied}
	for _, a := range applied {
		appliedByVersion[a.Version] = a
		if versionNumber(a.Version) > versionNumber(status.CurrentVersion) {
			status.CurrentVersion = a.Version
		}
	}

	for _, migration := range available {
		a, ok := appliedByVersion[migration.Version]
		if !ok {
			status.PendingMigrations = append(status.PendingMigrations, migration)
			continue
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return nil, NewMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	status.PendingCount = len(status.PendingMigrations)
	return status, nil
}
