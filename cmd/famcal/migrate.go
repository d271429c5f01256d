package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/family-calendar/internal/logging"
	"github.com/example/family-calendar/internal/persistence/sqlstore"
)

func newMigrateCommand() *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), "famcal", cfg.LogLevel)

			pool, err := sqlstore.Open(cmd.Context(), sqlstore.Config{
				Dialect: sqlstore.Dialect(cfg.DBDriver),
				DSN:     cfg.DSN(),
			})
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer func() {
				if cerr := pool.Close(); cerr != nil {
					logger.Error().Err(cerr).Msg("failed to close storage")
				}
			}()

			if !statusOnly {
				if err := pool.Migrate(cmd.Context(), logger); err != nil {
					return fmt.Errorf("failed to apply migrations: %w", err)
				}
			}

			status, err := pool.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dialect: %s\n", pool.Dialect())
			fmt.Fprintf(out, "current version: %s\n", status.CurrentVersion)
			fmt.Fprintf(out, "pending: %d\n", status.PendingCount)
			for _, pending := range status.PendingMigrations {
				fmt.Fprintf(out, "  %s\n", pending.Version)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Report migration status without applying anything")
	return cmd
}
