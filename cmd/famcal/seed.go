package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/family-calendar/internal/application"
	"github.com/example/family-calendar/internal/config"
	"github.com/example/family-calendar/internal/logging"
)

func newSeedCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the family members listed in the seed file",
		Long:  "Create the family members listed in the seed file. Existing names are left alone, so the command can be rerun.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), "famcal", cfg.LogLevel)

			if file == "" {
				file = cfg.SeedFile
			}
			seed, err := config.LoadSeed(file)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			params := make([]application.CreateUserParams, 0, len(seed.Users))
			for _, user := range seed.Users {
				params = append(params, application.CreateUserParams{Name: user.Name, Color: user.Color})
			}
			created, err := a.users.SeedUsers(cmd.Context(), params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d of %d users\n", created, len(params))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file (defaults to FAMCAL_SEED_FILE, then the built-in household)")
	return cmd
}
