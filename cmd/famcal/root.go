package main

import (
	"github.com/spf13/cobra"

	"github.com/example/family-calendar/internal/config"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "famcal",
		Short:         "Family calendar with recurring events and timezone-aware expansion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSeedCommand(),
		newOccurrencesCommand(),
		newAssistantCommand(),
	)
	return root
}

func loadConfig() (config.Config, error) {
	return config.Load()
}
