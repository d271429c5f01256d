package main

import (
	"github.com/spf13/cobra"

	"github.com/example/family-calendar/internal/assistant"
	"github.com/example/family-calendar/internal/logging"
)

func newAssistantCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assistant",
		Short: "Serve the calendar tools over MCP on stdin/stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// stdout carries the protocol.
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), "famcal-assistant", cfg.LogLevel)

			a, err := openApp(cmd.Context(), cfg, logger, appOptions{Integrations: true})
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := assistant.NewServer(assistant.NewCalendarHandler(a.calendar, a.users, logger))
			if err != nil {
				return err
			}
			logger.Info().Str("version", assistant.Version).Msg("assistant listening on stdio")
			return assistant.ServeStdio(s)
		},
	}
}
