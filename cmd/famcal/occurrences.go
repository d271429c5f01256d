package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/family-calendar/internal/application"
	"github.com/example/family-calendar/internal/calendar"
	"github.com/example/family-calendar/internal/logging"
	"github.com/example/family-calendar/internal/timecodec"
)

type occurrenceLine struct {
	InstanceID string `json:"instance_id"`
	Title      string `json:"title"`
	UserID     string `json:"user_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	AllDay     bool   `json:"all_day"`
}

type occurrencesOutput struct {
	Timezone    string              `json:"timezone"`
	From        string              `json:"from"`
	To          string              `json:"to"`
	Occurrences []occurrenceLine    `json:"occurrences"`
	Faults      []map[string]string `json:"faults,omitempty"`
}

func newOccurrencesCommand() *cobra.Command {
	var (
		from, to, tz string
		users        []string
	)
	cmd := &cobra.Command{
		Use:   "occurrences",
		Short: "Print the expanded calendar for a window as JSON",
		Example: "  famcal occurrences --from 2024-03-25 --to 2024-04-01 --tz Europe/Stockholm\n" +
			"  famcal occurrences --from 2024-03-31T00:00:00Z --to 2024-04-01T00:00:00Z --user USER_ID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), "famcal", cfg.LogLevel)

			zone := tz
			if zone == "" {
				zone = cfg.Timezone
			}
			codec, err := timecodec.Load(zone)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			start, end := now.Add(-cfg.DefaultWindowPast), now.Add(cfg.DefaultWindowFuture)
			if from != "" {
				if start, err = calendar.ParseInstant(from, codec); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			if to != "" {
				if end, err = calendar.ParseInstant(to, codec); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}

			a, err := openApp(cmd.Context(), cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.calendar.ListOccurrences(cmd.Context(), application.ListOccurrencesParams{
				Start:    start,
				End:      end,
				Timezone: zone,
				OwnerIDs: users,
			})
			if err != nil {
				return err
			}

			out := occurrencesOutput{
				Timezone:    list.Timezone,
				From:        codec.ToLocalWallClock(list.Window.Start).String(),
				To:          codec.ToLocalWallClock(list.Window.End).String(),
				Occurrences: make([]occurrenceLine, 0, len(list.Occurrences)),
			}
			for _, occ := range list.Occurrences {
				out.Occurrences = append(out.Occurrences, occurrenceLine{
					InstanceID: occ.InstanceID,
					Title:      occ.Title,
					UserID:     occ.OwnerID,
					Start:      occ.LocalStart.String(),
					End:        occ.LocalEnd.String(),
					AllDay:     occ.AllDay,
				})
			}
			for _, fault := range list.Faults {
				out.Faults = append(out.Faults, map[string]string{"event_id": fault.EventID, "kind": fault.Kind})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Window start; an offset-less value is read in --tz")
	cmd.Flags().StringVar(&to, "to", "", "Window end (exclusive)")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA timezone for input and output (defaults to FAMCAL_TIMEZONE)")
	cmd.Flags().StringSliceVar(&users, "user", nil, "Restrict to these user ids")
	return cmd
}
