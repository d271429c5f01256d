package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	httptransport "github.com/example/family-calendar/internal/http"
	"github.com/example/family-calendar/internal/ical"
	"github.com/example/family-calendar/internal/logging"
	"github.com/example/family-calendar/internal/metrics"
	"github.com/example/family-calendar/internal/reminder"
)

const feedName = "Family calendar"

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder dispatcher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := logging.New("famcal", cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(reg)

			a, err := openApp(ctx, cfg, logger, appOptions{Observer: m, Integrations: true})
			if err != nil {
				logger.Error().Err(err).Msg("failed to start")
				return err
			}
			defer a.Close()

			var dispatcher *reminder.Dispatcher
			if cfg.RemindersEnabled && a.notifier != nil {
				dispatcher, err = reminder.NewDispatcher(reminder.Deps{
					Occurrences: a.calendar,
					Notifier:    a.notifier,
					Observer:    m,
					Logger:      logger,
					Schedule:    cfg.ReminderSchedule,
					Location:    a.codec.Location(),
				})
				if err != nil {
					return err
				}
				if err := dispatcher.Start(ctx); err != nil {
					return err
				}
			} else {
				logger.Info().Bool("enabled", cfg.RemindersEnabled).Msg("reminder dispatcher not started")
			}

			router := httptransport.NewRouter(httptransport.RouterConfig{
				Users:  httptransport.NewUserHandler(a.users, logger),
				Events: httptransport.NewEventHandler(a.calendar, logger),
				Occurrences: httptransport.NewOccurrenceHandler(a.calendar, httptransport.OccurrenceWindow{
					Past:   cfg.DefaultWindowPast,
					Future: cfg.DefaultWindowFuture,
				}, nil, logger),
				Feed:        httptransport.NewFeedHandler(a.calendar, a.users, ical.NewExporter(feedName, a.codec, 0), nil, logger),
				Metrics:     m.Handler(),
				Observer:    m,
				CORSOrigins: cfg.CORSOrigins,
				Logger:      logger,
			})

			server := &http.Server{
				Addr:              cfg.HTTPAddr(),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", server.Addr).Str("timezone", a.codec.Name()).Msg("calendar API listening")
				serveErr <- server.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
			case err := <-serveErr:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("server encountered error")
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if dispatcher != nil {
				dispatcher.Stop(shutdownCtx)
			}
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("failed to shutdown server")
				return err
			}
			logger.Info().Msg("calendar API stopped")
			return nil
		},
	}
}
