// Package reminder sends push notifications ahead of event occurrences.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/application"
	"github.com/example/family-calendar/internal/calendar"
)

const (
	// lookahead covers the longest lead time plus one scheduling minute.
	lookahead = (1440 + 1) * time.Minute

	defaultSchedule = "* * * * *"
	sentCacheSize   = 4096
	sentCacheTTL    = 48 * time.Hour
)

// Outcome labels recorded per reminder.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// OccurrenceLister is the part of the calendar service the dispatcher reads.
type OccurrenceLister interface {
	ListOccurrences(ctx context.Context, params application.ListOccurrencesParams) (application.OccurrenceList, error)
}

// Observer receives one outcome per attempted reminder.
type Observer interface {
	ObserveReminder(outcome string)
}

// Deps wires a Dispatcher.
type Deps struct {
	Occurrences OccurrenceLister
	Notifier    application.Notifier
	Observer    Observer
	Logger      zerolog.Logger
	// Schedule is a standard five-field cron expression.
	Schedule string
	Location *time.Location
	Now      func() time.Time
}

// Dispatcher notifies every reminder-enabled occurrence once, when its
// reminder time falls between two runs. A reminder whose notification failed
// is retried on every later run until it is sent or the occurrence starts.
type Dispatcher struct {
	occurrences OccurrenceLister
	notifier    application.Notifier
	observer    Observer
	logger      zerolog.Logger
	schedule    string
	location    *time.Location
	now         func() time.Time

	mu      sync.Mutex
	lastRun time.Time
	sent    *expirable.LRU[string, struct{}]
	failed  *expirable.LRU[string, struct{}]
	cron    *cron.Cron
}

func NewDispatcher(deps Deps) (*Dispatcher, error) {
	if deps.Occurrences == nil || deps.Notifier == nil {
		return nil, errors.New("reminder: occurrence lister and notifier are required")
	}
	if deps.Schedule == "" {
		deps.Schedule = defaultSchedule
	}
	if _, err := cron.ParseStandard(deps.Schedule); err != nil {
		return nil, fmt.Errorf("reminder: invalid schedule %q: %w", deps.Schedule, err)
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Dispatcher{
		occurrences: deps.Occurrences,
		notifier:    deps.Notifier,
		observer:    deps.Observer,
		logger:      deps.Logger.With().Str("component", "reminder").Logger(),
		schedule:    deps.Schedule,
		location:    deps.Location,
		now:         deps.Now,
		sent:        expirable.NewLRU[string, struct{}](sentCacheSize, nil, sentCacheTTL),
		failed:      expirable.NewLRU[string, struct{}](sentCacheSize, nil, sentCacheTTL),
	}, nil
}

// Start runs the dispatcher on its schedule until Stop is called. Runs never
// overlap; a run that is still busy causes the next tick to be skipped.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cron != nil {
		return errors.New("reminder: dispatcher already started")
	}
	logger := cronLogger{logger: d.logger}
	c := cron.New(
		cron.WithLocation(d.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(d.schedule, func() {
		if _, err := d.RunOnce(ctx); err != nil {
			d.logger.Error().Err(err).Msg("reminder run failed")
		}
	}); err != nil {
		return err
	}
	d.cron = c
	c.Start()
	d.logger.Info().Str("schedule", d.schedule).Msg("reminder dispatcher started")
	return nil
}

// Stop halts scheduling and waits for a running job, or for ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce sends the reminders that came due since the previous run and
// returns how many were sent. The first run looks back one minute.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	now := d.now()
	d.mu.Lock()
	since := d.lastRun
	d.mu.Unlock()
	if since.IsZero() || !since.Before(now) {
		since = now.Add(-time.Minute)
	}

	list, err := d.occurrences.ListOccurrences(ctx, application.ListOccurrencesParams{
		Start: now,
		End:   now.Add(lookahead),
	})
	if err != nil {
		return 0, fmt.Errorf("list occurrences: %w", err)
	}
	for _, fault := range list.Faults {
		d.logger.Warn().Str("event_id", fault.EventID).Str("reason", fault.Reason).Msg("skipping event with corrupt recurrence")
	}

	sent := 0
	for _, occ := range list.Occurrences {
		key := occ.InstanceID + "@" + occ.Start.UTC().Format(time.RFC3339)
		retry := d.failed.Contains(key) && now.Before(occ.Start)
		if !retry && !due(occ, since, now) {
			continue
		}
		if d.sent.Contains(key) {
			continue
		}
		if err := d.notifier.Notify(ctx, d.notificationFor(occ)); err != nil {
			d.failed.Add(key, struct{}{})
			d.observe(OutcomeFailed)
			d.logger.Error().Err(err).Str("instance_id", occ.InstanceID).Bool("retry", retry).
				Msg("failed to send reminder")
			continue
		}
		d.failed.Remove(key)
		d.sent.Add(key, struct{}{})
		d.observe(OutcomeSent)
		sent++
	}

	d.mu.Lock()
	d.lastRun = now
	d.mu.Unlock()

	if sent > 0 {
		d.logger.Info().Int("sent", sent).Msg("reminders sent")
	}
	return sent, nil
}

// due reports whether the reminder time of occ lies in (since, now].
func due(occ application.OccurrenceView, since, now time.Time) bool {
	if occ.Reminder == nil || !occ.Reminder.Enabled {
		return false
	}
	lead := occ.Reminder.Lead()
	if lead <= 0 {
		lead = calendar.Reminder{LeadMinutes: calendar.DefaultLeadMinutes}.Lead()
	}
	at := occ.Start.Add(-lead)
	return at.After(since) && !at.After(now)
}

func (d *Dispatcher) notificationFor(occ application.OccurrenceView) application.Notification {
	local := occ.Start.In(d.location)
	when := local.Format("Mon 2 Jan 15:04")
	if occ.AllDay {
		when = local.Format("Mon 2 Jan") + " (all day)"
	}
	return application.Notification{
		Title:    "Reminder: " + occ.Title,
		Message:  when,
		Priority: 4,
		Tags:     []string{"alarm_clock"},
	}
}

func (d *Dispatcher) observe(outcome string) {
	if d.observer != nil {
		d.observer.ObserveReminder(outcome)
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
