package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/calendar"
	"github.com/example/family-calendar/internal/recurrence"
	"github.com/example/family-calendar/internal/scheduler"
	"github.com/example/family-calendar/internal/timecodec"
)

const (
	calendarServiceName = "CalendarService"

	// conflictHorizon bounds how far ahead a recurring event is checked for
	// double-bookings when it is created or replaced.
	conflictHorizon = 30 * 24 * time.Hour

	defaultIdempotencyTTL = 24 * time.Hour
)

// CalendarDeps wires the collaborators of CalendarService. Events and Users
// are required; every other field has a usable default.
type CalendarDeps struct {
	Events EventStore
	Users  UserStore
	// Codec is the deployment timezone used for local input and end dates.
	Codec          *timecodec.Codec
	Publisher      ChangePublisher
	Notifier       Notifier
	Observer       ExpansionObserver
	Idempotency    IdempotencyStore
	IdempotencyTTL time.Duration
	CacheSize      int
	CacheTTL       time.Duration
	Logger         zerolog.Logger
	IDGenerator    func() string
	Now            func() time.Time
}

// CalendarService implements the EventStore operations used by clients and
// the CalendarView query over expanded occurrences.
type CalendarService struct {
	events         EventStore
	users          UserStore
	codec          *timecodec.Codec
	expander       *recurrence.Expander
	zones          *zoneRegistry
	cache          *occurrenceCache
	publisher      ChangePublisher
	notifier       Notifier
	observer       ExpansionObserver
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	logger         zerolog.Logger
	idGenerator    func() string
	now            func() time.Time
}

// NewCalendarService wires dependencies for calendar operations.
func NewCalendarService(deps CalendarDeps) *CalendarService {
	if deps.Codec == nil {
		deps.Codec = timecodec.New(nil)
	}
	if deps.IdempotencyTTL <= 0 {
		deps.IdempotencyTTL = defaultIdempotencyTTL
	}
	if deps.Idempotency == nil {
		deps.Idempotency = NewMemoryIdempotencyStore(0, deps.IdempotencyTTL)
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &CalendarService{
		events:         deps.Events,
		users:          deps.Users,
		codec:          deps.Codec,
		expander:       recurrence.NewExpander(deps.Codec),
		zones:          newZoneRegistry(deps.Codec),
		cache:          newOccurrenceCache(deps.CacheSize, deps.CacheTTL),
		publisher:      deps.Publisher,
		notifier:       deps.Notifier,
		observer:       deps.Observer,
		idempotency:    deps.Idempotency,
		idempotencyTTL: deps.IdempotencyTTL,
		logger:         deps.Logger,
		idGenerator:    deps.IDGenerator,
		now:            deps.Now,
	}
}

// Codec returns the deployment timezone codec.
func (s *CalendarService) Codec() *timecodec.Codec {
	return s.codec
}

// CreateEvent validates the input, persists a new event and returns it with
// any double-booking warnings for its owner.
func (s *CalendarService) CreateEvent(ctx context.Context, params CreateEventParams) (EventResult, error) {
	if s == nil {
		return EventResult{}, fmt.Errorf("CalendarService is nil")
	}
	logger := serviceLogger(ctx, s.logger, calendarServiceName, "CreateEvent")

	event, owner, err := s.buildEvent(ctx, params.Input, "")
	if err != nil {
		logger.Info().Str("error_kind", ErrorKind(err)).Err(err).Msg("rejected event input")
		return EventResult{}, err
	}

	key := strings.TrimSpace(params.IdempotencyKey)
	if key == "" {
		return s.createEvent(ctx, logger, event, owner)
	}

	fingerprint := Fingerprint(params.Input)
	stored, claimed, err := s.idempotency.Claim(ctx, key, IdempotencyRecord{Fingerprint: fingerprint}, s.idempotencyTTL)
	if err != nil {
		return EventResult{}, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if !claimed {
		return s.coalesce(ctx, logger, stored, fingerprint)
	}

	result, err := s.createEvent(ctx, logger, event, owner)
	if err != nil {
		if releaseErr := s.idempotency.Release(ctx, key); releaseErr != nil {
			logger.Warn().Err(releaseErr).Msg("failed to release idempotency key")
		}
		return EventResult{}, err
	}
	done := IdempotencyRecord{Fingerprint: fingerprint, EventID: result.Event.ID}
	if err := s.idempotency.Complete(ctx, key, done, s.idempotencyTTL); err != nil {
		logger.Warn().Err(err).Str("event_id", result.Event.ID).Msg("failed to record idempotency key")
	}
	return result, nil
}

func (s *CalendarService) coalesce(ctx context.Context, logger zerolog.Logger, stored IdempotencyRecord, fingerprint string) (EventResult, error) {
	if stored.Fingerprint != fingerprint || stored.Pending() {
		logger.Info().Str("error_kind", ErrorKind(ErrIdempotencyConflict)).Msg("idempotency key reused")
		return EventResult{}, ErrIdempotencyConflict
	}
	event, err := s.events.GetEvent(ctx, stored.EventID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return EventResult{}, fmt.Errorf("%w: event %s was deleted", ErrIdempotencyConflict, stored.EventID)
		}
		return EventResult{}, err
	}
	logger.Info().Str("event_id", event.ID).Msg("coalesced repeated create")
	return EventResult{Event: event, Coalesced: true}, nil
}

func (s *CalendarService) createEvent(ctx context.Context, logger zerolog.Logger, event calendar.BaseEvent, owner calendar.User) (EventResult, error) {
	now := s.now().UTC()
	event.ID = s.idGenerator()
	event.CreatedAt = now
	event.UpdatedAt = now

	warnings, err := s.detectConflicts(ctx, event)
	if err != nil {
		return EventResult{}, err
	}
	if err := s.events.CreateEvent(ctx, event); err != nil {
		logger.Error().Err(err).Str("error_kind", ErrorKind(err)).Msg("failed to store event")
		return EventResult{}, err
	}

	s.afterChange(ctx, logger, ChangeCreated, event)
	s.notify(ctx, logger, Notification{
		Title:    "New event: " + event.Title,
		Message:  s.describe(event, owner),
		Priority: 3,
		Tags:     []string{"calendar"},
	})
	logger.Info().Str("event_id", event.ID).Str("recurrence", event.Recurrence.String()).
		Int("warnings", len(warnings)).Msg("event created")
	return EventResult{Event: event, Warnings: warnings}, nil
}

// ReplaceEvent overwrites an event with the given input. The recurrence is
// replaced as a whole; CreatedAt is kept.
func (s *CalendarService) ReplaceEvent(ctx context.Context, params ReplaceEventParams) (EventResult, error) {
	if s == nil {
		return EventResult{}, fmt.Errorf("CalendarService is nil")
	}
	logger := serviceLogger(ctx, s.logger, calendarServiceName, "ReplaceEvent").
		With().Str("event_id", params.EventID).Logger()

	existing, err := s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		return EventResult{}, err
	}

	event, _, err := s.buildEvent(ctx, params.Input, existing.ID)
	if err != nil {
		logger.Info().Str("error_kind", ErrorKind(err)).Err(err).Msg("rejected event input")
		return EventResult{}, err
	}
	event.CreatedAt = existing.CreatedAt
	event.UpdatedAt = s.now().UTC()

	warnings, err := s.detectConflicts(ctx, event)
	if err != nil {
		return EventResult{}, err
	}
	if err := s.events.ReplaceEvent(ctx, event); err != nil {
		logger.Error().Err(err).Str("error_kind", ErrorKind(err)).Msg("failed to replace event")
		return EventResult{}, err
	}

	s.afterChange(ctx, logger, ChangeUpdated, event)
	logger.Info().Str("recurrence", event.Recurrence.String()).Int("warnings", len(warnings)).Msg("event replaced")
	return EventResult{Event: event, Warnings: warnings}, nil
}

// DeleteEvent removes an event and with it every occurrence.
func (s *CalendarService) DeleteEvent(ctx context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("CalendarService is nil")
	}
	logger := serviceLogger(ctx, s.logger, calendarServiceName, "DeleteEvent").
		With().Str("event_id", id).Logger()

	existing, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if err := s.events.DeleteEvent(ctx, id); err != nil {
		logger.Error().Err(err).Str("error_kind", ErrorKind(err)).Msg("failed to delete event")
		return err
	}
	s.afterChange(ctx, logger, ChangeDeleted, existing)
	logger.Info().Msg("event deleted")
	return nil
}

func (s *CalendarService) GetEvent(ctx context.Context, id string) (calendar.BaseEvent, error) {
	if s == nil {
		return calendar.BaseEvent{}, fmt.Errorf("CalendarService is nil")
	}
	return s.events.GetEvent(ctx, id)
}

// ListEvents returns base events, optionally restricted to some owners.
func (s *CalendarService) ListEvents(ctx context.Context, ownerIDs []string) ([]calendar.BaseEvent, error) {
	if s == nil {
		return nil, fmt.Errorf("CalendarService is nil")
	}
	return s.events.ListEvents(ctx, EventQuery{OwnerIDs: ownerIDs})
}

// ListOccurrences expands every event that can reach the window. An event
// whose stored recurrence cannot be expanded is reported in Faults and does
// not affect the others.
func (s *CalendarService) ListOccurrences(ctx context.Context, params ListOccurrencesParams) (OccurrenceList, error) {
	if s == nil {
		return OccurrenceList{}, fmt.Errorf("CalendarService is nil")
	}
	logger := serviceLogger(ctx, s.logger, calendarServiceName, "ListOccurrences")

	window, err := recurrence.NewWindow(params.Start, params.End)
	if err != nil {
		return OccurrenceList{}, err
	}
	display, err := s.zones.Lookup(strings.TrimSpace(params.Timezone))
	if err != nil {
		return OccurrenceList{}, err
	}

	key := s.cache.Key(params, display.Name())
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	started := time.Now()
	events, err := s.events.ListEvents(ctx, EventQuery{OwnerIDs: params.OwnerIDs, Window: &window})
	if err != nil {
		logger.Error().Err(err).Msg("failed to load events")
		return OccurrenceList{}, err
	}

	byID := make(map[string]calendar.BaseEvent, len(events))
	series := make([]recurrence.Series, len(events))
	for i, event := range events {
		byID[event.ID] = event
		series[i] = event.Series()
	}
	expansion, err := s.expander.ExpandAll(series, window)
	if err != nil {
		return OccurrenceList{}, err
	}

	var faults []EventFault
	for _, failed := range expansion.Faults {
		fault := EventFault{EventID: failed.EventID, Kind: ErrorKind(failed), Reason: failed.Error()}
		faults = append(faults, fault)
		logger.Warn().Str("event_id", fault.EventID).Str("error_kind", fault.Kind).Err(failed.Err).
			Msg("skipping event that cannot be expanded")
	}

	views := make([]OccurrenceView, len(expansion.Occurrences))
	for i, occ := range expansion.Occurrences {
		views[i] = viewOf(occ, byID[occ.SourceEventID], display)
	}
	list := OccurrenceList{Window: window, Timezone: display.Name(), Occurrences: views, Faults: faults}
	s.cache.Store(key, list)

	if s.observer != nil {
		s.observer.ObserveExpansion(len(events), len(views), len(faults), time.Since(started))
	}
	logger.Debug().Int("events", len(events)).Int("occurrences", len(views)).Int("faults", len(faults)).
		Msg("expanded window")
	return list, nil
}

func viewOf(occ recurrence.Occurrence, event calendar.BaseEvent, display *timecodec.Codec) OccurrenceView {
	view := OccurrenceView{
		InstanceID:          occ.InstanceID(),
		EventID:             occ.SourceEventID,
		Index:               occ.Index,
		Title:               event.Title,
		Description:         event.Description,
		OwnerID:             event.OwnerID,
		Start:               occ.Start,
		End:                 occ.End,
		LocalStart:          display.ToLocalWallClock(occ.Start),
		LocalEnd:            display.ToLocalWallClock(occ.End),
		AllDay:              occ.AllDay,
		IsRecurringInstance: occ.IsRecurringInstance,
	}
	if event.Reminder != nil {
		r := *event.Reminder
		view.Reminder = &r
	}
	return view
}

// buildEvent validates input and checks that the owner exists.
func (s *CalendarService) buildEvent(ctx context.Context, input calendar.Record, id string) (calendar.BaseEvent, calendar.User, error) {
	event, err := input.Builder(s.codec).ID(id).Build()
	if err != nil {
		return calendar.BaseEvent{}, calendar.User{}, validationFromBuild(err)
	}
	owner, err := s.users.GetUser(ctx, event.OwnerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return calendar.BaseEvent{}, calendar.User{}, fieldError(calendar.FieldUserID, "user does not exist")
		}
		return calendar.BaseEvent{}, calendar.User{}, err
	}
	return event, owner, nil
}

// detectConflicts expands the event and the owner's other events over the
// conflict horizon and reports overlaps.
func (s *CalendarService) detectConflicts(ctx context.Context, event calendar.BaseEvent) ([]ConflictWarning, error) {
	horizon := event.Start.Add(conflictHorizon)
	if event.End.After(horizon) {
		horizon = event.End
	}
	window := recurrence.Window{Start: event.Start, End: horizon}

	candidate, err := s.expander.Expand(event.Series(), window)
	if err != nil {
		return nil, err
	}
	others, err := s.events.ListEvents(ctx, EventQuery{OwnerIDs: []string{event.OwnerID}, Window: &window})
	if err != nil {
		return nil, err
	}

	titles := make(map[string]string, len(others))
	var existing []scheduler.Slot
	for _, other := range others {
		if other.ID == event.ID {
			continue
		}
		occs, err := s.expander.Expand(other.Series(), window)
		if err != nil {
			continue
		}
		titles[other.ID] = other.Title
		existing = append(existing, slotsOf(other.OwnerID, occs)...)
	}

	conflicts := scheduler.DetectConflicts(existing, slotsOf(event.OwnerID, candidate))
	if len(conflicts) == 0 {
		return nil, nil
	}
	warnings := make([]ConflictWarning, len(conflicts))
	for i, c := range conflicts {
		warnings[i] = ConflictWarning{
			EventID:    c.WithEventID,
			InstanceID: c.WithInstanceID,
			Title:      titles[c.WithEventID],
			OwnerID:    c.OwnerID,
			Start:      c.Start,
			End:        c.End,
		}
	}
	return warnings, nil
}

func slotsOf(ownerID string, occs []recurrence.Occurrence) []scheduler.Slot {
	slots := make([]scheduler.Slot, len(occs))
	for i, occ := range occs {
		slots[i] = scheduler.Slot{
			EventID:    occ.SourceEventID,
			InstanceID: occ.InstanceID(),
			OwnerID:    ownerID,
			Start:      occ.Start,
			End:        occ.End,
			AllDay:     occ.AllDay,
		}
	}
	return slots
}

// afterChange invalidates cached windows and publishes the change. Publish
// failures are logged; the write has already succeeded.
func (s *CalendarService) afterChange(ctx context.Context, logger zerolog.Logger, kind ChangeType, event calendar.BaseEvent) {
	s.cache.Invalidate()
	if s.publisher == nil {
		return
	}
	change := Change{Type: kind, EventID: event.ID, OwnerID: event.OwnerID, At: s.now().UTC()}
	if err := s.publisher.PublishChange(ctx, change); err != nil {
		logger.Warn().Err(err).Str("change", string(kind)).Msg("failed to publish change")
	}
}

func (s *CalendarService) notify(ctx context.Context, logger zerolog.Logger, n Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		logger.Warn().Err(err).Msg("failed to send notification")
	}
}

// describe renders "<owner>: <local start>" in the deployment timezone.
func (s *CalendarService) describe(event calendar.BaseEvent, owner calendar.User) string {
	start := event.Start.In(s.codec.Location())
	when := start.Format("Mon 2 Jan 15:04")
	if event.AllDay {
		when = start.Format("Mon 2 Jan") + " (all day)"
	}
	if owner.Name == "" {
		return when
	}
	return owner.Name + ": " + when
}
