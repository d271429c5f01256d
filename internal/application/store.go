package application

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/example/family-calendar/internal/calendar"
	"github.com/example/family-calendar/internal/persistence"
	"github.com/example/family-calendar/internal/recurrence"
)

// EventQuery narrows ListEvents. A nil Window lists every event.
type EventQuery struct {
	OwnerIDs []string
	Window   *recurrence.Window
}

// EventStore persists base events as whole records.
type EventStore interface {
	CreateEvent(ctx context.Context, event calendar.BaseEvent) error
	ReplaceEvent(ctx context.Context, event calendar.BaseEvent) error
	GetEvent(ctx context.Context, id string) (calendar.BaseEvent, error)
	ListEvents(ctx context.Context, query EventQuery) ([]calendar.BaseEvent, error)
	DeleteEvent(ctx context.Context, id string) error
}

// UserStore persists family members.
type UserStore interface {
	CreateUser(ctx context.Context, user calendar.User) error
	GetUser(ctx context.Context, id string) (calendar.User, error)
	GetUserByName(ctx context.Context, name string) (calendar.User, error)
	ListUsers(ctx context.Context) ([]calendar.User, error)
}

// RepositoryStore adapts the persistence repositories to EventStore and
// UserStore. Stored recurrence columns are carried over without validation;
// malformed rules surface as corrupt recurrences when the event is expanded.
type RepositoryStore struct {
	events persistence.EventRepository
	users  persistence.UserRepository
}

func NewRepositoryStore(events persistence.EventRepository, users persistence.UserRepository) *RepositoryStore {
	return &RepositoryStore{events: events, users: users}
}

func (s *RepositoryStore) CreateEvent(ctx context.Context, event calendar.BaseEvent) error {
	return mapRepoError(s.events.CreateEvent(ctx, rowFromEvent(event)))
}

func (s *RepositoryStore) ReplaceEvent(ctx context.Context, event calendar.BaseEvent) error {
	return mapRepoError(s.events.ReplaceEvent(ctx, rowFromEvent(event)))
}

func (s *RepositoryStore) GetEvent(ctx context.Context, id string) (calendar.BaseEvent, error) {
	row, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return calendar.BaseEvent{}, mapRepoError(err)
	}
	return eventFromRow(row), nil
}

func (s *RepositoryStore) ListEvents(ctx context.Context, query EventQuery) ([]calendar.BaseEvent, error) {
	filter := persistence.EventFilter{OwnerIDs: query.OwnerIDs}
	if w := query.Window; w != nil {
		start, end := w.Start, w.End
		filter.EndsAfter = &start
		filter.StartsBefore = &end
	}
	rows, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	events := make([]calendar.BaseEvent, len(rows))
	for i, row := range rows {
		events[i] = eventFromRow(row)
	}
	return events, nil
}

func (s *RepositoryStore) DeleteEvent(ctx context.Context, id string) error {
	return mapRepoError(s.events.DeleteEvent(ctx, id))
}

func (s *RepositoryStore) CreateUser(ctx context.Context, user calendar.User) error {
	return mapRepoError(s.users.CreateUser(ctx, persistence.User{
		ID:        user.ID,
		Name:      user.Name,
		Color:     user.Color,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.CreatedAt,
	}))
}

func (s *RepositoryStore) GetUser(ctx context.Context, id string) (calendar.User, error) {
	row, err := s.users.GetUser(ctx, id)
	if err != nil {
		return calendar.User{}, mapRepoError(err)
	}
	return userFromRow(row), nil
}

func (s *RepositoryStore) GetUserByName(ctx context.Context, name string) (calendar.User, error) {
	row, err := s.users.GetUserByName(ctx, name)
	if err != nil {
		return calendar.User{}, mapRepoError(err)
	}
	return userFromRow(row), nil
}

func (s *RepositoryStore) ListUsers(ctx context.Context) ([]calendar.User, error) {
	rows, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	users := make([]calendar.User, len(rows))
	for i, row := range rows {
		users[i] = userFromRow(row)
	}
	return users, nil
}

func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fieldError(calendar.FieldUserID, "user does not exist")
	}
	return err
}

func userFromRow(row persistence.User) calendar.User {
	return calendar.User{ID: row.ID, Name: row.Name, Color: row.Color, CreatedAt: row.CreatedAt}
}

func rowFromEvent(e calendar.BaseEvent) persistence.Event {
	row := persistence.Event{
		ID:                 e.ID,
		Title:              e.Title,
		Start:              e.Start.UTC(),
		End:                e.End.UTC(),
		AllDay:             e.AllDay,
		UserID:             e.OwnerID,
		ReminderMinutes:    calendar.DefaultLeadMinutes,
		RecurrenceType:     string(recurrence.FrequencyNone),
		RecurrenceInterval: 1,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
	if e.Description != "" {
		description := e.Description
		row.Description = &description
	}
	if e.Reminder != nil {
		row.ReminderEnabled = e.Reminder.Enabled
		row.ReminderMinutes = e.Reminder.LeadMinutes
	}
	if r := e.Recurrence; r != nil {
		row.RecurrenceType = string(r.Frequency)
		row.RecurrenceInterval = r.Interval
		if r.EndDate != nil {
			endDate := r.EndDate.String()
			row.RecurrenceEndDate = &endDate
		}
	}
	return row
}

func eventFromRow(row persistence.Event) calendar.BaseEvent {
	event := calendar.BaseEvent{
		ID:        row.ID,
		Title:     row.Title,
		Start:     row.Start,
		End:       row.End,
		AllDay:    row.AllDay,
		OwnerID:   row.UserID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.Description != nil {
		event.Description = *row.Description
	}
	if row.ReminderEnabled {
		event.Reminder = &calendar.Reminder{Enabled: true, LeadMinutes: row.ReminderMinutes}
	}
	event.Recurrence = ruleFromRow(row)
	return event
}

func ruleFromRow(row persistence.Event) *recurrence.Rule {
	freq := recurrence.Frequency(strings.ToLower(strings.TrimSpace(row.RecurrenceType)))
	if freq == "" || freq == recurrence.FrequencyNone {
		return nil
	}
	rule := &recurrence.Rule{Frequency: freq, Interval: row.RecurrenceInterval}
	if row.RecurrenceEndDate != nil {
		d, err := civil.ParseDate(strings.TrimSpace(*row.RecurrenceEndDate))
		if err != nil {
			// The zero date is invalid; expansion reports it as corrupt.
			d = civil.Date{}
		}
		rule.EndDate = &d
	}
	return rule
}
