package testfixtures

import (
	"time"

	"github.com/example/family-calendar/internal/persistence"
)

// UserFixture describes a family member with deterministic defaults.
type UserFixture struct {
	ID        string
	Name      string
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserOption customises a UserFixture.
type UserOption func(*UserFixture)

// NewUserFixture returns "user-1" named Alice unless overridden.
func NewUserFixture(opts ...UserOption) UserFixture {
	base := ReferenceTime()
	fixture := UserFixture{
		ID:        "user-1",
		Name:      "Alice",
		Color:     "#3b82f6",
		CreatedAt: base,
		UpdatedAt: base,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

func WithUserName(name string) UserOption {
	return func(f *UserFixture) { f.Name = name }
}

func WithUserColor(color string) UserOption {
	return func(f *UserFixture) { f.Color = color }
}

func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:        f.ID,
		Name:      f.Name,
		Color:     f.Color,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// EventFixture describes a stored event row. The default is a one-hour,
// non-recurring event owned by user-1 starting at ReferenceTime.
type EventFixture struct {
	ID                 string
	Title              string
	Description        *string
	Start              time.Time
	End                time.Time
	AllDay             bool
	UserID             string
	ReminderEnabled    bool
	ReminderMinutes    int
	RecurrenceType     string
	RecurrenceInterval int
	RecurrenceEndDate  *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EventOption customises an EventFixture.
type EventOption func(*EventFixture)

func NewEventFixture(opts ...EventOption) EventFixture {
	base := ReferenceTime()
	fixture := EventFixture{
		ID:                 "evt-1",
		Title:              "Swimming lesson",
		Start:              base,
		End:                base.Add(time.Hour),
		UserID:             "user-1",
		ReminderMinutes:    30,
		RecurrenceType:     "none",
		RecurrenceInterval: 1,
		CreatedAt:          base,
		UpdatedAt:          base,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithEventID(id string) EventOption {
	return func(f *EventFixture) { f.ID = id }
}

func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) { f.Title = title }
}

func WithEventDescription(description string) EventOption {
	return func(f *EventFixture) { f.Description = &description }
}

func WithEventOwner(userID string) EventOption {
	return func(f *EventFixture) { f.UserID = userID }
}

// WithEventTimes sets the base span. end is normalised to UTC like start.
func WithEventTimes(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start.UTC()
		f.End = end.UTC()
	}
}

func WithEventAllDay(allDay bool) EventOption {
	return func(f *EventFixture) { f.AllDay = allDay }
}

func WithEventReminder(enabled bool, minutes int) EventOption {
	return func(f *EventFixture) {
		f.ReminderEnabled = enabled
		f.ReminderMinutes = minutes
	}
}

// WithEventRecurrence sets the raw recurrence columns; endDate is a
// YYYY-MM-DD string or empty for an open-ended series.
func WithEventRecurrence(frequency string, interval int, endDate string) EventOption {
	return func(f *EventFixture) {
		f.RecurrenceType = frequency
		f.RecurrenceInterval = interval
		f.RecurrenceEndDate = nil
		if endDate != "" {
			f.RecurrenceEndDate = &endDate
		}
	}
}

func WithEventTimestamps(created, updated time.Time) EventOption {
	return func(f *EventFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		ID:                 f.ID,
		Title:              f.Title,
		Description:        f.Description,
		Start:              f.Start,
		End:                f.End,
		AllDay:             f.AllDay,
		UserID:             f.UserID,
		ReminderEnabled:    f.ReminderEnabled,
		ReminderMinutes:    f.ReminderMinutes,
		RecurrenceType:     f.RecurrenceType,
		RecurrenceInterval: f.RecurrenceInterval,
		RecurrenceEndDate:  f.RecurrenceEndDate,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.UpdatedAt,
	}
}
