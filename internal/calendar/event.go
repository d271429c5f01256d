// Package calendar holds the family calendar's domain records: base events,
// reminders and users, plus the builder that is the only way to obtain a
// validated BaseEvent.
package calendar

import (
	"slices"
	"time"

	"github.com/example/family-calendar/internal/recurrence"
)

// DefaultLeadMinutes is used when a reminder is enabled without a lead time.
const DefaultLeadMinutes = 30

// LeadMinuteOptions lists the accepted reminder lead times.
var LeadMinuteOptions = []int{5, 15, 30, 60, 1440}

// ValidLeadMinutes reports whether minutes is one of LeadMinuteOptions.
func ValidLeadMinutes(minutes int) bool {
	return slices.Contains(LeadMinuteOptions, minutes)
}

// Reminder asks for a notification ahead of each occurrence.
type Reminder struct {
	Enabled     bool
	LeadMinutes int
}

// Lead returns the reminder lead as a duration.
func (r Reminder) Lead() time.Duration {
	return time.Duration(r.LeadMinutes) * time.Minute
}

// BaseEvent is the stored record occurrences are derived from. Start and End
// are UTC instants; for all-day events they are local midnights and End is exclusive.
type BaseEvent struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	OwnerID     string
	Reminder    *Reminder
	Recurrence  *recurrence.Rule
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Series returns the view of the event the expander works on.
func (e BaseEvent) Series() recurrence.Series {
	return recurrence.Series{
		EventID: e.ID,
		Start:   e.Start,
		End:     e.End,
		AllDay:  e.AllDay,
		Rule:    e.Recurrence,
	}
}

// Clone returns a copy that shares no pointers with e.
func (e BaseEvent) Clone() BaseEvent {
	clone := e
	if e.Reminder != nil {
		r := *e.Reminder
		clone.Reminder = &r
	}
	clone.Recurrence = e.Recurrence.Clone()
	return clone
}

// User is a family member. Color is used by the calendar view only.
type User struct {
	ID        string
	Name      string
	Color     string
	CreatedAt time.Time
}
