package application

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/example/family-calendar/internal/calendar"
	"github.com/example/family-calendar/internal/recurrence"
)

// CreateEventParams bundles the payload for CreateEvent. IdempotencyKey is
// optional; repeats with the same key and payload return the first event.
type CreateEventParams struct {
	Input          calendar.Record
	IdempotencyKey string
}

// ReplaceEventParams bundles the payload for ReplaceEvent. The input replaces
// the stored record entirely, including its recurrence.
type ReplaceEventParams struct {
	EventID string
	Input   calendar.Record
}

// EventResult is returned by create and replace.
type EventResult struct {
	Event    calendar.BaseEvent
	Warnings []ConflictWarning
	// Coalesced is set when an idempotent repeat returned an existing event.
	Coalesced bool
}

// ConflictWarning reports that the event overlaps another event of the same owner.
type ConflictWarning struct {
	EventID    string
	InstanceID string
	Title      string
	OwnerID    string
	Start      time.Time
	End        time.Time
}

// ListOccurrencesParams describes a CalendarView query. Timezone is the
// display zone; empty means the deployment zone. Empty OwnerIDs means everyone.
type ListOccurrencesParams struct {
	Start    time.Time
	End      time.Time
	Timezone string
	OwnerIDs []string
}

// OccurrenceView is an occurrence joined with the event fields a calendar view
// needs, with local times rendered in the display timezone.
type OccurrenceView struct {
	InstanceID          string
	EventID             string
	Index               int
	Title               string
	Description         string
	OwnerID             string
	Start               time.Time
	End                 time.Time
	LocalStart          civil.DateTime
	LocalEnd            civil.DateTime
	AllDay              bool
	IsRecurringInstance bool
	Reminder            *calendar.Reminder
}

// EventFault reports a single event that could not be expanded.
type EventFault struct {
	EventID string
	Kind    string
	Reason  string
}

// OccurrenceList is the ordered result of ListOccurrences.
type OccurrenceList struct {
	Window      recurrence.Window
	Timezone    string
	Occurrences []OccurrenceView
	Faults      []EventFault
}

func (l OccurrenceList) clone() OccurrenceList {
	out := l
	out.Occurrences = append([]OccurrenceView(nil), l.Occurrences...)
	out.Faults = append([]EventFault(nil), l.Faults...)
	return out
}

// CreateUserParams captures a new family member.
type CreateUserParams struct {
	Name  string
	Color string
}
