package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"cloud.google.com/go/civil"

	"github.com/example/family-calendar/internal/recurrence"
	"github.com/example/family-calendar/internal/timecodec"
)

// Wire field names used as BuildError keys.
const (
	FieldTitle           = "title"
	FieldDescription     = "description"
	FieldStartTime       = "start_time"
	FieldEndTime         = "end_time"
	FieldUserID          = "user_id"
	FieldReminderMinutes = "reminder_minutes"
)

const (
	maxTitleLength       = 255
	maxDescriptionLength = 4000
)

// BuildError lists every field the builder rejected. It unwraps to the
// underlying causes, so recurrence.ErrInvalidRecurrence stays detectable.
type BuildError struct {
	Fields map[string]string
	causes []error
}

func (e *BuildError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "calendar: invalid event: " + strings.Join(parts, "; ")
}

func (e *BuildError) Unwrap() []error {
	return e.causes
}

// Builder accumulates event fields and produces a BaseEvent only when every
// field is valid. Moments without an offset are read in the codec's timezone.
type Builder struct {
	codec *timecodec.Codec

	id          string
	title       string
	description string
	owner       string
	start       Moment
	end         Moment
	allDay      bool
	reminder    Reminder

	recurrenceType     string
	recurrenceInterval int
	recurrenceEnd      *civil.Date

	fields map[string]string
	causes []error
}

// NewBuilder returns an empty builder. A nil codec reads local moments as UTC.
func NewBuilder(codec *timecodec.Codec) *Builder {
	if codec == nil {
		codec = timecodec.New(nil)
	}
	return &Builder{codec: codec, recurrenceInterval: 1}
}

// FromEvent seeds a builder with an existing event, for whole-record edits.
func FromEvent(codec *timecodec.Codec, e BaseEvent) *Builder {
	b := NewBuilder(codec).
		ID(e.ID).
		Title(e.Title).
		Description(e.Description).
		Owner(e.OwnerID).
		AllDay(e.AllDay).
		Start(At(e.Start)).
		End(At(e.End))
	if e.Reminder != nil {
		b.Reminder(e.Reminder.Enabled, e.Reminder.LeadMinutes)
	}
	if r := e.Recurrence; r != nil {
		b.Recurrence(string(r.Frequency), r.Interval, r.EndDate)
	}
	return b
}

func (b *Builder) ID(id string) *Builder {
	b.id = strings.TrimSpace(id)
	return b
}

func (b *Builder) Title(title string) *Builder {
	b.title = strings.TrimSpace(title)
	return b
}

func (b *Builder) Description(description string) *Builder {
	b.description = strings.TrimSpace(description)
	return b
}

func (b *Builder) Owner(userID string) *Builder {
	b.owner = strings.TrimSpace(userID)
	return b
}

func (b *Builder) Start(m Moment) *Builder {
	b.start = m
	return b
}

func (b *Builder) End(m Moment) *Builder {
	b.end = m
	return b
}

func (b *Builder) AllDay(allDay bool) *Builder {
	b.allDay = allDay
	return b
}

// Reminder enables or disables the reminder. A zero lead means DefaultLeadMinutes.
func (b *Builder) Reminder(enabled bool, leadMinutes int) *Builder {
	if leadMinutes == 0 {
		leadMinutes = DefaultLeadMinutes
	}
	b.reminder = Reminder{Enabled: enabled, LeadMinutes: leadMinutes}
	return b
}

// Recurrence sets the raw rule input. "none" or "" clears the rule.
func (b *Builder) Recurrence(frequency string, interval int, endDate *civil.Date) *Builder {
	b.recurrenceType = frequency
	b.recurrenceInterval = interval
	b.recurrenceEnd = nil
	if endDate != nil {
		d := *endDate
		b.recurrenceEnd = &d
	}
	return b
}

func (b *Builder) fail(field, message string, cause error) {
	if b.fields == nil {
		b.fields = make(map[string]string)
	}
	if _, exists := b.fields[field]; !exists {
		b.fields[field] = message
	}
	if cause != nil {
		b.causes = append(b.causes, cause)
	}
}

// Build validates the accumulated fields and returns the event. The ID is
// left as set; callers assign one for new events. Each call validates afresh,
// so a builder can be corrected and built again.
func (b *Builder) Build() (BaseEvent, error) {
	b.fields, b.causes = nil, nil
	event := BaseEvent{
		ID:          b.id,
		Title:       b.title,
		Description: b.description,
		OwnerID:     b.owner,
		AllDay:      b.allDay,
	}

	switch {
	case b.title == "":
		b.fail(FieldTitle, "title is required", nil)
	case utf8.RuneCountInString(b.title) > maxTitleLength:
		b.fail(FieldTitle, fmt.Sprintf("title must be at most %d characters", maxTitleLength), nil)
	}
	if utf8.RuneCountInString(b.description) > maxDescriptionLength {
		b.fail(FieldDescription, fmt.Sprintf("description must be at most %d characters", maxDescriptionLength), nil)
	}
	if b.owner == "" {
		b.fail(FieldUserID, "user is required", nil)
	}

	if b.reminder.Enabled {
		if !ValidLeadMinutes(b.reminder.LeadMinutes) {
			b.fail(FieldReminderMinutes, fmt.Sprintf("reminder must be one of %v minutes", LeadMinuteOptions), nil)
		} else {
			r := b.reminder
			event.Reminder = &r
		}
	}

	startDate, timesOK := b.applyTimes(&event)
	if timesOK {
		rule, err := recurrence.ParseRule(b.recurrenceType, b.recurrenceInterval, b.recurrenceEnd, startDate)
		if err != nil {
			var invalid *recurrence.InvalidRecurrenceError
			if errors.As(err, &invalid) {
				b.fail(invalid.Field, invalid.Reason, err)
			} else {
				b.fail(recurrence.FieldFrequency, err.Error(), err)
			}
		}
		event.Recurrence = rule
	}

	if len(b.fields) > 0 {
		return BaseEvent{}, &BuildError{Fields: b.fields, causes: b.causes}
	}
	return event, nil
}

// applyTimes fills Start and End and returns the local start date.
func (b *Builder) applyTimes(event *BaseEvent) (civil.Date, bool) {
	if b.start.IsZero() {
		b.fail(FieldStartTime, "start time is required", nil)
		return civil.Date{}, false
	}

	if b.allDay {
		first := b.start.Date(b.codec)
		last := first.AddDays(1)
		if !b.end.IsZero() {
			endDate := b.end.Date(b.codec)
			switch {
			case endDate.Before(first):
				b.fail(FieldEndTime, "end date must not precede the start date", nil)
				return civil.Date{}, false
			case endDate.After(first) && b.end.AtMidnight(b.codec):
				last = endDate
			default:
				last = endDate.AddDays(1)
			}
		}
		event.Start = b.codec.StartOfDay(first)
		event.End = b.codec.StartOfDay(last)
		return first, true
	}

	if b.end.IsZero() {
		b.fail(FieldEndTime, "end time is required", nil)
		return civil.Date{}, false
	}
	start := b.start.Instant(b.codec)
	end := b.end.Instant(b.codec)
	if !end.After(start) {
		b.fail(FieldEndTime, "end time must be after the start time", nil)
		return civil.Date{}, false
	}
	event.Start = start
	event.End = end
	return b.codec.ToLocalDateOnly(start), true
}
