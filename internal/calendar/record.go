package calendar

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/example/family-calendar/internal/recurrence"
	"github.com/example/family-calendar/internal/timecodec"
)

// TimestampLayout is used for every absolute instant on the wire.
const TimestampLayout = time.RFC3339Nano

// Record is the persisted and transported shape of a base event.
type Record struct {
	ID                 string `json:"id,omitempty"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	AllDay             bool   `json:"all_day"`
	UserID             string `json:"user_id"`
	ReminderEnabled    bool   `json:"reminder_enabled"`
	ReminderMinutes    int    `json:"reminder_minutes,omitempty"`
	RecurrenceType     string `json:"recurrence_type"`
	RecurrenceInterval *int   `json:"recurrence_interval,omitempty"`
	RecurrenceEndDate  string `json:"recurrence_end_date,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
}

// RecordOf renders an event in wire form.
func RecordOf(e BaseEvent) Record {
	rec := Record{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		StartTime:      formatInstant(e.Start),
		EndTime:        formatInstant(e.End),
		AllDay:         e.AllDay,
		UserID:         e.OwnerID,
		RecurrenceType: string(recurrence.FrequencyNone),
		CreatedAt:      formatInstant(e.CreatedAt),
		UpdatedAt:      formatInstant(e.UpdatedAt),
	}
	if e.Reminder != nil && e.Reminder.Enabled {
		rec.ReminderEnabled = true
		rec.ReminderMinutes = e.Reminder.LeadMinutes
	}
	interval := 1
	if r := e.Recurrence; r != nil {
		rec.RecurrenceType = string(r.Frequency)
		interval = r.Interval
		if r.EndDate != nil {
			rec.RecurrenceEndDate = r.EndDate.String()
		}
	}
	rec.RecurrenceInterval = &interval
	return rec
}

// Builder parses the record's strings into a builder. Unparsable values are
// reported by Build alongside any other field errors.
func (r Record) Builder(codec *timecodec.Codec) *Builder {
	b := NewBuilder(codec).
		ID(r.ID).
		Title(r.Title).
		Description(r.Description).
		Owner(r.UserID).
		AllDay(r.AllDay).
		Reminder(r.ReminderEnabled, r.ReminderMinutes)

	if r.StartTime != "" {
		if m, err := ParseMoment(r.StartTime); err != nil {
			b.fail(FieldStartTime, "start time must be an RFC 3339 timestamp or a local date-time", err)
		} else {
			b.Start(m)
		}
	}
	if r.EndTime != "" {
		if m, err := ParseMoment(r.EndTime); err != nil {
			b.fail(FieldEndTime, "end time must be an RFC 3339 timestamp or a local date-time", err)
		} else {
			b.End(m)
		}
	}

	interval := 1
	if r.RecurrenceInterval != nil {
		interval = *r.RecurrenceInterval
	}
	var endDate *civil.Date
	if r.RecurrenceEndDate != "" {
		d, err := ParseDate(r.RecurrenceEndDate, b.codec)
		if err != nil {
			b.fail(recurrence.FieldEndDate, "end date must be a YYYY-MM-DD date", err)
		} else {
			endDate = &d
		}
	}
	b.Recurrence(r.RecurrenceType, interval, endDate)
	return b
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}
