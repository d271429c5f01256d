package persistence

import "time"

// User is a family member row.
type User struct {
	ID        string
	Name      string
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event is a base event row. Recurrence columns hold the raw persisted
// values; RecurrenceType "none" means the event does not repeat.
type Event struct {
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
