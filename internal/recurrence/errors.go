package recurrence

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecurrence indicates malformed rule input at creation or edit time.
	ErrInvalidRecurrence = errors.New("recurrence: invalid recurrence")
	// ErrCorruptRecurrence indicates a stored rule failed validation on read.
	ErrCorruptRecurrence = errors.New("recurrence: corrupt recurrence")
	// ErrInvalidWindow indicates an empty, inverted or unbounded expansion window.
	ErrInvalidWindow = errors.New("recurrence: invalid window")
	// ErrInvalidDuration indicates a stored event ends before it starts.
	ErrInvalidDuration = errors.New("recurrence: event ends before it starts")
)

// Wire field names reported by InvalidRecurrenceError.
const (
	FieldFrequency = "recurrence_type"
	FieldInterval  = "recurrence_interval"
	FieldEndDate   = "recurrence_end_date"
)

// InvalidRecurrenceError names the rule field that was rejected.
type InvalidRecurrenceError struct {
	Field  string
	Reason string
}

func (e *InvalidRecurrenceError) Error() string {
	return fmt.Sprintf("recurrence: invalid %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrInvalidRecurrence.
func (e *InvalidRecurrenceError) Is(target error) bool {
	return target == ErrInvalidRecurrence
}

// CorruptRecurrenceError is the per-event fault raised while expanding a stored rule.
type CorruptRecurrenceError struct {
	EventID string
	Reason  string
}

func (e *CorruptRecurrenceError) Error() string {
	return fmt.Sprintf("recurrence: corrupt recurrence on event %s: %s", e.EventID, e.Reason)
}

// Is reports whether target is ErrCorruptRecurrence.
func (e *CorruptRecurrenceError) Is(target error) bool {
	return target == ErrCorruptRecurrence
}

// ExpansionError is the fault recorded for one series by ExpandAll.
type ExpansionError struct {
	EventID string
	Err     error
}

func (e *ExpansionError) Error() string {
	return e.Err.Error()
}

func (e *ExpansionError) Unwrap() error {
	return e.Err
}
