package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/family-calendar/internal/calendar"
	"github.com/example/family-calendar/internal/recurrence"
	"github.com/example/family-calendar/internal/timecodec"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrIdempotencyConflict is returned when an idempotency key is reused
	// with a different payload, or while the first request is still running.
	ErrIdempotencyConflict = errors.New("application: idempotency key conflict")
	// ErrUnknownTimezone is returned for display timezones that cannot be loaded.
	ErrUnknownTimezone = timecodec.ErrUnknownTimezone
	// ErrInvalidWindow is returned for empty or inverted occurrence windows.
	ErrInvalidWindow = recurrence.ErrInvalidWindow
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
	causes      []error
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = fmt.Sprintf("%s: %s", field, v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the errors that produced the field messages, so
// errors.Is(err, recurrence.ErrInvalidRecurrence) holds for rule failures.
func (v *ValidationError) Unwrap() []error {
	if v == nil {
		return nil
	}
	return v.causes
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
	v.causes = append(v.causes, other.causes...)
}

// fieldError is a ValidationError with a single field.
func fieldError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// validationFromBuild converts builder failures into a ValidationError and
// returns any other error unchanged.
func validationFromBuild(err error) error {
	var buildErr *calendar.BuildError
	if !errors.As(err, &buildErr) {
		return err
	}
	v := &ValidationError{causes: []error{err}}
	for field, msg := range buildErr.Fields {
		v.add(field, msg)
	}
	return v
}
