// Package timecodec converts between absolute instants and the wall-clock
// readings of a single IANA timezone.
//
// Local times that fall into a spring-forward gap resolve as if the clock had
// not skipped: the pre-transition offset is applied, which moves the reading
// forward by the gap duration. Local times that occur twice during a fall-back
// transition resolve to the earlier instant. Neither case is an error.
package timecodec

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// ErrUnknownTimezone indicates the zone name is not present in the tz database.
var ErrUnknownTimezone = errors.New("timecodec: unknown timezone")

// transitionSearch bounds how far around a wall-clock reading offsets are sampled.
// It exceeds the largest UTC offset in use, so both sides of a transition are seen.
const transitionSearch = 24 * time.Hour

// Resolution reports how a local reading mapped onto the absolute timeline.
type Resolution int

const (
	// Exact means the reading occurs exactly once.
	Exact Resolution = iota
	// Gap means the reading was skipped by a spring-forward transition.
	Gap
	// Ambiguous means the reading occurs twice; the earlier instant was chosen.
	Ambiguous
)

func (r Resolution) String() string {
	switch r {
	case Exact:
		return "exact"
	case Gap:
		return "gap"
	case Ambiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
}

// Codec is bound to one location. It holds no mutable state and is safe for concurrent use.
type Codec struct {
	location *time.Location
}

// New returns a codec for loc. A nil location means UTC.
func New(loc *time.Location) *Codec {
	if loc == nil {
		loc = time.UTC
	}
	return &Codec{location: loc}
}

// Load resolves an IANA zone name such as "Europe/Stockholm".
func Load(name string) (*Codec, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	return New(loc), nil
}

// Location returns the bound location.
func (c *Codec) Location() *time.Location {
	return c.location
}

// Name returns the zone name.
func (c *Codec) Name() string {
	return c.location.String()
}

// ToLocalWallClock reads instant on the codec's wall clock.
func (c *Codec) ToLocalWallClock(instant time.Time) civil.DateTime {
	return ToLocalWallClock(instant, c.location)
}

// ToAbsoluteInstant resolves local in the codec's zone with the DST policy.
func (c *Codec) ToAbsoluteInstant(local civil.DateTime) time.Time {
	return ToAbsoluteInstant(local, c.location)
}

// ToLocalDateOnly returns the calendar date of instant in the codec's zone.
func (c *Codec) ToLocalDateOnly(instant time.Time) civil.Date {
	return ToLocalDateOnly(instant, c.location)
}

// Resolve is ToAbsoluteInstant that also reports how local was resolved.
func (c *Codec) Resolve(local civil.DateTime) (time.Time, Resolution) {
	return Resolve(local, c.location)
}

// StartOfDay returns the instant of local midnight on d. On days where
// midnight itself is skipped the gap policy applies.
func (c *Codec) StartOfDay(d civil.Date) time.Time {
	return ToAbsoluteInstant(civil.DateTime{Date: d}, c.location)
}

// ToLocalWallClock returns the date and time of day an observer in loc reads at instant.
func ToLocalWallClock(instant time.Time, loc *time.Location) civil.DateTime {
	return civil.DateTimeOf(instant.In(orUTC(loc)))
}

// ToLocalDateOnly truncates instant to its calendar date in loc.
func ToLocalDateOnly(instant time.Time, loc *time.Location) civil.Date {
	return civil.DateOf(instant.In(orUTC(loc)))
}

// ToAbsoluteInstant maps a local reading in loc to a UTC instant.
func ToAbsoluteInstant(local civil.DateTime, loc *time.Location) time.Time {
	instant, _ := Resolve(local, loc)
	return instant
}

// Resolve maps a local reading to a UTC instant and reports which policy applied.
//
// time.Date makes no promise about which side of a transition it picks, so the
// candidates are derived from the offsets in force shortly before and after the
// reading and checked individually.
func Resolve(local civil.DateTime, loc *time.Location) (time.Time, Resolution) {
	loc = orUTC(loc)
	wall := time.Date(local.Date.Year, local.Date.Month, local.Date.Day,
		local.Time.Hour, local.Time.Minute, local.Time.Second, local.Time.Nanosecond, time.UTC)

	offBefore := offsetAt(wall.Add(-transitionSearch), loc)
	offAfter := offsetAt(wall.Add(transitionSearch), loc)

	early := wall.Add(-time.Duration(offBefore) * time.Second)
	late := wall.Add(-time.Duration(offAfter) * time.Second)
	if late.Before(early) {
		early, late = late, early
	}

	earlyOK := civil.DateTimeOf(early.In(loc)) == local
	lateOK := civil.DateTimeOf(late.In(loc)) == local
	switch {
	case earlyOK && lateOK && !early.Equal(late):
		return early, Ambiguous
	case earlyOK:
		return early, Exact
	case lateOK:
		return late, Exact
	default:
		return wall.Add(-time.Duration(offBefore) * time.Second), Gap
	}
}

func offsetAt(instant time.Time, loc *time.Location) int {
	_, off := instant.In(loc).Zone()
	return off
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
