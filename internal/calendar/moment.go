package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/example/family-calendar/internal/timecodec"
)

// ErrInvalidTimestamp indicates a timestamp string matched none of the accepted layouts.
var ErrInvalidTimestamp = errors.New("calendar: invalid timestamp")

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Moment is a point in time as a client supplied it: either an absolute
// instant or a wall-clock reading that still needs a timezone.
type Moment struct {
	instant time.Time
	local   civil.DateTime
	kind    momentKind
}

type momentKind int

const (
	momentUnset momentKind = iota
	momentAbsolute
	momentLocal
)

// At wraps an absolute instant.
func At(t time.Time) Moment {
	return Moment{instant: t, kind: momentAbsolute}
}

// Local wraps a wall-clock reading.
func Local(dt civil.DateTime) Moment {
	return Moment{local: dt, kind: momentLocal}
}

// OnDate is local midnight of d.
func OnDate(d civil.Date) Moment {
	return Local(civil.DateTime{Date: d})
}

// IsZero reports whether the moment was never set.
func (m Moment) IsZero() bool {
	return m.kind == momentUnset
}

// Instant resolves the moment to a UTC instant, applying the codec's DST policy to local readings.
func (m Moment) Instant(codec *timecodec.Codec) time.Time {
	if m.kind == momentLocal {
		return codec.ToAbsoluteInstant(m.local)
	}
	return m.instant.UTC()
}

// Date returns the calendar date of the moment in the codec's timezone.
func (m Moment) Date(codec *timecodec.Codec) civil.Date {
	if m.kind == momentLocal {
		return m.local.Date
	}
	return codec.ToLocalDateOnly(m.instant)
}

// AtMidnight reports whether the moment reads 00:00 local time.
func (m Moment) AtMidnight(codec *timecodec.Codec) bool {
	if m.kind == momentLocal {
		return m.local.Time == civil.Time{}
	}
	return codec.ToLocalWallClock(m.instant).Time == civil.Time{}
}

// ParseMoment accepts RFC 3339 timestamps with an offset as absolute
// instants, and offset-less timestamps or bare dates as local readings.
func ParseMoment(s string) (Moment, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Moment{}, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return At(t), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Local(civil.DateTimeOf(t)), nil
		}
	}
	if d, err := civil.ParseDate(s); err == nil {
		return OnDate(d), nil
	}
	return Moment{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// ParseInstant parses s like ParseMoment and resolves it in the codec's timezone.
func ParseInstant(s string, codec *timecodec.Codec) (time.Time, error) {
	m, err := ParseMoment(s)
	if err != nil {
		return time.Time{}, err
	}
	return m.Instant(codec), nil
}

// ParseDate accepts a bare date or any timestamp ParseMoment accepts,
// taking the latter's local date in the codec's timezone.
func ParseDate(s string, codec *timecodec.Codec) (civil.Date, error) {
	if d, err := civil.ParseDate(strings.TrimSpace(s)); err == nil {
		return d, nil
	}
	m, err := ParseMoment(s)
	if err != nil {
		return civil.Date{}, err
	}
	return m.Date(codec), nil
}
