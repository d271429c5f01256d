package recurrence

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// MaxInterval bounds the repeat interval to keep expansion from running away.
const MaxInterval = 365

// Frequency is the unit a rule repeats in. Its values are the persisted recurrence_type strings.
type Frequency string

const (
	// FrequencyNone is accepted on input and means the event does not repeat.
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is one of the repeating frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// Rule describes how a base event repeats. EndDate is an inclusive calendar date.
type Rule struct {
	Frequency Frequency
	Interval  int
	EndDate   *civil.Date
}

// ParseRule validates raw rule input against the base event's start date.
// A frequency of "none" or an empty frequency yields a nil rule and no error.
func ParseRule(frequency string, interval int, endDate *civil.Date, startDate civil.Date) (*Rule, error) {
	freq := Frequency(strings.ToLower(strings.TrimSpace(frequency)))
	if freq == "" || freq == FrequencyNone {
		return nil, nil
	}
	rule := &Rule{Frequency: freq, Interval: interval}
	if endDate != nil {
		d := *endDate
		rule.EndDate = &d
	}
	if err := rule.validate(startDate); err != nil {
		return nil, err
	}
	return rule, nil
}

// Clone returns a deep copy of the rule.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	clone := *r
	if r.EndDate != nil {
		d := *r.EndDate
		clone.EndDate = &d
	}
	return &clone
}

func (r *Rule) String() string {
	if r == nil {
		return string(FrequencyNone)
	}
	s := fmt.Sprintf("%s/%d", r.Frequency, r.Interval)
	if r.EndDate != nil {
		s += " until " + r.EndDate.String()
	}
	return s
}

func (r *Rule) validate(startDate civil.Date) error {
	if !r.Frequency.Valid() {
		return &InvalidRecurrenceError{
			Field:  FieldFrequency,
			Reason: fmt.Sprintf("%q is not one of none, daily, weekly, monthly", string(r.Frequency)),
		}
	}
	if r.Interval < 1 || r.Interval > MaxInterval {
		return &InvalidRecurrenceError{
			Field:  FieldInterval,
			Reason: fmt.Sprintf("%d is outside 1..%d", r.Interval, MaxInterval),
		}
	}
	if r.EndDate != nil {
		if !r.EndDate.IsValid() {
			return &InvalidRecurrenceError{Field: FieldEndDate, Reason: "not a calendar date"}
		}
		if r.EndDate.Before(startDate) {
			return &InvalidRecurrenceError{
				Field:  FieldEndDate,
				Reason: fmt.Sprintf("%s precedes the start date %s", r.EndDate, startDate),
			}
		}
	}
	return nil
}

// advanceDate moves d forward by n units of f. Monthly steps clamp the day to
// the last day of the target month instead of overflowing into the next one.
func advanceDate(d civil.Date, f Frequency, n int) civil.Date {
	switch f {
	case FrequencyDaily:
		return d.AddDays(n)
	case FrequencyWeekly:
		return d.AddDays(7 * n)
	default:
		return addMonthsClamped(d, n)
	}
}

func addMonthsClamped(d civil.Date, n int) civil.Date {
	months := int(d.Month) - 1 + n
	year := d.Year + floorDiv(months, 12)
	month := months - floorDiv(months, 12)*12 + 1
	day := d.Day
	if last := daysIn(year, month); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: time.Month(month), Day: day}
}

func daysIn(year, month int) int {
	switch month {
	case 4, 6, 9, 11:
		return 30
	case 2:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	default:
		return 31
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
