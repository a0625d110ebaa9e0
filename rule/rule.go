// Package rule defines the recurrence rule value type and its textual codec.
//
// A RecurrenceRule is only ever constructed through Decode or through the
// exported fields directly; Validate rejects values that the codec would
// never produce, so downstream expansion code can rely on well-formed rules.
package rule

import (
	"time"

	"github.com/samber/mo"
)

// Frequency is the base repetition unit of a rule.
type Frequency string

const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
	FreqYearly  Frequency = "YEARLY"
)

// Valid reports whether f is one of the four supported frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
		return true
	}
	return false
}

// Weekday is a two-letter iCalendar weekday token (MO..SU).
type Weekday string

const (
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
	Sunday    Weekday = "SU"
)

// weekdayOrder maps tokens to time.Weekday for calendar arithmetic.
var weekdayOrder = map[Weekday]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

// Valid reports whether w is a recognized weekday token.
func (w Weekday) Valid() bool {
	_, ok := weekdayOrder[w]
	return ok
}

// Time converts w to the corresponding time.Weekday.
// Panics on invalid tokens; callers go through Decode or Validate first.
func (w Weekday) Time() time.Weekday {
	d, ok := weekdayOrder[w]
	if !ok {
		panic("rule: invalid weekday token " + string(w))
	}
	return d
}

// FromTime converts a time.Weekday to its token form.
func FromTime(d time.Weekday) Weekday {
	switch d {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// RecurrenceRule is the decoded form of a recurrence rule string.
//
// Until and Count are both optional; when neither is present the series is
// logically unbounded and expansion must be capped by an external horizon.
type RecurrenceRule struct {
	Frequency  Frequency
	Interval   int // >= 1; Decode defaults missing INTERVAL to 1
	ByWeekday  []Weekday
	ByMonthDay []int
	ByMonth    []int
	Until      mo.Option[time.Time]
	Count      mo.Option[int]
}

// Validate checks the structural invariants the codec guarantees.
func (r RecurrenceRule) Validate() error {
	if !r.Frequency.Valid() {
		return &ParseError{Key: "FREQ", Value: string(r.Frequency), Reason: "unknown frequency"}
	}
	if r.Interval < 1 {
		return &ParseError{Key: "INTERVAL", Reason: "interval must be positive"}
	}
	for _, w := range r.ByWeekday {
		if !w.Valid() {
			return &ParseError{Key: "BYDAY", Value: string(w), Reason: "unknown weekday token"}
		}
	}
	for _, d := range r.ByMonthDay {
		if d < 1 || d > 31 {
			return &ParseError{Key: "BYMONTHDAY", Reason: "day of month out of range"}
		}
	}
	for _, m := range r.ByMonth {
		if m < 1 || m > 12 {
			return &ParseError{Key: "BYMONTH", Reason: "month out of range"}
		}
	}
	if c, ok := r.Count.Get(); ok && c < 1 {
		return &ParseError{Key: "COUNT", Reason: "count must be positive"}
	}
	return nil
}

// Bounded reports whether the rule carries its own hard bound
// (either UNTIL or COUNT).
func (r RecurrenceRule) Bounded() bool {
	return r.Until.IsPresent() || r.Count.IsPresent()
}

// MatchesWeekday reports whether t's weekday is in the BYDAY set.
// An empty set matches everything.
func (r RecurrenceRule) MatchesWeekday(t time.Time) bool {
	if len(r.ByWeekday) == 0 {
		return true
	}
	for _, w := range r.ByWeekday {
		if w.Time() == t.Weekday() {
			return true
		}
	}
	return false
}

// MatchesMonthDay reports whether t's day of month is in the BYMONTHDAY set.
// An empty set matches everything.
func (r RecurrenceRule) MatchesMonthDay(t time.Time) bool {
	if len(r.ByMonthDay) == 0 {
		return true
	}
	for _, d := range r.ByMonthDay {
		if d == t.Day() {
			return true
		}
	}
	return false
}

// MatchesMonth reports whether t's month is in the BYMONTH set.
// An empty set matches everything.
func (r RecurrenceRule) MatchesMonth(t time.Time) bool {
	if len(r.ByMonth) == 0 {
		return true
	}
	for _, m := range r.ByMonth {
		if time.Month(m) == t.Month() {
			return true
		}
	}
	return false
}
