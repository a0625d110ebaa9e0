package recurrence

import (
	"time"

	"github.com/samber/mo"
)

// Occurrence is one concrete instance of an event in time. Occurrences are
// always derived from an event and never persisted.
type Occurrence struct {
	EventID string
	Start   time.Time
	End     time.Time
}

// ExpansionOptions are per-call knobs for occurrence expansion.
type ExpansionOptions struct {
	// WindowStart anchors the unbounded-rule horizon. When set later than
	// the event's start, a rule with neither UNTIL nor COUNT is expanded up
	// to WindowStart plus the configured horizon, so long-lived series
	// still cover a query window far from their first occurrence. Zero
	// means the event's own start.
	WindowStart time.Time

	// ExcludeHolidays drops occurrences falling on a day the configured
	// HolidayProvider reports as a holiday.
	ExcludeHolidays bool

	// ExcludeDates suppress occurrences on the same calendar day, in
	// addition to the event's own exception dates.
	ExcludeDates []time.Time

	// IncludeDates add standalone occurrences at the given start times,
	// each using the event's original duration.
	IncludeDates []time.Time

	// MaxOccurrences caps how many occurrences the rule may emit before
	// exceptions are applied. Absent means no per-call cap; a present
	// non-positive value is a validation error.
	MaxOccurrences mo.Option[int]
}

// HolidayProvider answers whether a given date is a holiday. Implementations
// must be deterministic for the duration of one engine call.
type HolidayProvider interface {
	IsHoliday(date time.Time) bool
}

// HolidayFunc adapts a plain function to HolidayProvider.
type HolidayFunc func(date time.Time) bool

func (f HolidayFunc) IsHoliday(date time.Time) bool { return f(date) }
