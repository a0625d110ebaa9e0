// Package storage defines the event model and the repository interfaces the
// engine reads calendars through. Backends live in the subpackages; the
// engine itself never writes.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/samber/mo"

	"github.com/caldr-dev/caldr/rule"
)

var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when creating a resource that is already present
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input parameters")
	// ErrStorageUnavailable is returned when the storage backend is unavailable
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Event is one calendar entry, recurring or not. The engine treats events as
// read-only inputs; creation and mutation belong to the owning service.
type Event struct {
	ID         string
	CalendarID string
	Title      string

	// Start and End delimit the first (or only) occurrence. Start < End
	// always holds for persisted events; the expansion layer re-checks.
	Start  time.Time
	End    time.Time
	AllDay bool

	// Recurrence, when present, describes how the event repeats beyond
	// [Start, End).
	Recurrence mo.Option[rule.RecurrenceRule]

	// ExceptionDates suppress the occurrence falling on the same calendar
	// day; InclusionDates add standalone occurrences at the given start
	// times with the event's original duration.
	ExceptionDates []time.Time
	InclusionDates []time.Time

	Created  time.Time
	Modified time.Time
}

// Duration returns the length of a single occurrence.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Range is a half-open time interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect. Touching
// boundaries do not count as overlap.
func (r Range) Overlaps(other Range) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Intersection returns the overlapping sub-interval. Only meaningful when
// Overlaps(other) is true.
func (r Range) Intersection(other Range) Range {
	out := r
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out
}

// Duration returns End - Start.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// EventRepository is the engine-facing read interface. Conflict detection
// only ever needs the full event list of one calendar.
type EventRepository interface {
	// GetEventsByCalendarID retrieves all events in a calendar. Backends
	// that track calendars return ErrNotFound for an unknown id; others
	// return an empty slice.
	GetEventsByCalendarID(ctx context.Context, calendarID string) ([]Event, error)
}

// Repository is the full backend interface implemented by the storage
// subpackages. It extends EventRepository with the write operations the
// owning event service uses.
type Repository interface {
	EventRepository

	// GetEvent retrieves a single event by id.
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	// CreateEvent stores a new event. A missing ID is assigned by the
	// backend and written back into the struct.
	CreateEvent(ctx context.Context, event *Event) error
	// UpdateEvent replaces an existing event.
	UpdateEvent(ctx context.Context, event *Event) error
	// DeleteEvent removes an event.
	DeleteEvent(ctx context.Context, eventID string) error
}
