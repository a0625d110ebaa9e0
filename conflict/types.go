// Package conflict detects scheduling overlaps between a candidate event and
// an existing calendar, and searches for conflict-free alternative slots.
// Detection is advisory: callers must re-check under the same lock that
// performs the eventual write.
package conflict

import (
	"fmt"
	"time"
)

// Report describes one overlap between the candidate and an existing event.
// The interval is the overlapping sub-range, not the full occurrence.
type Report struct {
	ConflictingEventID string
	Title              string
	ConflictStart      time.Time
	ConflictEnd        time.Time
}

// SuggestionType classifies a resolution suggestion.
type SuggestionType string

const (
	SuggestShiftForward    SuggestionType = "shift_forward"
	SuggestShiftBackward   SuggestionType = "shift_backward"
	SuggestShortenDuration SuggestionType = "shorten_duration"
)

// Suggestion is one candidate alternative slot.
type Suggestion struct {
	Type        SuggestionType
	Start       time.Time
	End         time.Time
	Description string
}

// BoundsExceededError signals that detection ran against incomplete data:
// either the context deadline expired before all events were expanded, or an
// expansion was cut by the generator's occurrence safety cap (Err then wraps
// a *recurrence.TruncatedError). The accompanying result is partial, not
// empty; callers may surface it with a warning or retry with wider bounds.
type BoundsExceededError struct {
	Completed int // events expanded before detection stopped
	Total     int // events that needed expansion
	Err       error
}

func (e *BoundsExceededError) Error() string {
	return fmt.Sprintf("conflict: bounds exceeded after expanding %d of %d events: %v",
		e.Completed, e.Total, e.Err)
}

func (e *BoundsExceededError) Unwrap() error { return e.Err }
