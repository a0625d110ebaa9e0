package recurrence

import "fmt"

// ValidationError reports input that fails the engine's preconditions,
// e.g. an event whose start is not before its end.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("recurrence: invalid %s: %s", e.Field, e.Message)
}

// TruncatedError reports that the engine's safety cap stopped emission while
// the rule's own bounds (UNTIL, COUNT, the caller's limit) still allowed
// more occurrences. The occurrences returned alongside it are a valid prefix
// of the series, never a silently shortened full result.
type TruncatedError struct {
	Limit int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("recurrence: expansion truncated at %d occurrences", e.Limit)
}
