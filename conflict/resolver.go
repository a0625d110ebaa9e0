package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/caldr-dev/caldr/recurrence"
	"github.com/caldr-dev/caldr/storage"
)

// Resolver searches for conflict-free alternative slots by re-running
// detection over shifted copies of the candidate. The search is bounded and
// deterministic: identical inputs always yield identical suggestions.
type Resolver struct {
	detector *Detector
	config   Config
	logger   *slog.Logger
}

// NewResolver creates a resolver on top of a detector.
func NewResolver(detector *Detector, config Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{detector: detector, config: config, logger: logger}
}

// SuggestResolutions proposes alternative slots for a conflicting candidate.
//
// It probes forward shifts on the configured increment grid and emits the
// first conflict-free one, then probes backward; the backward suggestion is
// kept only when its magnitude is strictly smaller than the forward one. If
// the conflicts leave a free gap inside the original range wide enough to
// hold a shortened event, a shorten_duration suggestion is added last.
//
// Suggestions are ordered by absolute shift (forward before backward on
// ties, shorten last). An exhausted search returns an empty, non-error
// result; the caller surfaces "no free slot found".
func (r *Resolver) SuggestResolutions(ctx context.Context, calendarID string, candidate storage.Event, excludeEventID string, conflicts []Report, opts recurrence.ExpansionOptions) ([]Suggestion, error) {
	if len(conflicts) == 0 {
		return nil, nil
	}

	deltas := r.config.searchDeltas()

	forward, foundForward, err := r.probe(ctx, calendarID, candidate, excludeEventID, opts, deltas, false)
	if err != nil {
		return nil, err
	}
	backward, foundBackward, err := r.probe(ctx, calendarID, candidate, excludeEventID, opts, deltas, true)
	if err != nil {
		return nil, err
	}

	var suggestions []Suggestion
	if foundForward {
		suggestions = append(suggestions, Suggestion{
			Type:        SuggestShiftForward,
			Start:       candidate.Start.Add(forward),
			End:         candidate.End.Add(forward),
			Description: fmt.Sprintf("shift forward by %s", forward),
		})
	}
	// A backward shift is only worth suggesting when it beats the forward
	// one outright.
	if foundBackward && (!foundForward || backward < forward) {
		suggestions = append(suggestions, Suggestion{
			Type:        SuggestShiftBackward,
			Start:       candidate.Start.Add(-backward),
			End:         candidate.End.Add(-backward),
			Description: fmt.Sprintf("shift backward by %s", backward),
		})
	}

	if gap, ok := r.widestFreeGap(candidate, conflicts); ok {
		suggestions = append(suggestions, Suggestion{
			Type:        SuggestShortenDuration,
			Start:       gap.Start,
			End:         gap.End,
			Description: fmt.Sprintf("shorten to %s within the original slot", gap.Duration()),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestionRank(suggestions[i], candidate) < suggestionRank(suggestions[j], candidate)
	})

	if len(suggestions) == 0 {
		r.logger.Debug("no conflict-free slot within search bounds",
			"calendar_id", calendarID,
			"candidate_start", candidate.Start,
			"attempts", len(deltas))
	}
	return suggestions, nil
}

// probe walks the delta grid in one direction and returns the first shift
// whose detection comes back clean.
func (r *Resolver) probe(ctx context.Context, calendarID string, candidate storage.Event, excludeEventID string, opts recurrence.ExpansionOptions, deltas []time.Duration, backward bool) (time.Duration, bool, error) {
	for _, delta := range deltas {
		shift := delta
		if backward {
			shift = -delta
		}
		shifted := candidate
		shifted.Start = candidate.Start.Add(shift)
		shifted.End = candidate.End.Add(shift)

		reports, err := r.detector.DetectConflicts(ctx, calendarID, shifted, excludeEventID, opts)
		if err != nil {
			// A bounds-limited detection may have missed conflicts, so an
			// empty result cannot be trusted as a free slot. Deadline
			// expiry still aborts the whole search.
			var boundsErr *BoundsExceededError
			if errors.As(err, &boundsErr) && ctx.Err() == nil {
				continue
			}
			return 0, false, fmt.Errorf("probing shift %s: %w", shift, err)
		}
		if len(reports) == 0 {
			return delta, true, nil
		}
	}
	return 0, false, nil
}

// widestFreeGap finds the largest sub-interval of the candidate's original
// range not covered by any conflict, if it is wide enough to hold a
// shortened event.
func (r *Resolver) widestFreeGap(candidate storage.Event, conflicts []Report) (storage.Range, bool) {
	busy := make([]storage.Range, 0, len(conflicts))
	for _, c := range conflicts {
		busy = append(busy, storage.Range{Start: c.ConflictStart, End: c.ConflictEnd})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	minGap := r.config.MinShortenDuration
	if minGap <= 0 {
		minGap = DefaultConfig.MinShortenDuration
	}

	var best storage.Range
	found := false
	consider := func(gap storage.Range) {
		if gap.Duration() < minGap {
			return
		}
		if !found || gap.Duration() > best.Duration() {
			best = gap
			found = true
		}
	}

	cursor := candidate.Start
	for _, b := range busy {
		if b.Start.After(cursor) {
			consider(storage.Range{Start: cursor, End: earlierOf(b.Start, candidate.End)})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(candidate.End) {
		consider(storage.Range{Start: cursor, End: candidate.End})
	}

	// A gap spanning the whole slot means the conflicts lie outside the
	// original range; shortening would not change anything.
	if found && best.Start.Equal(candidate.Start) && best.End.Equal(candidate.End) {
		return storage.Range{}, false
	}
	return best, found
}

// suggestionRank orders suggestions: smallest absolute shift first, forward
// before backward on equal shift, shorten_duration last.
func suggestionRank(s Suggestion, candidate storage.Event) int64 {
	switch s.Type {
	case SuggestShiftForward:
		return int64(s.Start.Sub(candidate.Start)) * 2
	case SuggestShiftBackward:
		return int64(candidate.Start.Sub(s.Start))*2 + 1
	default:
		return math.MaxInt64 / 2 // always last
	}
}
