package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/caldr-dev/caldr/recurrence"
	"github.com/caldr-dev/caldr/storage"
)

// Detector expands a candidate event against the rest of a calendar and
// reports every overlap.
type Detector struct {
	repo      storage.EventRepository
	generator *recurrence.Generator
	cache     *recurrence.Cache // optional
	config    Config
	logger    *slog.Logger
}

// NewDetector creates a detector. The cache may be nil to disable expansion
// memoization; a nil logger falls back to slog.Default().
func NewDetector(repo storage.EventRepository, generator *recurrence.Generator, cache *recurrence.Cache, config Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		repo:      repo,
		generator: generator,
		cache:     cache,
		config:    config,
		logger:    logger,
	}
}

// DetectConflicts expands the candidate and all events of the calendar
// (minus excludeEventID, typically the candidate's own id during updates)
// within a shared window and returns every overlapping sub-interval,
// deduplicated by (event id, conflict start) and ordered by conflict start.
//
// Overlap uses the half-open rule: an event ending exactly when another
// begins does not conflict. The per-call options apply to the candidate's
// expansion only; existing events are expanded with their own exception and
// inclusion dates alone.
//
// When ctx expires mid-detection, or when an expansion hits the generator's
// occurrence safety cap, the conflicts found so far are returned together
// with a *BoundsExceededError, so callers can degrade gracefully instead of
// losing the partial result.
func (d *Detector) DetectConflicts(ctx context.Context, calendarID string, candidate storage.Event, excludeEventID string, opts recurrence.ExpansionOptions) ([]Report, error) {
	window := d.config.DefaultWindow
	if window <= 0 {
		window = DefaultConfig.DefaultWindow
	}
	windowEnd := candidate.Start.Add(window)

	var truncation atomic.Pointer[recurrence.TruncatedError]

	candidateOccs, err := d.expand(candidate, windowEnd, opts)
	if err != nil {
		var truncErr *recurrence.TruncatedError
		if !errors.As(err, &truncErr) {
			return nil, fmt.Errorf("expanding candidate: %w", err)
		}
		truncation.Store(truncErr)
	}
	if len(candidateOccs) == 0 {
		return nil, nil
	}
	// The shared window never needs to extend past the candidate's last
	// occurrence.
	windowEnd = candidateOccs[len(candidateOccs)-1].End

	events, err := d.repo.GetEventsByCalendarID(ctx, calendarID)
	if err != nil {
		return nil, fmt.Errorf("loading calendar %q: %w", calendarID, err)
	}

	var competing []storage.Event
	for _, ev := range events {
		if excludeEventID != "" && ev.ID == excludeEventID {
			continue
		}
		competing = append(competing, ev)
	}

	expansions := make([][]recurrence.Occurrence, len(competing))
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	concurrency := d.config.ExpansionConcurrency
	if concurrency < 1 {
		concurrency = DefaultConfig.ExpansionConcurrency
	}
	g.SetLimit(concurrency)

	for i, ev := range competing {
		i, ev := i, ev
		g.Go(func() error {
			// Deadline is re-checked between per-event expansions so
			// a large calendar stays cancellable.
			if err := gctx.Err(); err != nil {
				return err
			}
			// Anchoring at the candidate's start keeps unbounded series
			// created long ago covering the detection window.
			occs, err := d.expand(ev, windowEnd, recurrence.ExpansionOptions{
				WindowStart: candidate.Start,
			})
			if err != nil {
				var truncErr *recurrence.TruncatedError
				if !errors.As(err, &truncErr) {
					return fmt.Errorf("expanding event %q: %w", ev.ID, err)
				}
				truncation.CompareAndSwap(nil, truncErr)
			}
			expansions[i] = occs
			completed.Add(1)
			return nil
		})
	}

	waitErr := g.Wait()

	var reports []Report
	seen := make(map[string]struct{})
	for i, ev := range competing {
		for _, existing := range expansions[i] {
			for _, cand := range candidateOccs {
				if !cand.Start.Before(existing.End) || !existing.Start.Before(cand.End) {
					continue
				}
				conflictStart := laterOf(cand.Start, existing.Start)
				conflictEnd := earlierOf(cand.End, existing.End)

				key := ev.ID + "/" + conflictStart.UTC().Format(time.RFC3339Nano)
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				reports = append(reports, Report{
					ConflictingEventID: ev.ID,
					Title:              ev.Title,
					ConflictStart:      conflictStart,
					ConflictEnd:        conflictEnd,
				})
			}
		}
	}

	sort.Slice(reports, func(i, j int) bool {
		if !reports[i].ConflictStart.Equal(reports[j].ConflictStart) {
			return reports[i].ConflictStart.Before(reports[j].ConflictStart)
		}
		return reports[i].ConflictingEventID < reports[j].ConflictingEventID
	})

	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) || errors.Is(waitErr, context.Canceled) {
			done := int(completed.Load())
			d.logger.Warn("conflict detection aborted at deadline",
				"calendar_id", calendarID,
				"completed", done,
				"total", len(competing))
			return reports, &BoundsExceededError{
				Completed: done,
				Total:     len(competing),
				Err:       waitErr,
			}
		}
		return nil, waitErr
	}

	if truncErr := truncation.Load(); truncErr != nil {
		d.logger.Warn("conflict detection ran on truncated expansions",
			"calendar_id", calendarID,
			"limit", truncErr.Limit)
		return reports, &BoundsExceededError{
			Completed: int(completed.Load()),
			Total:     len(competing),
			Err:       truncErr,
		}
	}

	return reports, nil
}

// expand runs the generator through the cache when one is configured.
// Truncated partial results are passed through with their error and are
// never cached.
func (d *Detector) expand(event storage.Event, until time.Time, opts recurrence.ExpansionOptions) ([]recurrence.Occurrence, error) {
	if d.cache == nil {
		return d.generator.Expand(event, until, opts)
	}

	key := recurrence.Key(event, until, opts)
	if occs, ok := d.cache.Get(key); ok {
		return occs, nil
	}
	occs, err := d.generator.Expand(event, until, opts)
	if err != nil {
		return occs, err
	}
	d.cache.Set(key, occs)
	return occs, nil
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
