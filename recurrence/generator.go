// Package recurrence expands events into concrete, bounded occurrence
// sequences. Expansion is a pure function of the event, the requested bound
// and the per-call options; nothing here holds mutable state beyond the
// optional result cache.
package recurrence

import (
	"sort"
	"time"

	"github.com/caldr-dev/caldr/rule"
	"github.com/caldr-dev/caldr/storage"
)

// Generator expands a single event's recurrence rule, exception dates and
// inclusion dates into an ordered occurrence sequence.
type Generator struct {
	config   Config
	holidays HolidayProvider
}

// NewGenerator creates a generator. A nil holidays provider means no date is
// ever treated as a holiday.
func NewGenerator(config Config, holidays HolidayProvider) *Generator {
	return &Generator{config: config, holidays: holidays}
}

// Expand computes all occurrences of event up to the given bound.
//
// The until bound is required even when the rule carries its own UNTIL or
// COUNT; whichever bound is tightest wins, and rules with no bound of their
// own are additionally capped by the configured DefaultHorizon, anchored at
// the later of the event's start and opts.WindowStart. The result is sorted
// by start time and deduplicated. A rule with no matching dates before the
// bound yields an empty, non-error result.
//
// When the configured MaxOccurrences safety cap stops emission before the
// rule's own bounds would, the capped occurrence prefix is returned together
// with a *TruncatedError so callers can tell a complete series from a cut
// one.
func (g *Generator) Expand(event storage.Event, until time.Time, opts ExpansionOptions) ([]Occurrence, error) {
	if !event.Start.Before(event.End) {
		return nil, &ValidationError{Field: "event", Message: "start must be before end"}
	}
	if until.IsZero() {
		return nil, &ValidationError{Field: "until", Message: "expansion bound is required"}
	}
	if limit, ok := opts.MaxOccurrences.Get(); ok && limit < 1 {
		return nil, &ValidationError{Field: "maxOccurrences", Message: "must be positive when set"}
	}

	emitLimit := g.config.MaxOccurrences
	if emitLimit < 1 {
		emitLimit = DefaultConfig.MaxOccurrences
	}
	// Tracks whether the binding limit is the engine's safety cap rather
	// than a bound the caller or the rule asked for.
	safetyLimited := true
	if limit, ok := opts.MaxOccurrences.Get(); ok && limit < emitLimit {
		emitLimit = limit
		safetyLimited = false
	}

	var starts []time.Time
	var truncErr error
	if r, ok := event.Recurrence.Get(); ok {
		if err := r.Validate(); err != nil {
			return nil, &ValidationError{Field: "recurrenceRule", Message: err.Error()}
		}

		hardUntil := until
		if ruleUntil, ok := r.Until.Get(); ok && ruleUntil.Before(hardUntil) {
			hardUntil = ruleUntil
		}
		if !r.Bounded() {
			horizon := g.config.DefaultHorizon
			if horizon <= 0 {
				horizon = DefaultConfig.DefaultHorizon
			}
			// Anchor at the query window, not the series start: a standing
			// meeting created years ago must still expand into a window
			// near the present.
			anchor := event.Start
			if opts.WindowStart.After(anchor) {
				anchor = opts.WindowStart
			}
			if capped := anchor.Add(horizon); capped.Before(hardUntil) {
				hardUntil = capped
			}
		}
		if count, ok := r.Count.Get(); ok && count <= emitLimit {
			emitLimit = count
			safetyLimited = false
		}

		// Walk one occurrence past the limit so a series that ends exactly
		// at the cap is not mistaken for a truncated one.
		probeLimit := emitLimit
		if safetyLimited {
			probeLimit++
		}
		starts = expandRule(event.Start, r, hardUntil, probeLimit)
		if safetyLimited && len(starts) > emitLimit {
			starts = starts[:emitLimit]
			truncErr = &TruncatedError{Limit: emitLimit}
		}
	} else if !event.Start.After(until) {
		starts = []time.Time{event.Start}
	}

	starts = g.applyExclusions(starts, event, opts)

	// Inclusion dates are unioned in after exclusion filtering; each one
	// stands alone with the event's original duration.
	starts = append(starts, event.InclusionDates...)
	starts = append(starts, opts.IncludeDates...)

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	duration := event.Duration()
	occurrences := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		if len(occurrences) > 0 && s.Equal(occurrences[len(occurrences)-1].Start) {
			continue
		}
		occurrences = append(occurrences, Occurrence{
			EventID: event.ID,
			Start:   s,
			End:     s.Add(duration),
		})
	}
	return occurrences, truncErr
}

// applyExclusions drops starts suppressed by exception dates, per-call
// exclude dates, or the holiday provider. Matching is by calendar day.
func (g *Generator) applyExclusions(starts []time.Time, event storage.Event, opts ExpansionOptions) []time.Time {
	excluded := make(map[string]struct{}, len(event.ExceptionDates)+len(opts.ExcludeDates))
	for _, d := range event.ExceptionDates {
		excluded[dayKey(d)] = struct{}{}
	}
	for _, d := range opts.ExcludeDates {
		excluded[dayKey(d)] = struct{}{}
	}

	kept := starts[:0]
	for _, s := range starts {
		if _, ok := excluded[dayKey(s)]; ok {
			continue
		}
		if opts.ExcludeHolidays && g.holidays != nil && g.holidays.IsHoliday(s) {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// expandRule walks the rule's periods from seed and collects matching starts
// up to hardUntil, emitting at most emitLimit of them.
//
// Within each period the BY* constraints fan out to every matching date of
// that period (every matching weekday of the week, every matching day of the
// month, every matching month/day of the year). A monthly or yearly step
// whose day does not exist in the target month (Jan 31 stepped into
// February) skips that period entirely rather than clamping to the nearest
// valid day.
func expandRule(seed time.Time, r rule.RecurrenceRule, hardUntil time.Time, emitLimit int) []time.Time {
	var out []time.Time

	emit := func(t time.Time) bool {
		if t.Before(seed) || t.After(hardUntil) {
			return true
		}
		out = append(out, t)
		return len(out) < emitLimit
	}

	hour, min, sec := seed.Clock()
	loc := seed.Location()

	for i := 0; ; i++ {
		switch r.Frequency {
		case rule.FreqDaily:
			day := seed.AddDate(0, 0, i*r.Interval)
			if day.After(hardUntil) {
				return out
			}
			if r.MatchesWeekday(day) && r.MatchesMonthDay(day) && r.MatchesMonth(day) {
				if !emit(day) {
					return out
				}
			}

		case rule.FreqWeekly:
			anchor := seed.AddDate(0, 0, i*r.Interval*7)
			if anchor.After(hardUntil) {
				return out
			}
			if len(r.ByWeekday) == 0 {
				if !emit(anchor) {
					return out
				}
				continue
			}
			// Fan out across the 7-day window starting at the anchor.
			for d := 0; d < 7; d++ {
				day := anchor.AddDate(0, 0, d)
				if r.MatchesWeekday(day) && r.MatchesMonthDay(day) && r.MatchesMonth(day) {
					if !emit(day) {
						return out
					}
				}
			}

		case rule.FreqMonthly:
			periodStart := time.Date(seed.Year(), seed.Month()+time.Month(i*r.Interval), 1, hour, min, sec, 0, loc)
			if periodStart.After(hardUntil) {
				return out
			}
			days := sortedOrDefault(r.ByMonthDay, seed.Day())
			for _, d := range days {
				day := time.Date(periodStart.Year(), periodStart.Month(), d, hour, min, sec, 0, loc)
				if day.Day() != d {
					continue // day does not exist in this month
				}
				if r.MatchesWeekday(day) && r.MatchesMonth(day) {
					if !emit(day) {
						return out
					}
				}
			}

		case rule.FreqYearly:
			year := seed.Year() + i*r.Interval
			periodStart := time.Date(year, 1, 1, hour, min, sec, 0, loc)
			if periodStart.After(hardUntil) {
				return out
			}
			months := sortedOrDefault(r.ByMonth, int(seed.Month()))
			days := sortedOrDefault(r.ByMonthDay, seed.Day())
			for _, m := range months {
				for _, d := range days {
					day := time.Date(year, time.Month(m), d, hour, min, sec, 0, loc)
					if int(day.Month()) != m || day.Day() != d {
						continue // e.g. Feb 29 in a non-leap year
					}
					if r.MatchesWeekday(day) {
						if !emit(day) {
							return out
						}
					}
				}
			}

		default:
			return out
		}
	}
}

// sortedOrDefault returns a sorted copy of values, or the fallback as a
// single-element set when values is empty. Emission order within a period
// must be ascending so COUNT caps the earliest occurrences.
func sortedOrDefault(values []int, fallback int) []int {
	if len(values) == 0 {
		return []int{fallback}
	}
	out := append([]int(nil), values...)
	sort.Ints(out)
	return out
}
