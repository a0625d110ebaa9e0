package conflict

import (
	"sort"
	"time"
)

// Config holds tuning options for conflict detection and resolution.
type Config struct {
	// DefaultWindow bounds the shared expansion window when the candidate
	// itself carries no UNTIL/COUNT bound, measured from its start.
	DefaultWindow time.Duration

	// SearchIncrements are the shift step sizes the resolver probes with,
	// finest first.
	SearchIncrements []time.Duration

	// MaxSearchAttempts bounds the number of probes per direction, each
	// one a multiple of the finest increment. With the defaults the
	// search covers 24 hours in both directions.
	MaxSearchAttempts int

	// MinShortenDuration is the smallest gap worth suggesting as a
	// shortened slot.
	MinShortenDuration time.Duration

	// ExpansionConcurrency limits how many events are expanded in
	// parallel during detection.
	ExpansionConcurrency int
}

// DefaultConfig provides sensible defaults for production use.
var DefaultConfig = Config{
	DefaultWindow:        2 * 365 * 24 * time.Hour,
	SearchIncrements:     []time.Duration{15 * time.Minute, 30 * time.Minute, 60 * time.Minute},
	MaxSearchAttempts:    96,
	MinShortenDuration:   15 * time.Minute,
	ExpansionConcurrency: 4,
}

// searchDeltas materializes the probe grid: every multiple of every
// configured increment, capped at MaxSearchAttempts steps of the finest one,
// merged, deduplicated and sorted ascending so the first conflict-free probe
// is also the minimal shift.
func (c Config) searchDeltas() []time.Duration {
	increments := c.SearchIncrements
	if len(increments) == 0 {
		increments = DefaultConfig.SearchIncrements
	}
	attempts := c.MaxSearchAttempts
	if attempts < 1 {
		attempts = DefaultConfig.MaxSearchAttempts
	}

	finest := increments[0]
	for _, inc := range increments[1:] {
		if inc < finest {
			finest = inc
		}
	}
	span := time.Duration(attempts) * finest

	seen := make(map[time.Duration]struct{})
	var deltas []time.Duration
	for _, inc := range increments {
		if inc <= 0 {
			continue
		}
		for delta := inc; delta <= span; delta += inc {
			if _, ok := seen[delta]; ok {
				continue
			}
			seen[delta] = struct{}{}
			deltas = append(deltas, delta)
		}
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	return deltas
}
