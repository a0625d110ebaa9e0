package recurrence

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"github.com/caldr-dev/caldr/rule"
	"github.com/caldr-dev/caldr/storage"
)

func testEvent(start, end time.Time, ruleText string) storage.Event {
	ev := storage.Event{
		ID:         "ev-1",
		CalendarID: "cal-1",
		Title:      "Standup",
		Start:      start,
		End:        end,
	}
	if ruleText != "" {
		r, err := rule.Decode(ruleText)
		if err != nil {
			panic(err)
		}
		ev.Recurrence = mo.Some(r)
	}
	return ev
}

func starts(occurrences []Occurrence) []time.Time {
	if len(occurrences) == 0 {
		return nil
	}
	out := make([]time.Time, len(occurrences))
	for i, o := range occurrences {
		out[i] = o.Start
	}
	return out
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestGenerator_Expand(t *testing.T) {
	gen := NewGenerator(DefaultConfig, nil)
	until := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name     string
		event    storage.Event
		until    time.Time
		opts     ExpansionOptions
		expected []time.Time
	}{
		{
			name:     "Non-recurring event yields single occurrence",
			event:    testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(time.Hour), ""),
			until:    until,
			expected: []time.Time{day(2024, 1, 1)},
		},
		{
			name:     "Non-recurring event past the bound yields nothing",
			event:    testEvent(day(2025, 6, 1), day(2025, 6, 1).Add(time.Hour), ""),
			until:    until,
			expected: nil,
		},
		{
			name:  "Weekly Monday and Wednesday through January",
			event: testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(time.Hour), "FREQ=WEEKLY;BYDAY=MO,WE"),
			until: time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC),
			expected: []time.Time{
				day(2024, 1, 1), day(2024, 1, 3),
				day(2024, 1, 8), day(2024, 1, 10),
				day(2024, 1, 15), day(2024, 1, 17),
				day(2024, 1, 22), day(2024, 1, 24),
				day(2024, 1, 29), day(2024, 1, 31),
			},
		},
		{
			name:  "Biweekly Friday with count",
			event: testEvent(day(2024, 1, 5), day(2024, 1, 5).Add(time.Hour), "FREQ=WEEKLY;INTERVAL=2;BYDAY=FR;COUNT=4"),
			until: until,
			expected: []time.Time{
				day(2024, 1, 5), day(2024, 1, 19),
				day(2024, 2, 2), day(2024, 2, 16),
			},
		},
		{
			name:  "Daily with interval",
			event: testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(time.Hour), "FREQ=DAILY;INTERVAL=3;COUNT=4"),
			until: until,
			expected: []time.Time{
				day(2024, 1, 1), day(2024, 1, 4), day(2024, 1, 7), day(2024, 1, 10),
			},
		},
		{
			name:  "Monthly on the 31st skips short months",
			event: testEvent(day(2024, 1, 31), day(2024, 1, 31).Add(time.Hour), "FREQ=MONTHLY"),
			until: time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC),
			expected: []time.Time{
				day(2024, 1, 31), day(2024, 3, 31), day(2024, 5, 31),
			},
		},
		{
			name:  "Monthly BYMONTHDAY fans out within the month",
			event: testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(time.Hour), "FREQ=MONTHLY;BYMONTHDAY=1,15;COUNT=5"),
			until: until,
			expected: []time.Time{
				day(2024, 1, 1), day(2024, 1, 15),
				day(2024, 2, 1), day(2024, 2, 15),
				day(2024, 3, 1),
			},
		},
		{
			name:  "Yearly on Feb 29 only hits leap years",
			event: testEvent(day(2024, 2, 29), day(2024, 2, 29).Add(time.Hour), "FREQ=YEARLY"),
			until: time.Date(2028, 12, 31, 0, 0, 0, 0, time.UTC),
			expected: []time.Time{
				day(2024, 2, 29), day(2028, 2, 29),
			},
		},
		{
			name:  "Yearly BYMONTH fans out within the year",
			event: testEvent(day(2024, 3, 10), day(2024, 3, 10).Add(time.Hour), "FREQ=YEARLY;BYMONTH=3,9"),
			until: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
			expected: []time.Time{
				day(2024, 3, 10), day(2024, 9, 10),
				day(2025, 3, 10), day(2025, 9, 10),
			},
		},
		{
			name:  "Rule UNTIL tighter than call bound",
			event: testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(time.Hour), "FREQ=DAILY;UNTIL=20240103T235959Z"),
			until: until,
			expected: []time.Time{
				day(2024, 1, 1), day(2024, 1, 2), day(2024, 1, 3),
			},
		},
		{
			name:     "No matching dates before bound is empty, not an error",
			event:    testEvent(day(2024, 12, 30), day(2024, 12, 30).Add(time.Hour), "FREQ=WEEKLY;BYDAY=FR"),
			until:    time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occurrences, err := gen.Expand(tt.event, tt.until, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, starts(occurrences))
		})
	}
}

func TestGenerator_Expand_ExceptionAndInclusionDates(t *testing.T) {
	gen := NewGenerator(DefaultConfig, nil)
	until := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)

	event := testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(time.Hour), "FREQ=WEEKLY;BYDAY=MO")
	event.ExceptionDates = []time.Time{time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}
	event.InclusionDates = []time.Time{day(2024, 1, 4)}

	occurrences, err := gen.Expand(event, until, ExpansionOptions{})
	require.NoError(t, err)

	// Jan 15 (a Monday) is suppressed, Jan 4 (a Thursday) is added.
	assert.Equal(t, []time.Time{
		day(2024, 1, 1), day(2024, 1, 4),
		day(2024, 1, 8), day(2024, 1, 22), day(2024, 1, 29),
	}, starts(occurrences))

	// The inclusion keeps the event's original duration.
	assert.Equal(t, day(2024, 1, 4).Add(time.Hour), occurrences[1].End)
}

func TestGenerator_Expand_PerCallExclusions(t *testing.T) {
	gen := NewGenerator(DefaultConfig, NewFixedHolidays(day(2024, 1, 3)))
	until := time.Date(2024, 1, 10, 23, 59, 59, 0, time.UTC)

	event := testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(time.Hour), "FREQ=DAILY")

	occurrences, err := gen.Expand(event, until, ExpansionOptions{
		ExcludeHolidays: true,
		ExcludeDates:    []time.Time{day(2024, 1, 5)},
		IncludeDates:    []time.Time{day(2024, 1, 20)},
	})
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		day(2024, 1, 1), day(2024, 1, 2), day(2024, 1, 4),
		day(2024, 1, 6), day(2024, 1, 7), day(2024, 1, 8),
		day(2024, 1, 9), day(2024, 1, 10), day(2024, 1, 20),
	}, starts(occurrences))
}

func TestGenerator_Expand_InclusionDeduplicated(t *testing.T) {
	gen := NewGenerator(DefaultConfig, nil)
	until := time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC)

	event := testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(time.Hour), "FREQ=DAILY")

	// Including a date the rule already produces must not duplicate it.
	occurrences, err := gen.Expand(event, until, ExpansionOptions{
		IncludeDates: []time.Time{day(2024, 1, 3)},
	})
	require.NoError(t, err)
	assert.Len(t, occurrences, 7)
	for i := 1; i < len(occurrences); i++ {
		assert.True(t, occurrences[i-1].Start.Before(occurrences[i].Start),
			"occurrences must be strictly increasing")
	}
}

func TestGenerator_Expand_MaxOccurrencesOption(t *testing.T) {
	gen := NewGenerator(DefaultConfig, nil)
	until := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	event := testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(time.Hour), "FREQ=DAILY")
	occurrences, err := gen.Expand(event, until, ExpansionOptions{
		MaxOccurrences: mo.Some(5),
	})
	require.NoError(t, err)
	assert.Len(t, occurrences, 5)
}

func TestGenerator_Expand_HorizonCapsUnboundedRule(t *testing.T) {
	cfg := DisabledCacheConfig
	cfg.DefaultHorizon = 30 * 24 * time.Hour
	cfg.MaxOccurrences = 10000
	gen := NewGenerator(cfg, nil)

	event := testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(time.Hour), "FREQ=DAILY")
	occurrences, err := gen.Expand(event, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), ExpansionOptions{})
	require.NoError(t, err)

	// 30-day horizon from the seed, inclusive of the seed day.
	assert.Len(t, occurrences, 31)
	last := occurrences[len(occurrences)-1]
	assert.Equal(t, day(2024, 1, 31), last.Start)
}

func TestGenerator_Expand_WindowStartAnchorsHorizon(t *testing.T) {
	gen := NewGenerator(DefaultConfig, nil)

	// A standing weekly meeting created years before the query window must
	// still produce occurrences inside it.
	seed := time.Date(2021, 1, 4, 10, 0, 0, 0, time.UTC) // Monday
	event := testEvent(seed, seed.Add(time.Hour), "FREQ=WEEKLY;BYDAY=MO")

	windowStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	occurrences, err := gen.Expand(event, until, ExpansionOptions{WindowStart: windowStart})
	require.NoError(t, err)

	var inWindow []time.Time
	for _, occ := range occurrences {
		if !occ.Start.Before(windowStart) {
			inWindow = append(inWindow, occ.Start)
		}
	}
	require.Len(t, inWindow, 5, "five Mondays fall in January 2024")
	assert.True(t, inWindow[0].Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, inWindow[4].Equal(time.Date(2024, 1, 29, 10, 0, 0, 0, time.UTC)))
}

func TestGenerator_Expand_FlagsSafetyCapTruncation(t *testing.T) {
	cfg := DefaultConfig
	cfg.MaxOccurrences = 10
	gen := NewGenerator(cfg, nil)

	seed := day(2024, 1, 1)
	until := seed.AddDate(4, 0, 0)

	// UNTIL four years out allows far more than the safety cap.
	event := testEvent(seed, seed.Add(time.Hour), "FREQ=DAILY;UNTIL=20280101T090000Z")
	occurrences, err := gen.Expand(event, until, ExpansionOptions{})

	var truncErr *TruncatedError
	require.ErrorAs(t, err, &truncErr)
	assert.Equal(t, 10, truncErr.Limit)
	require.Len(t, occurrences, 10)
	assert.True(t, occurrences[9].Start.Equal(day(2024, 1, 10)))

	// A COUNT landing exactly on the cap is a complete series.
	counted := testEvent(seed, seed.Add(time.Hour), "FREQ=DAILY;COUNT=10")
	occurrences, err = gen.Expand(counted, until, ExpansionOptions{})
	require.NoError(t, err)
	assert.Len(t, occurrences, 10)
}

func TestGenerator_Expand_ValidationErrors(t *testing.T) {
	gen := NewGenerator(DefaultConfig, nil)
	until := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		event storage.Event
		until time.Time
		opts  ExpansionOptions
	}{
		{
			name:  "Start equals end",
			event: testEvent(day(2024, 1, 1), day(2024, 1, 1), ""),
			until: until,
		},
		{
			name:  "Start after end",
			event: testEvent(day(2024, 1, 2), day(2024, 1, 1), ""),
			until: until,
		},
		{
			name:  "Zero until bound",
			event: testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(time.Hour), ""),
		},
		{
			name:  "Non-positive max occurrences",
			event: testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(time.Hour), "FREQ=DAILY"),
			until: until,
			opts:  ExpansionOptions{MaxOccurrences: mo.Some(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gen.Expand(tt.event, tt.until, tt.opts)
			require.Error(t, err)

			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestGenerator_Expand_OccurrenceInvariants(t *testing.T) {
	gen := NewGenerator(DefaultConfig, nil)
	until := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	event := testEvent(day(2024, 1, 1), day(2024, 1, 1).Add(90*time.Minute), "FREQ=WEEKLY;BYDAY=MO,TH")
	occurrences, err := gen.Expand(event, until, ExpansionOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, occurrences)

	for i, o := range occurrences {
		assert.True(t, o.Start.Before(o.End), "start must precede end")
		assert.Equal(t, 90*time.Minute, o.End.Sub(o.Start))
		if i > 0 {
			assert.True(t, occurrences[i-1].Start.Before(o.Start),
				"starts must be strictly increasing")
		}
	}
}

// Simple daily and weekly schedules should agree with rrule-go's expansion
// of the same rule text.
func TestGenerator_Expand_MatchesRRuleLibrary(t *testing.T) {
	gen := NewGenerator(DefaultConfig, nil)
	until := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)

	texts := []string{
		"FREQ=DAILY;COUNT=20",
		"FREQ=DAILY;INTERVAL=5",
		"FREQ=WEEKLY;COUNT=8",
		"FREQ=MONTHLY;BYMONTHDAY=10",
	}

	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			seed := day(2024, 1, 2)
			event := testEvent(seed, seed.Add(time.Hour), text)

			occurrences, err := gen.Expand(event, until, ExpansionOptions{})
			require.NoError(t, err)

			opt, err := rrule.StrToROption(text)
			require.NoError(t, err)
			opt.Dtstart = seed
			r, err := rrule.NewRRule(*opt)
			require.NoError(t, err)

			assert.Equal(t, r.Between(seed, until, true), starts(occurrences))
		})
	}
}
