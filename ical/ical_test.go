package ical

import (
	"testing"
	"time"

	goical "github.com/emersion/go-ical"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldr-dev/caldr/rule"
	"github.com/caldr-dev/caldr/storage"
)

func vevent(t *testing.T, props map[string]string) *goical.Component {
	t.Helper()
	comp := &goical.Component{Name: goical.CompEvent, Props: make(goical.Props)}
	for name, value := range props {
		comp.Props.Set(&goical.Prop{Name: name, Value: value})
	}
	return comp
}

func TestEventFromComponent(t *testing.T) {
	comp := vevent(t, map[string]string{
		goical.PropUID:             "uid-1",
		goical.PropSummary:         "Weekly sync",
		goical.PropDateTimeStart:   "20240101T090000Z",
		goical.PropDateTimeEnd:     "20240101T100000Z",
		goical.PropRecurrenceRule:  "FREQ=WEEKLY;BYDAY=MO,WE;COUNT=10",
		goical.PropExceptionDates:  "20240115T090000Z",
		goical.PropRecurrenceDates: "20240104T090000Z",
	})

	ev, err := EventFromComponent(comp, "cal-1")
	require.NoError(t, err)

	assert.Equal(t, "uid-1", ev.ID)
	assert.Equal(t, "cal-1", ev.CalendarID)
	assert.Equal(t, "Weekly sync", ev.Title)
	assert.True(t, ev.Start.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, ev.End.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))

	r, ok := ev.Recurrence.Get()
	require.True(t, ok)
	assert.Equal(t, rule.FreqWeekly, r.Frequency)
	assert.Equal(t, []rule.Weekday{rule.Monday, rule.Wednesday}, r.ByWeekday)
	assert.Equal(t, mo.Some(10), r.Count)

	require.Len(t, ev.ExceptionDates, 1)
	assert.True(t, ev.ExceptionDates[0].Equal(time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)))
	require.Len(t, ev.InclusionDates, 1)
}

func TestEventFromComponent_Errors(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]string
	}{
		{
			name: "Missing DTSTART",
			props: map[string]string{
				goical.PropUID:         "uid-1",
				goical.PropDateTimeEnd: "20240101T100000Z",
			},
		},
		{
			name: "Missing DTEND and DURATION",
			props: map[string]string{
				goical.PropUID:           "uid-1",
				goical.PropDateTimeStart: "20240101T090000Z",
			},
		},
		{
			name: "Sub-daily RRULE frequency",
			props: map[string]string{
				goical.PropUID:            "uid-1",
				goical.PropDateTimeStart:  "20240101T090000Z",
				goical.PropDateTimeEnd:    "20240101T100000Z",
				goical.PropRecurrenceRule: "FREQ=HOURLY",
			},
		},
		{
			name: "Positional BYDAY",
			props: map[string]string{
				goical.PropUID:            "uid-1",
				goical.PropDateTimeStart:  "20240101T090000Z",
				goical.PropDateTimeEnd:    "20240101T100000Z",
				goical.PropRecurrenceRule: "FREQ=MONTHLY;BYDAY=2MO",
			},
		},
		{
			name: "BYSETPOS unsupported",
			props: map[string]string{
				goical.PropUID:            "uid-1",
				goical.PropDateTimeStart:  "20240101T090000Z",
				goical.PropDateTimeEnd:    "20240101T100000Z",
				goical.PropRecurrenceRule: "FREQ=MONTHLY;BYDAY=MO;BYSETPOS=1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EventFromComponent(vevent(t, tt.props), "cal-1")
			assert.Error(t, err)
		})
	}
}

func TestEventToComponent_RoundTrip(t *testing.T) {
	r, err := rule.Decode("FREQ=MONTHLY;BYMONTHDAY=1,15;UNTIL=20241231T000000Z")
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	ev := storage.Event{
		ID:             "uid-7",
		CalendarID:     "cal-1",
		Title:          "Invoicing",
		Start:          start,
		End:            start.Add(time.Hour),
		Recurrence:     mo.Some(r),
		ExceptionDates: []time.Time{time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
	}

	comp := EventToComponent(ev)
	got, err := EventFromComponent(comp, "cal-1")
	require.NoError(t, err)

	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, ev.Title, got.Title)
	assert.True(t, got.Start.Equal(ev.Start))
	assert.True(t, got.End.Equal(ev.End))
	assert.Equal(t, ev.Recurrence, got.Recurrence)
	require.Len(t, got.ExceptionDates, 1)
	assert.True(t, got.ExceptionDates[0].Equal(ev.ExceptionDates[0]))
}
