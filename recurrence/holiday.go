package recurrence

import "time"

// dayKey normalizes a timestamp to its calendar day for set membership.
func dayKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

// FixedHolidays is a HolidayProvider backed by an explicit date list.
type FixedHolidays struct {
	days map[string]struct{}
}

// NewFixedHolidays builds a provider from the given dates. Time-of-day is
// ignored; membership is by calendar day.
func NewFixedHolidays(dates ...time.Time) *FixedHolidays {
	days := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		days[dayKey(d)] = struct{}{}
	}
	return &FixedHolidays{days: days}
}

func (h *FixedHolidays) IsHoliday(date time.Time) bool {
	_, ok := h.days[dayKey(date)]
	return ok
}

// Weekends treats Saturday and Sunday as holidays.
var Weekends HolidayProvider = HolidayFunc(func(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
})

// CombineHolidays returns a provider that reports a holiday when any of the
// given providers does.
func CombineHolidays(providers ...HolidayProvider) HolidayProvider {
	return HolidayFunc(func(date time.Time) bool {
		for _, p := range providers {
			if p != nil && p.IsHoliday(date) {
				return true
			}
		}
		return false
	})
}
