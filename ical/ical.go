// Package ical bridges iCalendar VEVENT components and the engine's event
// model. Only the recurrence-relevant subset of RFC 5545 is mapped; RRULE
// parts the engine cannot express (BYSETPOS, positional BYDAY, sub-daily
// frequencies) are rejected rather than silently dropped.
package ical

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"
	"github.com/teambition/rrule-go"

	"github.com/caldr-dev/caldr/rule"
	"github.com/caldr-dev/caldr/storage"
)

// EventFromComponent converts a VEVENT component into an engine event.
func EventFromComponent(comp *ical.Component, calendarID string) (storage.Event, error) {
	ev := storage.Event{CalendarID: calendarID}

	if comp.Name != ical.CompEvent {
		return ev, fmt.Errorf("ical: expected VEVENT, got %s", comp.Name)
	}

	if uid := comp.Props.Get(ical.PropUID); uid != nil {
		ev.ID = uid.Value
	}
	if summary := comp.Props.Get(ical.PropSummary); summary != nil {
		ev.Title = summary.Value
	}

	if comp.Props.Get(ical.PropDateTimeStart) == nil {
		return ev, fmt.Errorf("ical: event %q has no DTSTART", ev.ID)
	}
	start, err := comp.Props.DateTime(ical.PropDateTimeStart, nil)
	if err != nil {
		return ev, fmt.Errorf("ical: DTSTART: %w", err)
	}
	ev.Start = start
	ev.AllDay = isDateOnly(comp.Props.Get(ical.PropDateTimeStart))

	if comp.Props.Get(ical.PropDateTimeEnd) != nil {
		end, err := comp.Props.DateTime(ical.PropDateTimeEnd, nil)
		if err != nil {
			return ev, fmt.Errorf("ical: DTEND: %w", err)
		}
		ev.End = end
	} else if durProp := comp.Props.Get(ical.PropDuration); durProp != nil {
		dur, err := durProp.Duration()
		if err != nil {
			return ev, fmt.Errorf("ical: DURATION: %w", err)
		}
		ev.End = start.Add(dur)
	} else if ev.AllDay {
		ev.End = start.AddDate(0, 0, 1)
	} else {
		return ev, fmt.Errorf("ical: event %q has neither DTEND nor DURATION", ev.ID)
	}

	if rruleProp := comp.Props.Get(ical.PropRecurrenceRule); rruleProp != nil && rruleProp.Value != "" {
		r, err := decodeRRule(rruleProp.Value)
		if err != nil {
			return ev, fmt.Errorf("ical: RRULE: %w", err)
		}
		ev.Recurrence = mo.Some(r)
	}

	if exdateProp := comp.Props.Get(ical.PropExceptionDates); exdateProp != nil {
		ev.ExceptionDates = parseDateList(exdateProp.Value)
	}
	if rdateProp := comp.Props.Get(ical.PropRecurrenceDates); rdateProp != nil {
		ev.InclusionDates = parseDateList(rdateProp.Value)
	}

	return ev, nil
}

// EventToComponent converts an engine event back into a VEVENT component.
func EventToComponent(ev storage.Event) *ical.Component {
	comp := &ical.Component{Name: ical.CompEvent, Props: make(ical.Props)}
	comp.Props.SetText(ical.PropUID, ev.ID)
	if ev.Title != "" {
		comp.Props.SetText(ical.PropSummary, ev.Title)
	}
	comp.Props.SetDateTime(ical.PropDateTimeStart, ev.Start)
	comp.Props.SetDateTime(ical.PropDateTimeEnd, ev.End)

	// RRULE, EXDATE and RDATE carry their own wire formats; set the raw
	// value so no VALUE=TEXT parameter is attached.
	if r, ok := ev.Recurrence.Get(); ok {
		comp.Props.Set(&ical.Prop{Name: ical.PropRecurrenceRule, Value: rule.Encode(r)})
	}
	if len(ev.ExceptionDates) > 0 {
		comp.Props.Set(&ical.Prop{Name: ical.PropExceptionDates, Value: formatDateList(ev.ExceptionDates)})
	}
	if len(ev.InclusionDates) > 0 {
		comp.Props.Set(&ical.Prop{Name: ical.PropRecurrenceDates, Value: formatDateList(ev.InclusionDates)})
	}
	return comp
}

// decodeRRule parses RRULE property text through rrule-go, which accepts the
// full RFC 5545 grammar, then maps the result onto the engine's rule type.
func decodeRRule(text string) (rule.RecurrenceRule, error) {
	var r rule.RecurrenceRule

	opt, err := rrule.StrToROption(text)
	if err != nil {
		return r, err
	}

	switch opt.Freq {
	case rrule.DAILY:
		r.Frequency = rule.FreqDaily
	case rrule.WEEKLY:
		r.Frequency = rule.FreqWeekly
	case rrule.MONTHLY:
		r.Frequency = rule.FreqMonthly
	case rrule.YEARLY:
		r.Frequency = rule.FreqYearly
	default:
		return r, fmt.Errorf("unsupported frequency in %q", text)
	}

	r.Interval = opt.Interval
	if r.Interval < 1 {
		r.Interval = 1
	}

	for _, wd := range opt.Byweekday {
		if wd.N() != 0 {
			return r, fmt.Errorf("positional BYDAY (%d%s) is not supported", wd.N(), wd)
		}
		r.ByWeekday = append(r.ByWeekday, weekdayFromRRule(wd))
	}
	r.ByMonthDay = append(r.ByMonthDay, opt.Bymonthday...)
	r.ByMonth = append(r.ByMonth, opt.Bymonth...)

	if !opt.Until.IsZero() {
		r.Until = mo.Some(opt.Until)
	}
	if opt.Count > 0 {
		r.Count = mo.Some(opt.Count)
	}

	if len(opt.Bysetpos) > 0 || len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 ||
		len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 {
		return r, fmt.Errorf("unsupported RRULE parts in %q", text)
	}

	return r, r.Validate()
}

// weekdayFromRRule maps rrule-go's Monday-based weekday to a token.
func weekdayFromRRule(wd rrule.Weekday) rule.Weekday {
	switch wd.Day() {
	case 0:
		return rule.Monday
	case 1:
		return rule.Tuesday
	case 2:
		return rule.Wednesday
	case 3:
		return rule.Thursday
	case 4:
		return rule.Friday
	case 5:
		return rule.Saturday
	default:
		return rule.Sunday
	}
}

// parseDateList parses a comma-separated EXDATE/RDATE value. Both full
// date-times and bare dates are accepted; unparseable entries are skipped.
func parseDateList(value string) []time.Time {
	var out []time.Time
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if t, err := time.Parse("20060102T150405Z", part); err == nil {
			out = append(out, t)
			continue
		}
		if t, err := time.Parse("20060102", part); err == nil {
			out = append(out, time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
		}
	}
	return out
}

func formatDateList(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.UTC().Format("20060102T150405Z")
	}
	return strings.Join(parts, ",")
}

// isDateOnly reports whether a property carries VALUE=DATE.
func isDateOnly(prop *ical.Prop) bool {
	if prop == nil {
		return false
	}
	return strings.EqualFold(prop.Params.Get(ical.ParamValue), "DATE")
}
