package rule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// timestampLayout is the wire format for UNTIL values.
const timestampLayout = "20060102T150405Z"

// ParseError describes a malformed recurrence rule string.
type ParseError struct {
	Key    string // the KEY the error was detected on, empty for structural errors
	Value  string // the offending value, if any
	Reason string
}

func (e *ParseError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("rule: %s", e.Reason)
	}
	if e.Value == "" {
		return fmt.Sprintf("rule: %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("rule: %s=%q: %s", e.Key, e.Value, e.Reason)
}

// Encode serializes r as KEY=VALUE pairs joined by ";" in fixed key order
// (FREQ, INTERVAL, BYDAY, BYMONTHDAY, BYMONTH, UNTIL, COUNT). Only fields
// that differ from their defaults are emitted, so the output is canonical
// and round-trips through Decode.
func Encode(r RecurrenceRule) string {
	parts := []string{"FREQ=" + string(r.Frequency)}

	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if len(r.ByWeekday) > 0 {
		days := make([]string, len(r.ByWeekday))
		for i, w := range r.ByWeekday {
			days[i] = string(w)
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	if len(r.ByMonthDay) > 0 {
		parts = append(parts, "BYMONTHDAY="+joinInts(r.ByMonthDay))
	}
	if len(r.ByMonth) > 0 {
		parts = append(parts, "BYMONTH="+joinInts(r.ByMonth))
	}
	if until, ok := r.Until.Get(); ok {
		parts = append(parts, "UNTIL="+until.UTC().Format(timestampLayout))
	}
	if count, ok := r.Count.Get(); ok {
		parts = append(parts, "COUNT="+strconv.Itoa(count))
	}

	return strings.Join(parts, ";")
}

// Decode parses a recurrence rule string into its structured form.
// Unknown keys are ignored for forward compatibility. It returns a
// *ParseError when FREQ is missing or unrecognized, INTERVAL is not a
// positive integer, or UNTIL fails timestamp parsing.
func Decode(text string) (RecurrenceRule, error) {
	r := RecurrenceRule{Interval: 1}

	seenFreq := false
	for _, pair := range strings.Split(text, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return r, &ParseError{Value: pair, Reason: "expected KEY=VALUE pair"}
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "FREQ":
			freq := Frequency(strings.ToUpper(value))
			if !freq.Valid() {
				return r, &ParseError{Key: "FREQ", Value: value, Reason: "unknown frequency"}
			}
			r.Frequency = freq
			seenFreq = true
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return r, &ParseError{Key: "INTERVAL", Value: value, Reason: "must be a positive integer"}
			}
			r.Interval = n
		case "BYDAY":
			for _, tok := range strings.Split(value, ",") {
				w := Weekday(strings.ToUpper(strings.TrimSpace(tok)))
				if !w.Valid() {
					return r, &ParseError{Key: "BYDAY", Value: tok, Reason: "unknown weekday token"}
				}
				r.ByWeekday = append(r.ByWeekday, w)
			}
		case "BYMONTHDAY":
			days, err := splitInts(value, 1, 31)
			if err != nil {
				return r, &ParseError{Key: "BYMONTHDAY", Value: value, Reason: err.Error()}
			}
			r.ByMonthDay = days
		case "BYMONTH":
			months, err := splitInts(value, 1, 12)
			if err != nil {
				return r, &ParseError{Key: "BYMONTH", Value: value, Reason: err.Error()}
			}
			r.ByMonth = months
		case "UNTIL":
			until, err := time.Parse(timestampLayout, value)
			if err != nil {
				return r, &ParseError{Key: "UNTIL", Value: value, Reason: "invalid timestamp"}
			}
			r.Until = mo.Some(until)
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return r, &ParseError{Key: "COUNT", Value: value, Reason: "must be a positive integer"}
			}
			r.Count = mo.Some(n)
		default:
			// Unknown keys are skipped so rules written by newer
			// producers still decode.
		}
	}

	if !seenFreq {
		return r, &ParseError{Key: "FREQ", Reason: "missing"}
	}
	return r, nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func splitInts(value string, min, max int) ([]int, error) {
	var out []int
	for _, tok := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", tok)
		}
		if n < min || n > max {
			return nil, fmt.Errorf("%d out of range [%d,%d]", n, min, max)
		}
		out = append(out, n)
	}
	return out, nil
}
