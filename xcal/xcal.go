// Package xcal renders expansion and conflict results as xCal-style XML
// (RFC 6321 vocabulary), for callers that exchange calendar data with
// XML-speaking systems.
package xcal

import (
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/caldr-dev/caldr/conflict"
	"github.com/caldr-dev/caldr/recurrence"
	"github.com/caldr-dev/caldr/storage"
)

const namespaceICalendar = "urn:ietf:params:xml:ns:icalendar-2.0"

// MarshalOccurrences renders an event's expanded occurrences as one vevent
// per occurrence inside a single icalendar document.
func MarshalOccurrences(event storage.Event, occurrences []recurrence.Occurrence) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("icalendar")
	root.CreateAttr("xmlns", namespaceICalendar)
	components := root.CreateElement("vcalendar").CreateElement("components")

	for _, occ := range occurrences {
		props := components.CreateElement("vevent").CreateElement("properties")
		addTextProp(props, "uid", occ.EventID)
		if event.Title != "" {
			addTextProp(props, "summary", event.Title)
		}
		addDateTimeProp(props, "dtstart", occ.Start)
		addDateTimeProp(props, "dtend", occ.End)
		// The occurrence's own start doubles as its recurrence id, since
		// occurrences are never persisted under identifiers of their own.
		addDateTimeProp(props, "recurrence-id", occ.Start)
	}

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("xcal: serializing occurrences: %w", err)
	}
	return out, nil
}

// MarshalConflicts renders a conflict report list. Each report becomes a
// conflict element carrying the overlapping sub-interval.
func MarshalConflicts(reports []conflict.Report) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("conflict-report")
	root.CreateAttr("xmlns", namespaceICalendar)

	for _, r := range reports {
		el := root.CreateElement("conflict")
		el.CreateElement("event-id").SetText(r.ConflictingEventID)
		if r.Title != "" {
			el.CreateElement("summary").SetText(r.Title)
		}
		el.CreateElement("start").SetText(formatDateTime(r.ConflictStart))
		el.CreateElement("end").SetText(formatDateTime(r.ConflictEnd))
	}

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("xcal: serializing conflicts: %w", err)
	}
	return out, nil
}

// MarshalSuggestions renders resolver suggestions in document order, which
// is already the engine's preference order.
func MarshalSuggestions(suggestions []conflict.Suggestion) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("suggestions")
	root.CreateAttr("xmlns", namespaceICalendar)

	for _, s := range suggestions {
		el := root.CreateElement("suggestion")
		el.CreateAttr("type", string(s.Type))
		el.CreateElement("start").SetText(formatDateTime(s.Start))
		el.CreateElement("end").SetText(formatDateTime(s.End))
		if s.Description != "" {
			el.CreateElement("description").SetText(s.Description)
		}
	}

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("xcal: serializing suggestions: %w", err)
	}
	return out, nil
}

func addTextProp(parent *etree.Element, name, value string) {
	parent.CreateElement(name).CreateElement("text").SetText(value)
}

func addDateTimeProp(parent *etree.Element, name string, t time.Time) {
	parent.CreateElement(name).CreateElement("date-time").SetText(formatDateTime(t))
}

func formatDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
