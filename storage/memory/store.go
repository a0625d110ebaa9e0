// Package memory provides an in-memory Repository, used in tests and small
// single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caldr-dev/caldr/storage"
)

// Store implements storage.Repository using in-memory maps.
type Store struct {
	mu       sync.RWMutex
	events   map[string]storage.Event // key: eventID
	byCal    map[string][]string      // calendarID -> ordered eventIDs
	now      func() time.Time
	calendar map[string]struct{} // known calendar IDs
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		events:   make(map[string]storage.Event),
		byCal:    make(map[string][]string),
		calendar: make(map[string]struct{}),
		now:      time.Now,
	}
}

// AddCalendar registers a calendar id so lookups against it succeed even
// while it is empty.
func (s *Store) AddCalendar(calendarID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendar[calendarID] = struct{}{}
}

// GetEventsByCalendarID implements storage.EventRepository.
func (s *Store) GetEventsByCalendarID(_ context.Context, calendarID string) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.byCal[calendarID]
	if !ok {
		if _, known := s.calendar[calendarID]; !known {
			return nil, storage.ErrNotFound
		}
		return nil, nil
	}

	out := make([]storage.Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.events[id])
	}
	return out, nil
}

// GetEvent implements storage.Repository.
func (s *Store) GetEvent(_ context.Context, eventID string) (*storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[eventID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &ev, nil
}

// CreateEvent implements storage.Repository. A missing ID is assigned.
func (s *Store) CreateEvent(_ context.Context, event *storage.Event) error {
	if event == nil || event.CalendarID == "" {
		return storage.ErrInvalidInput
	}
	if !event.Start.Before(event.End) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	} else if _, exists := s.events[event.ID]; exists {
		return storage.ErrAlreadyExists
	}

	now := s.now()
	event.Created = now
	event.Modified = now

	s.events[event.ID] = *event
	s.byCal[event.CalendarID] = append(s.byCal[event.CalendarID], event.ID)
	s.calendar[event.CalendarID] = struct{}{}
	return nil
}

// UpdateEvent implements storage.Repository.
func (s *Store) UpdateEvent(_ context.Context, event *storage.Event) error {
	if event == nil || event.ID == "" {
		return storage.ErrInvalidInput
	}
	if !event.Start.Before(event.End) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.events[event.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if old.CalendarID != event.CalendarID {
		return storage.ErrInvalidInput
	}

	event.Created = old.Created
	event.Modified = s.now()
	s.events[event.ID] = *event
	return nil
}

// DeleteEvent implements storage.Repository.
func (s *Store) DeleteEvent(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[eventID]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.events, eventID)

	ids := s.byCal[ev.CalendarID]
	for i, id := range ids {
		if id == eventID {
			s.byCal[ev.CalendarID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}
