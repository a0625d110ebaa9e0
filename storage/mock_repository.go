package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRepository implements the Repository interface for testing.
type MockRepository struct {
	mock.Mock
}

// GetEventsByCalendarID implements the EventRepository interface.
func (m *MockRepository) GetEventsByCalendarID(ctx context.Context, calendarID string) ([]Event, error) {
	args := m.Called(ctx, calendarID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Event), args.Error(1)
}

// GetEvent implements the Repository interface.
func (m *MockRepository) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Event), args.Error(1)
}

// CreateEvent implements the Repository interface.
func (m *MockRepository) CreateEvent(ctx context.Context, event *Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// UpdateEvent implements the Repository interface.
func (m *MockRepository) UpdateEvent(ctx context.Context, event *Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// DeleteEvent implements the Repository interface.
func (m *MockRepository) DeleteEvent(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}
