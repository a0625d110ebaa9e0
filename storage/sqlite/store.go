// Package sqlite provides a SQLite-backed Repository. Recurrence rules are
// stored in their wire form and decoded on read, so the database never holds
// a half-valid rule.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/mo"

	"github.com/caldr-dev/caldr/rule"
	"github.com/caldr-dev/caldr/storage"
)

// Store implements storage.Repository on a SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the database at dbPath and applies
// migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			calendar_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			start_at DATETIME NOT NULL,
			end_at DATETIME NOT NULL,
			all_day INTEGER NOT NULL DEFAULT 0,
			recurrence_rule TEXT NOT NULL DEFAULT '',
			exception_dates TEXT NOT NULL DEFAULT '',
			inclusion_dates TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			modified_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_calendar_id ON events(calendar_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start_at ON events(start_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

const eventColumns = `id, calendar_id, title, start_at, end_at, all_day,
	recurrence_rule, exception_dates, inclusion_dates, created_at, modified_at`

// GetEventsByCalendarID implements storage.EventRepository.
func (s *Store) GetEventsByCalendarID(ctx context.Context, calendarID string) ([]storage.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE calendar_id = ? ORDER BY start_at`, calendarID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []storage.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetEvent implements storage.Repository.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*storage.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, eventID)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// CreateEvent implements storage.Repository. A missing ID is assigned.
func (s *Store) CreateEvent(ctx context.Context, event *storage.Event) error {
	if event == nil || event.CalendarID == "" || !event.Start.Before(event.End) {
		return storage.ErrInvalidInput
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	event.Created = now
	event.Modified = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.CalendarID, event.Title,
		event.Start.UTC().Format(time.RFC3339Nano), event.End.UTC().Format(time.RFC3339Nano),
		boolToInt(event.AllDay), encodeRule(event.Recurrence),
		encodeDates(event.ExceptionDates), encodeDates(event.InclusionDates),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// UpdateEvent implements storage.Repository.
func (s *Store) UpdateEvent(ctx context.Context, event *storage.Event) error {
	if event == nil || event.ID == "" || !event.Start.Before(event.End) {
		return storage.ErrInvalidInput
	}

	event.Modified = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET title = ?, start_at = ?, end_at = ?, all_day = ?,
			recurrence_rule = ?, exception_dates = ?, inclusion_dates = ?, modified_at = ?
		 WHERE id = ? AND calendar_id = ?`,
		event.Title,
		event.Start.UTC().Format(time.RFC3339Nano), event.End.UTC().Format(time.RFC3339Nano),
		boolToInt(event.AllDay), encodeRule(event.Recurrence),
		encodeDates(event.ExceptionDates), encodeDates(event.InclusionDates),
		event.Modified.Format(time.RFC3339Nano),
		event.ID, event.CalendarID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteEvent implements storage.Repository.
func (s *Store) DeleteEvent(ctx context.Context, eventID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (storage.Event, error) {
	var (
		ev                   storage.Event
		start, end           string
		created, modified    string
		allDay               int
		ruleText             string
		exceptions, includes string
	)
	err := row.Scan(&ev.ID, &ev.CalendarID, &ev.Title, &start, &end, &allDay,
		&ruleText, &exceptions, &includes, &created, &modified)
	if err != nil {
		return ev, err
	}

	if ev.Start, err = time.Parse(time.RFC3339Nano, start); err != nil {
		return ev, fmt.Errorf("parse start: %w", err)
	}
	if ev.End, err = time.Parse(time.RFC3339Nano, end); err != nil {
		return ev, fmt.Errorf("parse end: %w", err)
	}
	if ev.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return ev, fmt.Errorf("parse created_at: %w", err)
	}
	if ev.Modified, err = time.Parse(time.RFC3339Nano, modified); err != nil {
		return ev, fmt.Errorf("parse modified_at: %w", err)
	}
	ev.AllDay = allDay != 0

	if ruleText != "" {
		r, err := rule.Decode(ruleText)
		if err != nil {
			return ev, fmt.Errorf("decode stored rule for event %q: %w", ev.ID, err)
		}
		ev.Recurrence = mo.Some(r)
	}
	if ev.ExceptionDates, err = decodeDates(exceptions); err != nil {
		return ev, fmt.Errorf("decode exception_dates: %w", err)
	}
	if ev.InclusionDates, err = decodeDates(includes); err != nil {
		return ev, fmt.Errorf("decode inclusion_dates: %w", err)
	}
	return ev, nil
}

func encodeRule(r mo.Option[rule.RecurrenceRule]) string {
	if v, ok := r.Get(); ok {
		return rule.Encode(v)
	}
	return ""
}

func encodeDates(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.UTC().Format(time.RFC3339Nano)
	}
	return strings.Join(parts, ",")
}

func decodeDates(text string) ([]time.Time, error) {
	if text == "" {
		return nil, nil
	}
	var out []time.Time
	for _, part := range strings.Split(text, ",") {
		t, err := time.Parse(time.RFC3339Nano, part)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
