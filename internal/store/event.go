package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/daygrid/internal/model"
)

// ErrVersionConflict is returned when an update carries a stale version.
var ErrVersionConflict = errors.New("version conflict")

const eventColumns = `id, series_id, title, description, start_time, end_time, color, all_day, all_week,
	recurrence_rule, version, created_at, updated_at`

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.Event, error) {
	var e model.Event
	var allDay, allWeek int
	err := row.Scan(&e.ID, &e.SeriesID, &e.Title, &e.Description, &e.Start, &e.End, &e.Color,
		&allDay, &allWeek, &e.RecurrenceRule, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	e.AllDay = allDay != 0
	e.AllWeek = allWeek != 0
	return e, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func insertEvent(x execer, e *model.Event, now time.Time) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Version = 1
	e.CreatedAt, e.UpdatedAt = now, now
	_, err := x.Exec(
		`INSERT INTO events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SeriesID, e.Title, e.Description, e.Start.UTC(), e.End.UTC(), e.Color,
		boolInt(e.AllDay), boolInt(e.AllWeek), e.RecurrenceRule, e.Version, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Create inserts e, assigning an ID when it has none.
func (s *EventStore) Create(e model.Event) (*model.Event, error) {
	if err := insertEvent(s.db, &e, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.GetByID(e.ID)
}

// CreateMany inserts all events in one transaction.
func (s *EventStore) CreateMany(events []model.Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range events {
		if err := insertEvent(tx, &events[i], now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}
	return nil
}

func (s *EventStore) GetByID(id string) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRow(`SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	return &e, nil
}

func (s *EventStore) list(query string, args ...any) ([]model.Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListByDateRange returns events intersecting the half-open range [start, end).
func (s *EventStore) ListByDateRange(start, end time.Time) ([]model.Event, error) {
	return s.list(
		`SELECT `+eventColumns+` FROM events
		 WHERE start_time < ? AND end_time > ?
		 ORDER BY all_day DESC, start_time ASC, id ASC`,
		end.UTC(), start.UTC(),
	)
}

func (s *EventStore) List() ([]model.Event, error) {
	return s.list(`SELECT ` + eventColumns + ` FROM events ORDER BY start_time ASC, id ASC`)
}

// ListSeries returns every occurrence of a series, base first.
func (s *EventStore) ListSeries(seriesID string) ([]model.Event, error) {
	return s.list(
		`SELECT `+eventColumns+` FROM events WHERE series_id = ? ORDER BY start_time ASC, id ASC`,
		seriesID,
	)
}

// Update overwrites the editable fields of e and bumps its version. When
// e.Version is non-zero it must match the stored version.
func (s *EventStore) Update(e model.Event) (*model.Event, error) {
	res, err := s.db.Exec(
		`UPDATE events
		 SET series_id = ?, title = ?, description = ?, start_time = ?, end_time = ?, color = ?,
		     all_day = ?, all_week = ?, recurrence_rule = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND (? = 0 OR version = ?)`,
		e.SeriesID, e.Title, e.Description, e.Start.UTC(), e.End.UTC(), e.Color,
		boolInt(e.AllDay), boolInt(e.AllWeek), e.RecurrenceRule, time.Now().UTC(),
		e.ID, e.Version, e.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if err := s.checkUpdated(res, e.ID); err != nil {
		return nil, err
	}
	return s.GetByID(e.ID)
}

// UpdateTimes moves an event without touching its other fields.
func (s *EventStore) UpdateTimes(id string, start, end time.Time) (*model.Event, error) {
	res, err := s.db.Exec(
		`UPDATE events SET start_time = ?, end_time = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		start.UTC(), end.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update event times: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

// checkUpdated distinguishes a missing row (nil, handled by the caller's
// GetByID) from a version mismatch.
func (s *EventStore) checkUpdated(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	existing, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrVersionConflict
	}
	return nil
}

func (s *EventStore) Delete(id string) error {
	_, err := s.db.Exec("DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// DeleteSeries removes every occurrence of a series except keepID and
// returns how many rows were deleted.
func (s *EventStore) DeleteSeries(seriesID, keepID string) (int64, error) {
	res, err := s.db.Exec("DELETE FROM events WHERE series_id = ? AND id != ?", seriesID, keepID)
	if err != nil {
		return 0, fmt.Errorf("delete event series: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
