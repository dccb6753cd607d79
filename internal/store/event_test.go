package store

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/daygrid/internal/database"
	"github.com/dukerupert/daygrid/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) *EventStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewEventStore(db)
}

func at(day, hour int) time.Time {
	return time.Date(2026, 2, day, hour, 0, 0, 0, time.UTC)
}

func TestCreateAndGetByID(t *testing.T) {
	s := setupTestDB(t)

	event, err := s.Create(model.Event{
		Title:       "Team Meeting",
		Description: "Weekly sync",
		Start:       at(5, 10),
		End:         at(5, 11),
		Color:       "#22c55e",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if event.ID == "" {
		t.Fatal("expected generated ID")
	}
	if event.Title != "Team Meeting" || event.Description != "Weekly sync" || event.Color != "#22c55e" {
		t.Errorf("event = %+v", event)
	}
	if !event.Start.Equal(at(5, 10)) || !event.End.Equal(at(5, 11)) {
		t.Errorf("times = %v - %v", event.Start, event.End)
	}
	if event.Version != 1 {
		t.Errorf("version = %d, want 1", event.Version)
	}
	if event.AllDay || event.AllWeek {
		t.Error("flags should be false")
	}

	got, err := s.GetByID(event.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Title != "Team Meeting" {
		t.Errorf("got title = %q, want %q", got.Title, "Team Meeting")
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s := setupTestDB(t)

	got, err := s.GetByID("missing")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent event")
	}
}

func TestListByDateRange(t *testing.T) {
	s := setupTestDB(t)

	events := []model.Event{
		{ID: "before", Title: "Before", Start: at(4, 9), End: at(4, 10)},
		{ID: "inside", Title: "Inside", Start: at(5, 9), End: at(5, 10)},
		{ID: "overnight", Title: "Overnight", Start: at(4, 22), End: at(5, 2)},
		{ID: "ends-at-midnight", Title: "Late", Start: at(4, 23), End: at(5, 0)},
		{ID: "holiday", Title: "Holiday", Start: at(5, 0), End: at(6, 0), AllDay: true},
		{ID: "after", Title: "After", Start: at(6, 0), End: at(6, 1)},
	}
	if err := s.CreateMany(events); err != nil {
		t.Fatalf("create many: %v", err)
	}

	got, err := s.ListByDateRange(at(5, 0), at(6, 0))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	want := []string{"holiday", "overnight", "inside"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}
	if !got[0].AllDay {
		t.Error("holiday should be all-day")
	}
}

func TestSeries(t *testing.T) {
	s := setupTestDB(t)

	series := []model.Event{
		{ID: "s0", SeriesID: "s0", Title: "Gym", Start: at(2, 7), End: at(2, 8), RecurrenceRule: "FREQ=DAILY;COUNT=3"},
		{ID: "s1", SeriesID: "s0", Title: "Gym", Start: at(3, 7), End: at(3, 8), RecurrenceRule: "FREQ=DAILY;COUNT=3"},
		{ID: "s2", SeriesID: "s0", Title: "Gym", Start: at(4, 7), End: at(4, 8), RecurrenceRule: "FREQ=DAILY;COUNT=3"},
	}
	if err := s.CreateMany(series); err != nil {
		t.Fatalf("create many: %v", err)
	}

	got, err := s.ListSeries("s0")
	if err != nil {
		t.Fatalf("list series: %v", err)
	}
	if len(got) != 3 || got[0].ID != "s0" {
		t.Fatalf("series = %+v", got)
	}

	n, err := s.DeleteSeries("s0", "s0")
	if err != nil {
		t.Fatalf("delete series: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}
	got, _ = s.ListSeries("s0")
	if len(got) != 1 || got[0].ID != "s0" {
		t.Errorf("after delete = %+v, want only base", got)
	}
}

func TestCreateManyRollsBack(t *testing.T) {
	s := setupTestDB(t)

	dup := []model.Event{
		{ID: "x", Title: "One", Start: at(5, 9), End: at(5, 10)},
		{ID: "x", Title: "Two", Start: at(5, 9), End: at(5, 10)},
	}
	if err := s.CreateMany(dup); err == nil {
		t.Fatal("expected duplicate key error")
	}
	if got, _ := s.GetByID("x"); got != nil {
		t.Error("partial insert was committed")
	}
}

func TestUpdate(t *testing.T) {
	s := setupTestDB(t)

	event, err := s.Create(model.Event{Title: "Draft", Start: at(5, 9), End: at(5, 10)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	event.Title = "Final"
	event.AllWeek = true
	updated, err := s.Update(*event)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Final" || !updated.AllWeek || updated.Version != 2 {
		t.Errorf("updated = %+v", updated)
	}

	// stale version
	event.Title = "Stale"
	if _, err := s.Update(*event); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale update err = %v, want ErrVersionConflict", err)
	}

	// version 0 skips the check
	event.Version = 0
	if _, err := s.Update(*event); err != nil {
		t.Errorf("unversioned update: %v", err)
	}

	missing, err := s.Update(model.Event{ID: "nope", Title: "x", Start: at(5, 9), End: at(5, 10)})
	if err != nil || missing != nil {
		t.Errorf("update missing = %v, %v; want nil, nil", missing, err)
	}
}

func TestUpdateTimes(t *testing.T) {
	s := setupTestDB(t)

	event, err := s.Create(model.Event{Title: "Call", Start: at(5, 9), End: at(5, 10), Color: "#f00"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	moved, err := s.UpdateTimes(event.ID, at(6, 14), at(6, 15))
	if err != nil {
		t.Fatalf("update times: %v", err)
	}
	if !moved.Start.Equal(at(6, 14)) || !moved.End.Equal(at(6, 15)) || moved.Color != "#f00" {
		t.Errorf("moved = %+v", moved)
	}
	if moved.Version != 2 {
		t.Errorf("version = %d, want 2", moved.Version)
	}

	if got, err := s.UpdateTimes("missing", at(6, 14), at(6, 15)); err != nil || got != nil {
		t.Errorf("update missing = %v, %v", got, err)
	}
}

func TestDelete(t *testing.T) {
	s := setupTestDB(t)

	event, err := s.Create(model.Event{Title: "Temp", Start: at(5, 9), End: at(5, 10)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(event.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.GetByID(event.ID); got != nil {
		t.Error("event should be deleted")
	}
}
