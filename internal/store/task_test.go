package store

import (
	"testing"
	"time"

	"github.com/dukerupert/daygrid/internal/database"
	"github.com/dukerupert/daygrid/internal/model"
)

func setupTaskTestDB(t *testing.T) *TaskStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTaskStore(db)
}

func TestTaskCreateAndGet(t *testing.T) {
	s := setupTaskTestDB(t)

	due := time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC)
	task, err := s.Create(model.Task{Title: "File taxes", ProjectID: "home", DueDate: &due})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.ID == "" || task.Version != 1 {
		t.Errorf("task = %+v", task)
	}
	if task.DueDate == nil || !task.DueDate.Equal(due) {
		t.Errorf("due = %v, want %v", task.DueDate, due)
	}
	if task.DueRaw != "2024-01-10T17:00:00Z" {
		t.Errorf("DueRaw = %q", task.DueRaw)
	}

	if got, err := s.GetByID("missing"); err != nil || got != nil {
		t.Errorf("get missing = %v, %v", got, err)
	}
}

func TestTaskUnparseableDueSurvives(t *testing.T) {
	s := setupTaskTestDB(t)

	task, err := s.Create(model.Task{Title: "Someday", DueRaw: "whenever"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.DueDate != nil {
		t.Errorf("due = %v, want nil", task.DueDate)
	}
	if task.DueRaw != "whenever" {
		t.Errorf("DueRaw = %q, want whenever", task.DueRaw)
	}
}

func TestTaskDateOnlyDue(t *testing.T) {
	s := setupTaskTestDB(t)

	task, err := s.Create(model.Task{Title: "Renew passport", DueRaw: "2024-03-01"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if task.DueDate == nil || !task.DueDate.Equal(want) {
		t.Errorf("due = %v, want %v", task.DueDate, want)
	}
}

func TestTaskListAndComplete(t *testing.T) {
	s := setupTaskTestDB(t)

	a, _ := s.Create(model.Task{Title: "A"})
	b, _ := s.Create(model.Task{Title: "B"})

	if _, err := s.SetCompleted(a.ID, true); err != nil {
		t.Fatalf("set completed: %v", err)
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != b.ID || !all[1].Completed {
		t.Errorf("list = %+v, want open task first", all)
	}

	open, err := s.ListOpen()
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 || open[0].ID != b.ID {
		t.Errorf("open = %+v", open)
	}
}

func TestTaskUpdateAndDelete(t *testing.T) {
	s := setupTaskTestDB(t)

	task, _ := s.Create(model.Task{Title: "Draft"})
	task.Title = "Final"
	updated, err := s.Update(*task)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Final" || updated.Version != 2 {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := s.Update(*task); err != ErrVersionConflict {
		t.Errorf("stale update err = %v, want ErrVersionConflict", err)
	}

	if err := s.Delete(task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.GetByID(task.ID); got != nil {
		t.Error("task should be deleted")
	}
}
