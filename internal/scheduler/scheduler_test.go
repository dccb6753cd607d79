package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dukerupert/daygrid/internal/config"
	"github.com/dukerupert/daygrid/internal/database"
	"github.com/dukerupert/daygrid/internal/metrics"
	"github.com/dukerupert/daygrid/internal/model"
	"github.com/dukerupert/daygrid/internal/overdue"
	"github.com/dukerupert/daygrid/internal/store"
)

type message struct {
	entity, action, id string
	extra              map[string]any
}

type recordingHub struct {
	mu   sync.Mutex
	msgs []message
}

func (h *recordingHub) Publish(entity, action, id string, extra map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, message{entity, action, id, extra})
}

func (h *recordingHub) byType(entity, action string) []message {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []message
	for _, m := range h.msgs {
		if m.entity == entity && m.action == action {
			out = append(out, m)
		}
	}
	return out
}

func setup(t *testing.T, engine config.Engine) (*Scheduler, *store.TaskStore, *recordingHub, *metrics.Metrics) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tasks := store.NewTaskStore(db)
	hub := &recordingHub{}
	m := metrics.New(nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(tasks, config.Static(engine), hub, m, time.UTC, logger), tasks, hub, m
}

func TestTickReportsTransitions(t *testing.T) {
	s, tasks, hub, m := setup(t, config.DefaultEngine())

	due := time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC)
	task, err := tasks.Create(model.Task{Title: "File report", DueDate: &due})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := tasks.Create(model.Task{Title: "No date"}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	// first sighting is never a transition
	rep, err := s.Tick(time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if rep.Open != 2 || rep.Transitions != 0 || rep.Counts[overdue.StatusOnTime] != 2 {
		t.Errorf("first tick = %+v", rep)
	}

	// soft deadline is Jan 7 17:00 with the default 3-day offset
	rep, err = s.Tick(time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if rep.Transitions != 1 || rep.Counts[overdue.StatusSoftOverdue] != 1 {
		t.Errorf("second tick = %+v", rep)
	}
	changes := hub.byType("task", "status_changed")
	if len(changes) != 1 || changes[0].id != task.ID {
		t.Fatalf("status changes = %+v", changes)
	}
	if changes[0].extra["from"] != "on_time" || changes[0].extra["to"] != "soft_overdue" {
		t.Errorf("change = %+v", changes[0].extra)
	}

	// same status again: no new broadcast
	if rep, _ = s.Tick(time.Date(2024, 1, 8, 13, 0, 0, 0, time.UTC)); rep.Transitions != 0 {
		t.Errorf("repeat tick transitions = %d, want 0", rep.Transitions)
	}

	if got := testutil.ToFloat64(m.Tasks.WithLabelValues("soft_overdue")); got != 1 {
		t.Errorf("soft_overdue gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Tasks.WithLabelValues("on_time")); got != 1 {
		t.Errorf("on_time gauge = %v, want 1", got)
	}
}

func TestTickSkipsCompletedAndForgetsThem(t *testing.T) {
	s, tasks, _, _ := setup(t, config.DefaultEngine())

	due := time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC)
	task, _ := tasks.Create(model.Task{Title: "Done soon", DueDate: &due})

	if _, err := s.Tick(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if _, err := tasks.SetCompleted(task.ID, true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	rep, err := s.Tick(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if rep.Open != 0 || rep.Transitions != 0 {
		t.Errorf("report = %+v", rep)
	}
	if len(s.last) != 0 {
		t.Errorf("remembered statuses = %v, want none", s.last)
	}
}

func TestTickPublishesClock(t *testing.T) {
	e := config.DefaultEngine()
	e.StartHour, e.EndHour = 8, 18
	s, _, hub, _ := setup(t, e)

	if _, err := s.Tick(time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if _, err := s.Tick(time.Date(2024, 1, 5, 20, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("tick: %v", err)
	}

	ticks := hub.byType("clock", "tick")
	if len(ticks) != 2 {
		t.Fatalf("clock ticks = %d, want 2", len(ticks))
	}
	if ticks[0].extra["visible"] != true || ticks[0].extra["offset_px"] != 1.5*48 {
		t.Errorf("09:30 tick = %+v", ticks[0].extra)
	}
	if ticks[1].extra["visible"] != false {
		t.Errorf("20:00 tick should be hidden: %+v", ticks[1].extra)
	}
}

func TestStartStop(t *testing.T) {
	s, _, hub, _ := setup(t, config.DefaultEngine())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second start should fail")
	}
	if len(hub.byType("clock", "tick")) != 1 {
		t.Error("start should run an initial tick")
	}
	s.Stop()
	s.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	e := config.DefaultEngine()
	e.TickSchedule = "every so often"
	s, _, _, _ := setup(t, e)

	if err := s.Start(context.Background()); err == nil {
		s.Stop()
		t.Fatal("expected schedule error")
	}
}

func TestAddJob(t *testing.T) {
	s, _, _, _ := setup(t, config.DefaultEngine())

	if err := s.AddJob("cleanup", "not a spec", func() {}); err == nil {
		t.Error("expected spec error")
	}
	if err := s.AddJob("cleanup", "@every 1h", func() {}); err != nil {
		t.Fatalf("add job: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if n := len(c.Entries()); n != 2 {
		t.Errorf("cron entries = %d, want tick and job", n)
	}
}
