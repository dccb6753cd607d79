// Package scheduler re-runs the overdue classifier and advances the
// live-time marker on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/daygrid/internal/calendar"
	"github.com/dukerupert/daygrid/internal/config"
	"github.com/dukerupert/daygrid/internal/metrics"
	"github.com/dukerupert/daygrid/internal/overdue"
	"github.com/dukerupert/daygrid/internal/store"
)

var statuses = []string{
	string(overdue.StatusOnTime),
	string(overdue.StatusSoftOverdue),
	string(overdue.StatusHardOverdue),
}

// Broadcaster publishes change notifications to connected views.
type Broadcaster interface {
	Publish(entity, action, id string, extra map[string]any)
}

// Report summarizes one tick.
type Report struct {
	Open        int
	Counts      map[overdue.Status]int
	Transitions int
}

// Scheduler periodically classifies open tasks.
type Scheduler struct {
	mu       sync.Mutex
	tasks    *store.TaskStore
	cfg      config.Source
	hub      Broadcaster
	metrics  *metrics.Metrics
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
	last     map[string]overdue.Status
	cron     *cron.Cron
	entry    cron.EntryID
	schedule string
	jobs     []job
}

type job struct {
	name string
	spec string
	fn   func()
}

// New creates a scheduler. hub and m may be nil.
func New(tasks *store.TaskStore, cfg config.Source, hub Broadcaster, m *metrics.Metrics, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		tasks:   tasks,
		cfg:     cfg,
		hub:     hub,
		metrics: m,
		loc:     loc,
		logger:  logger.With("component", "scheduler"),
		now:     time.Now,
		last:    make(map[string]overdue.Status),
	}
}

// AddJob registers a housekeeping job that runs alongside the tick. Jobs
// added after Start take effect on the next Start.
func (s *Scheduler) AddJob(name, spec string, fn func()) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("schedule job %s %q: %w", name, spec, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job{name: name, spec: spec, fn: fn})
	return nil
}

// Start runs an initial tick and schedules the rest. The scheduler stops when
// ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	c := cron.New(cron.WithLocation(s.loc))
	for _, j := range s.jobs {
		// specs were checked by AddJob
		c.AddFunc(j.spec, j.fn)
		s.logger.Debug("job scheduled", "job", j.name, "schedule", j.spec)
	}
	s.cron = c
	s.mu.Unlock()

	if err := s.reschedule(s.cfg.Engine().TickSchedule); err != nil {
		s.mu.Lock()
		s.cron = nil
		s.mu.Unlock()
		return err
	}
	if _, err := s.Tick(s.now()); err != nil {
		s.logger.Error("initial tick", "error", err)
	}
	c.Start()
	s.logger.Info("scheduler started", "schedule", s.currentSchedule())

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for a running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) reschedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return nil
	}
	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return fmt.Errorf("schedule tick %q: %w", spec, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	s.schedule = spec
	return nil
}

func (s *Scheduler) run() {
	if spec := s.cfg.Engine().TickSchedule; spec != s.currentSchedule() {
		if err := s.reschedule(spec); err != nil {
			s.logger.Warn("keeping previous tick schedule", "schedule", s.currentSchedule(), "error", err)
		} else {
			s.logger.Info("tick schedule changed", "schedule", spec)
		}
	}
	if _, err := s.Tick(s.now()); err != nil {
		s.logger.Error("tick", "error", err)
	}
}

func (s *Scheduler) currentSchedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// Tick classifies every open task at now, publishes status transitions and
// the live-time marker, and refreshes the task gauge.
func (s *Scheduler) Tick(now time.Time) (Report, error) {
	open, err := s.tasks.ListOpen()
	if err != nil {
		return Report{}, fmt.Errorf("list open tasks: %w", err)
	}
	e := s.cfg.Engine()
	results := overdue.ClassifyAll(open, now, e.Offsets())

	rep := Report{Open: len(results), Counts: make(map[overdue.Status]int)}
	seen := make(map[string]bool, len(results))

	s.mu.Lock()
	for _, r := range results {
		rep.Counts[r.Status]++
		seen[r.ID] = true
		prev, known := s.last[r.ID]
		s.last[r.ID] = r.Status
		if !known || prev == r.Status {
			continue
		}
		rep.Transitions++
		s.publish("task", "status_changed", r.ID, map[string]any{
			"from":  string(prev),
			"to":    string(r.Status),
			"days":  r.Days,
			"label": overdue.Label(r.Result),
		})
	}
	for id := range s.last {
		if !seen[id] {
			delete(s.last, id)
		}
	}
	s.mu.Unlock()

	if s.metrics != nil {
		counts := make(map[string]int, len(rep.Counts))
		for k, v := range rep.Counts {
			counts[string(k)] = v
		}
		s.metrics.SetTasks(statuses, counts)
	}

	extra := map[string]any{"time": now.In(s.loc).Format(time.RFC3339), "visible": false}
	if m, ok := calendar.NowMarker(e, now.In(s.loc)); ok {
		extra["visible"] = true
		extra["offset_px"] = m.OffsetPx
	}
	s.publish("clock", "tick", "", extra)

	s.logger.Debug("tick", "open", rep.Open, "transitions", rep.Transitions)
	return rep, nil
}

func (s *Scheduler) publish(entity, action, id string, extra map[string]any) {
	if s.hub != nil {
		s.hub.Publish(entity, action, id, extra)
	}
}
