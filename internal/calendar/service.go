// Package calendar ties event storage to recurrence expansion, day layout and
// realtime notifications. It is the persistence side of the interaction
// controller.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/daygrid/internal/config"
	"github.com/dukerupert/daygrid/internal/interaction"
	"github.com/dukerupert/daygrid/internal/metrics"
	"github.com/dukerupert/daygrid/internal/model"
	"github.com/dukerupert/daygrid/internal/recurrence"
	"github.com/dukerupert/daygrid/internal/store"
	"github.com/dukerupert/daygrid/internal/timegrid"
)

var (
	ErrNotFound     = errors.New("event not found")
	ErrInvalidTimes = errors.New("end must be after start")
	ErrOccurrence   = errors.New("recurrence can only be changed on the first event of a series")
)

// Broadcaster publishes change notifications to connected views.
type Broadcaster interface {
	Publish(entity, action, id string, extra map[string]any)
}

// Scope selects what a delete applies to.
type Scope string

const (
	ScopeOne    Scope = "one"
	ScopeSeries Scope = "series"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeOne:
		return ScopeOne, nil
	case ScopeSeries:
		return ScopeSeries, nil
	}
	return "", fmt.Errorf("invalid delete scope %q", s)
}

type Service struct {
	events  *store.EventStore
	cfg     config.Source
	hub     Broadcaster
	metrics *metrics.Metrics
	loc     *time.Location
	logger  *slog.Logger
	newID   func() string
}

// NewService wires the calendar. hub and m may be nil.
func NewService(events *store.EventStore, cfg config.Source, hub Broadcaster, m *metrics.Metrics, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		events:  events,
		cfg:     cfg,
		hub:     hub,
		metrics: m,
		loc:     loc,
		logger:  logger.With("component", "calendar"),
		newID:   uuid.NewString,
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) publish(action, id string, extra map[string]any) {
	if s.hub != nil {
		s.hub.Publish("calendar_event", action, id, extra)
	}
}

// Created is the outcome of CreateEvent.
type Created struct {
	Events    []model.Event `json:"events"`
	Truncated bool          `json:"truncated"`
	// RuleError is set when the recurrence text could not be parsed and the
	// event was stored as a single occurrence.
	RuleError string `json:"rule_error,omitempty"`
}

// CreateEvent stores ev and, when ruleText describes a recurrence, every
// occurrence of the series up to the configured safety cap.
func (s *Service) CreateEvent(ctx context.Context, ev model.Event, ruleText string) (*Created, error) {
	ev = s.normalize(ev)
	if !ev.Valid() {
		return nil, ErrInvalidTimes
	}
	if ev.ID == "" {
		ev.ID = s.newID()
	}

	out := &Created{}
	rule, err := recurrence.Parse(ruleText)
	if err != nil {
		s.logger.Warn("recurrence ignored", "event_id", ev.ID, "rule", ruleText, "error", err)
		out.RuleError = err.Error()
		rule = recurrence.Rule{}
	}

	occ := []model.Event{ev}
	if !rule.IsNone() {
		res := s.expander().Expand(ev, rule)
		occ, out.Truncated = res.Occurrences, res.Truncated
		if s.metrics != nil {
			s.metrics.ObserveExpansion(res.Truncated)
		}
		if res.Truncated {
			s.logger.Warn("recurrence truncated", "event_id", ev.ID, "rule", rule.String(), "occurrences", len(occ))
		}
	} else {
		occ[0].SeriesID = ""
		occ[0].RecurrenceRule = ""
	}

	if err := s.events.CreateMany(occ); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	out.Events = occ

	s.logger.Info("event created", "event_id", ev.ID, "occurrences", len(occ))
	s.publish("created", ev.ID, map[string]any{"occurrences": len(occ), "truncated": out.Truncated})
	return out, nil
}

// UpdateEvent overwrites the stored event with ev. When ev is the first event
// of a series (or a single event) and ruleText differs from the stored rule,
// the rest of the series is deleted and expanded again from ev. Occurrences
// derived from a series keep their rule.
func (s *Service) UpdateEvent(ctx context.Context, ev model.Event, ruleText string) (*Created, error) {
	existing, err := s.events.GetByID(ev.ID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	ev = s.normalize(ev)
	if !ev.Valid() {
		return nil, ErrInvalidTimes
	}

	out := &Created{}
	rule, err := recurrence.Parse(ruleText)
	if err != nil {
		out.RuleError = err.Error()
		rule, _ = recurrence.Parse(existing.RecurrenceRule)
	}
	newRule := rule.String()

	derived := existing.SeriesID != "" && existing.SeriesID != existing.ID
	if derived {
		if newRule != existing.RecurrenceRule {
			return nil, ErrOccurrence
		}
		ev.SeriesID = existing.SeriesID
		ev.RecurrenceRule = existing.RecurrenceRule
		updated, err := s.update(ev)
		if err != nil {
			return nil, err
		}
		out.Events = []model.Event{s.local(*updated)}
		return out, nil
	}

	ruleChanged := newRule != existing.RecurrenceRule
	ev.RecurrenceRule = newRule
	ev.SeriesID = ""
	if !rule.IsNone() {
		ev.SeriesID = ev.ID
	}
	updated, err := s.update(ev)
	if err != nil {
		return nil, err
	}
	out.Events = []model.Event{s.local(*updated)}
	if !ruleChanged {
		return out, nil
	}

	removed, err := s.events.DeleteSeries(ev.ID, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("replace series: %w", err)
	}
	if !rule.IsNone() {
		res := s.expander().Expand(s.local(*updated), rule)
		out.Truncated = res.Truncated
		if s.metrics != nil {
			s.metrics.ObserveExpansion(res.Truncated)
		}
		rest := res.Occurrences[1:]
		if err := s.events.CreateMany(rest); err != nil {
			return nil, fmt.Errorf("replace series: %w", err)
		}
		out.Events = append(out.Events, rest...)
	}
	s.logger.Info("series replaced", "event_id", ev.ID, "removed", removed, "occurrences", len(out.Events))
	s.publish("series_replaced", ev.ID, map[string]any{"occurrences": len(out.Events)})
	return out, nil
}

func (s *Service) update(ev model.Event) (*model.Event, error) {
	updated, err := s.events.Update(ev)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	s.publish("updated", updated.ID, map[string]any{"version": updated.Version})
	return updated, nil
}

// DeleteEvent removes one occurrence or its whole series and returns how many
// events were removed.
func (s *Service) DeleteEvent(ctx context.Context, id string, scope Scope) (int64, error) {
	existing, err := s.events.GetByID(id)
	if err != nil {
		return 0, fmt.Errorf("get event: %w", err)
	}
	if existing == nil {
		return 0, ErrNotFound
	}

	if scope != ScopeSeries || existing.SeriesID == "" {
		if err := s.events.Delete(id); err != nil {
			return 0, err
		}
		s.publish("deleted", id, nil)
		return 1, nil
	}

	n, err := s.events.DeleteSeries(existing.SeriesID, "")
	if err != nil {
		return 0, err
	}
	s.logger.Info("series deleted", "series_id", existing.SeriesID, "removed", n)
	s.publish("series_deleted", existing.SeriesID, map[string]any{"removed": n})
	return n, nil
}

func (s *Service) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	ev, err := s.events.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return nil, ErrNotFound
	}
	local := s.local(*ev)
	return &local, nil
}

// ListEvents returns events intersecting [start, end) in the calendar's zone.
func (s *Service) ListEvents(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	events, err := s.events.ListByDateRange(start, end)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	for i := range events {
		events[i] = s.local(events[i])
	}
	return events, nil
}

// EventChanged persists a committed drag or resize.
func (s *Service) EventChanged(ctx context.Context, c interaction.Change) error {
	if !c.End.After(c.Start) {
		return ErrInvalidTimes
	}
	updated, err := s.events.UpdateTimes(c.EventID, c.Start, c.End)
	if err != nil {
		return err
	}
	if updated == nil {
		return ErrNotFound
	}
	s.publish("updated", c.EventID, map[string]any{
		"start":   c.Start.In(s.loc).Format(time.RFC3339),
		"end":     c.End.In(s.loc).Format(time.RFC3339),
		"version": updated.Version,
	})
	return nil
}

func (s *Service) expander() recurrence.Expander {
	return recurrence.Expander{MaxOccurrences: s.cfg.Engine().MaxOccurrences, NewID: s.newID}
}

// normalize trims text and moves times into the calendar's zone. All-day
// events are widened to whole days.
func (s *Service) normalize(ev model.Event) model.Event {
	ev.Title = strings.TrimSpace(ev.Title)
	ev.Description = strings.TrimSpace(ev.Description)
	ev = s.local(ev)
	if ev.AllDay || ev.AllWeek {
		start := timegrid.StartOfDay(ev.Start)
		end := timegrid.StartOfDay(ev.End)
		if end.Before(ev.End) {
			end = end.AddDate(0, 0, 1)
		}
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
		ev.Start, ev.End = start, end
	}
	return ev
}

func (s *Service) local(ev model.Event) model.Event {
	ev.Start = ev.Start.In(s.loc)
	ev.End = ev.End.In(s.loc)
	return ev
}
