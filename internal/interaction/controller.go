// Package interaction manages pointer gestures that reschedule (drag) or
// resize a single event, with live preview and whole-hour snapping.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dukerupert/daygrid/internal/config"
	"github.com/dukerupert/daygrid/internal/model"
)

var (
	ErrSessionActive  = errors.New("another drag or resize session is active")
	ErrNoSession      = errors.New("no active session")
	ErrWrongKind      = errors.New("active session is of a different kind")
	ErrDragDisabled   = errors.New("drag is disabled")
	ErrResizeDisabled = errors.New("resize is disabled")
	ErrInvalidEvent   = errors.New("event must end after it starts")
)

// Controller holds at most one drag or resize session. It is safe for
// concurrent use; calls are serialized.
type Controller struct {
	mu      sync.Mutex
	cfg     config.Source
	emitter Emitter
	logger  *slog.Logger
	s       *session

	// OnFinish, when set, is called after a session ends.
	OnFinish func(kind Kind, outcome Outcome)
}

func New(cfg config.Source, emitter Emitter, logger *slog.Logger) *Controller {
	return &Controller{
		cfg:     cfg,
		emitter: emitter,
		logger:  logger.With("component", "interaction"),
	}
}

// Active returns the preview of the current session, if any.
func (c *Controller) Active() (Preview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s == nil {
		return Preview{}, false
	}
	e := c.cfg.Engine()
	return c.s.preview(e.Grid(), e.MinEventHeightPx), true
}

// BeginDrag starts moving ev. p is where the pointer went down.
func (c *Controller) BeginDrag(ev model.Event, p Pointer, vp Viewport) (Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.cfg.Engine()
	if !e.DragEnabled {
		return Preview{}, ErrDragDisabled
	}
	if err := c.checkBegin(ev); err != nil {
		return Preview{}, err
	}
	grid := e.Grid()

	c.s = &session{
		kind:       KindDrag,
		original:   ev,
		viewport:   vp,
		grabOffset: p.Y - grid.TimeToOffset(ev.Start),
		start:      ev.Start,
		end:        ev.End,
		column:     vp.columnOf(ev.Start),
	}
	c.logger.Debug("drag started", "event_id", ev.ID, "start", ev.Start)
	return c.s.preview(grid, e.MinEventHeightPx), nil
}

// UpdateDrag recomputes the candidate from the pointer. Pointers left or
// right of the day columns keep the previous candidate; pointers above or
// below the grid clamp to the first or last row.
func (c *Controller) UpdateDrag(p Pointer) (Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.current(KindDrag)
	if err != nil {
		return Preview{}, err
	}
	e := c.cfg.Engine()
	if !e.DragEnabled {
		c.abort()
		return Preview{}, ErrDragDisabled
	}
	grid := e.Grid()

	col, ok := s.viewport.column(p.X)
	if !ok || !p.finite() {
		return s.preview(grid, e.MinEventHeightPx), nil
	}

	day := s.viewport.day(col)
	start := grid.SnapToRow(grid.OffsetToTime(p.Y-s.grabOffset, day))
	s.start = start
	s.end = start.Add(s.original.Duration())
	s.column = col
	s.candidate = true
	return s.preview(grid, e.MinEventHeightPx), nil
}

// EndDrag commits the candidate. It reports false and emits nothing when no
// candidate was computed or the event would not move.
func (c *Controller) EndDrag(ctx context.Context) (Change, bool, error) {
	return c.end(ctx, KindDrag)
}

// BeginResize starts resizing ev from the given edge.
func (c *Controller) BeginResize(ev model.Event, edge Edge, p Pointer) (Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.cfg.Engine()
	if !e.ResizeEnabled {
		return Preview{}, ErrResizeDisabled
	}
	if _, err := ParseEdge(string(edge)); err != nil {
		return Preview{}, err
	}
	if err := c.checkBegin(ev); err != nil {
		return Preview{}, err
	}

	c.s = &session{
		kind:     KindResize,
		edge:     edge,
		original: ev,
		initialY: p.Y,
		start:    ev.Start,
		end:      ev.End,
	}
	c.logger.Debug("resize started", "event_id", ev.ID, "edge", edge)
	return c.s.preview(e.Grid(), e.MinEventHeightPx), nil
}

// UpdateResize moves the active edge by the whole number of rows the pointer
// has travelled since BeginResize. A candidate that would leave end <= start
// is rejected and the previous candidate kept.
func (c *Controller) UpdateResize(p Pointer) (Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.current(KindResize)
	if err != nil {
		return Preview{}, err
	}
	e := c.cfg.Engine()
	if !e.ResizeEnabled {
		c.abort()
		return Preview{}, ErrResizeDisabled
	}
	grid := e.Grid()

	rows := math.Round((p.Y - s.initialY) / grid.RowHeightPx)
	if math.IsNaN(rows) || math.IsInf(rows, 0) {
		return s.preview(grid, e.MinEventHeightPx), nil
	}
	delta := time.Duration(rows) * time.Hour

	s.candidate = true
	s.rejected = false
	switch s.edge {
	case EdgeTop:
		candidate := s.original.Start.Add(delta)
		if candidate.Before(s.end) {
			s.start = candidate
		} else {
			s.rejected = true
		}
	case EdgeBottom:
		candidate := s.original.End.Add(delta)
		if candidate.After(s.start) {
			s.end = candidate
		} else {
			s.rejected = true
		}
	}
	return s.preview(grid, e.MinEventHeightPx), nil
}

// EndResize commits the last valid candidate. It reports false and emits
// nothing when the event's times did not change.
func (c *Controller) EndResize(ctx context.Context) (Change, bool, error) {
	return c.end(ctx, KindResize)
}

// Cancel ends any session without committing and returns the event exactly
// as it was when the session began.
func (c *Controller) Cancel() (model.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s == nil {
		return model.Event{}, false
	}
	s := c.s
	c.finish(OutcomeCancelled)
	c.logger.Debug("session cancelled", "event_id", s.original.ID, "kind", s.kind)
	return s.original, true
}

func (c *Controller) end(ctx context.Context, kind Kind) (Change, bool, error) {
	c.mu.Lock()
	s, err := c.current(kind)
	if err != nil {
		c.mu.Unlock()
		return Change{}, false, err
	}
	if !s.candidate || !s.changed() {
		c.finish(OutcomeDiscarded)
		c.mu.Unlock()
		return Change{}, false, nil
	}
	change := Change{EventID: s.original.ID, Start: s.start, End: s.end}
	c.s = nil
	c.mu.Unlock()

	if err := c.emitter.EventChanged(ctx, change); err != nil {
		c.notify(kind, OutcomeFailed)
		return Change{}, false, fmt.Errorf("emit event change: %w", err)
	}
	c.notify(kind, OutcomeCommitted)
	c.logger.Info("event rescheduled", "event_id", change.EventID, "kind", kind,
		"start", change.Start, "end", change.End)
	return change, true, nil
}

func (c *Controller) checkBegin(ev model.Event) error {
	if c.s != nil {
		return ErrSessionActive
	}
	if !ev.Valid() {
		return ErrInvalidEvent
	}
	return nil
}

func (c *Controller) current(kind Kind) (*session, error) {
	if c.s == nil {
		return nil, ErrNoSession
	}
	if c.s.kind != kind {
		return nil, ErrWrongKind
	}
	return c.s, nil
}

// abort drops the session after its gesture was disabled mid-flight.
func (c *Controller) abort() {
	c.logger.Info("session aborted, gesture disabled", "event_id", c.s.original.ID, "kind", c.s.kind)
	c.finish(OutcomeAborted)
}

// finish clears the session; c.mu must be held.
func (c *Controller) finish(outcome Outcome) {
	kind := c.s.kind
	c.s = nil
	c.notify(kind, outcome)
}

func (c *Controller) notify(kind Kind, outcome Outcome) {
	if c.OnFinish != nil {
		c.OnFinish(kind, outcome)
	}
}
