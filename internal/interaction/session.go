package interaction

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dukerupert/daygrid/internal/model"
	"github.com/dukerupert/daygrid/internal/timegrid"
)

type Kind string

const (
	KindDrag   Kind = "drag"
	KindResize Kind = "resize"
)

// Edge is the resize handle being dragged.
type Edge string

const (
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
)

func ParseEdge(s string) (Edge, error) {
	switch Edge(s) {
	case EdgeTop, EdgeBottom:
		return Edge(s), nil
	}
	return "", fmt.Errorf("invalid resize edge %q", s)
}

// Outcome describes how a session ended.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeDiscarded Outcome = "discarded"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeAborted   Outcome = "aborted"
	OutcomeFailed    Outcome = "failed"
)

// Pointer is a position in grid pixels: X from the left edge of the first day
// column, Y from the top of the grid.
type Pointer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Pointer) finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Viewport describes the visible day columns a drag can move across.
type Viewport struct {
	FirstDay      time.Time `json:"first_day"`
	Days          int       `json:"days"`
	ColumnWidthPx float64   `json:"column_width_px"`
}

// column maps x to a day column; ok is false outside the columns.
func (v Viewport) column(x float64) (col int, ok bool) {
	if v.Days <= 0 || v.ColumnWidthPx <= 0 || x < 0 {
		return 0, false
	}
	col = int(x / v.ColumnWidthPx)
	if col >= v.Days {
		return 0, false
	}
	return col, true
}

func (v Viewport) day(col int) time.Time {
	return timegrid.StartOfDay(v.FirstDay).AddDate(0, 0, col)
}

// columnOf returns the column showing t's day, or -1.
func (v Viewport) columnOf(t time.Time) int {
	first := timegrid.StartOfDay(v.FirstDay)
	day := timegrid.StartOfDay(t.In(first.Location()))
	for col := 0; col < v.Days; col++ {
		if first.AddDate(0, 0, col).Equal(day) {
			return col
		}
	}
	return -1
}

// Change is the record emitted when a gesture commits.
type Change struct {
	EventID string    `json:"event_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Emitter receives committed changes, typically the persistence layer.
type Emitter interface {
	EventChanged(ctx context.Context, c Change) error
}

// Preview is the in-progress state of a session, ready to render.
type Preview struct {
	EventID string    `json:"event_id"`
	Kind    Kind      `json:"kind"`
	Edge    Edge      `json:"edge,omitempty"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Top     float64   `json:"top"`
	Height  float64   `json:"height"`
	Column  int       `json:"column"`
	// Changed is true when the candidate differs from the committed event.
	Changed bool `json:"changed"`
	// Rejected is true when the last update would have produced end <= start
	// and was ignored.
	Rejected bool `json:"rejected,omitempty"`
}

type session struct {
	kind     Kind
	edge     Edge
	original model.Event
	viewport Viewport

	grabOffset float64 // drag: pointer Y minus the event's top
	initialY   float64 // resize: pointer Y at begin

	start, end time.Time
	column     int
	candidate  bool // an update produced a candidate
	rejected   bool
}

func (s *session) changed() bool {
	return !s.start.Equal(s.original.Start) || !s.end.Equal(s.original.End)
}

func (s *session) preview(grid timegrid.Mapper, minHeight float64) Preview {
	top := grid.TimeToOffset(s.start)
	height := grid.DayOffset(s.end, s.start) - top
	if height < minHeight {
		height = minHeight
	}
	return Preview{
		EventID:  s.original.ID,
		Kind:     s.kind,
		Edge:     s.edge,
		Start:    s.start,
		End:      s.end,
		Top:      top,
		Height:   height,
		Column:   s.column,
		Changed:  s.changed(),
		Rejected: s.rejected,
	}
}
