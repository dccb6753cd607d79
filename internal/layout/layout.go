// Package layout places a day's timed events into non-overlapping display
// columns and computes their grid geometry.
package layout

import (
	"cmp"
	"slices"
	"time"

	"github.com/dukerupert/daygrid/internal/model"
	"github.com/dukerupert/daygrid/internal/timegrid"
)

// DefaultMinHeightPx keeps very short events tappable.
const DefaultMinHeightPx = 20

type Options struct {
	Grid        timegrid.Mapper
	MinHeightPx float64
}

// PositionedEvent is the render geometry of one event on one day. Top and
// Height are pixels from the top of the grid; Left and Width are fractions of
// the day column's width.
type PositionedEvent struct {
	model.Event
	Top     float64 `json:"top"`
	Height  float64 `json:"height"`
	Column  int     `json:"column"`
	Columns int     `json:"columns"`
	Left    float64 `json:"left"`
	Width   float64 `json:"width"`
}

func (o Options) normalized() Options {
	if o.Grid.Valid() != nil {
		o.Grid = timegrid.Default()
	}
	if o.MinHeightPx < 0 {
		o.MinHeightPx = 0
	}
	return o
}

// Day lays out the timed events that intersect day's [00:00, 24:00) span.
// All-day, all-week and zero-length events are skipped. The result is ordered
// by start, longer events first on ties.
func Day(events []model.Event, day time.Time, opts Options) []PositionedEvent {
	opts = opts.normalized()
	dayStart := timegrid.StartOfDay(day)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var timed []model.Event
	for _, ev := range events {
		if ev.AllDay || ev.AllWeek || !ev.Valid() {
			continue
		}
		if ev.Overlaps(dayStart, dayEnd) {
			timed = append(timed, ev)
		}
	}
	if len(timed) == 0 {
		return nil
	}

	slices.SortStableFunc(timed, func(a, b model.Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Duration(), a.Duration()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	// Events shorter than the minimum height still occupy that much of the
	// grid, so grouping uses the rendered extent.
	minDur := time.Duration(opts.MinHeightPx / opts.Grid.RowHeightPx * float64(time.Hour))
	extentEnd := func(ev model.Event) time.Time {
		if floor := ev.Start.Add(minDur); floor.After(ev.End) {
			return floor
		}
		return ev.End
	}

	out := make([]PositionedEvent, 0, len(timed))
	var (
		groupStart int
		groupEnd   time.Time
		columnEnds []time.Time
	)
	closeGroup := func() {
		cols := len(columnEnds)
		for i := groupStart; i < len(out); i++ {
			out[i].Columns = cols
			out[i].Left = float64(out[i].Column) / float64(cols)
			out[i].Width = 1 / float64(cols)
		}
		groupStart = len(out)
		columnEnds = columnEnds[:0]
	}

	for _, ev := range timed {
		if len(out) > groupStart && !ev.Start.Before(groupEnd) {
			closeGroup()
		}

		end := extentEnd(ev)
		col := slices.IndexFunc(columnEnds, func(colEnd time.Time) bool {
			return !colEnd.After(ev.Start)
		})
		if col < 0 {
			col = len(columnEnds)
			columnEnds = append(columnEnds, end)
		} else {
			columnEnds[col] = end
		}
		if end.After(groupEnd) || len(out) == groupStart {
			groupEnd = end
		}

		out = append(out, position(ev, day, col, opts))
	}
	closeGroup()

	return out
}

func position(ev model.Event, day time.Time, col int, opts Options) PositionedEvent {
	top := opts.Grid.DayOffset(ev.Start, day)
	height := opts.Grid.DayOffset(ev.End, day) - top
	if height < opts.MinHeightPx {
		height = opts.MinHeightPx
	}
	return PositionedEvent{Event: ev, Top: top, Height: height, Column: col}
}

// AllDay returns the all-day and all-week events that intersect day, for the
// strip above the timed grid.
func AllDay(events []model.Event, day time.Time) []model.Event {
	dayStart := timegrid.StartOfDay(day)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var out []model.Event
	for _, ev := range events {
		if !ev.AllDay && !ev.AllWeek {
			continue
		}
		if ev.Overlaps(dayStart, dayEnd) || (ev.Start.Equal(dayStart) && !ev.Valid()) {
			out = append(out, ev)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	return out
}

// Week runs Day for each of the given number of days starting at firstDay.
func Week(events []model.Event, firstDay time.Time, days int, opts Options) [][]PositionedEvent {
	first := timegrid.StartOfDay(firstDay)
	out := make([][]PositionedEvent, days)
	for i := range days {
		out[i] = Day(events, first.AddDate(0, 0, i), opts)
	}
	return out
}
