package layout

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/dukerupert/daygrid/internal/model"
	"github.com/dukerupert/daygrid/internal/timegrid"
)

var day = time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func ev(id string, start, end time.Time) model.Event {
	return model.Event{ID: id, Title: id, Start: start, End: end}
}

func opts() Options {
	return Options{Grid: timegrid.Mapper{RowHeightPx: 48, StartHour: 0, EndHour: 24}, MinHeightPx: DefaultMinHeightPx}
}

func byID(pes []PositionedEvent) map[string]PositionedEvent {
	m := make(map[string]PositionedEvent, len(pes))
	for _, pe := range pes {
		m[pe.ID] = pe
	}
	return m
}

func TestDayTwoOverlappingAndOneApart(t *testing.T) {
	events := []model.Event{
		ev("A", at(9, 0), at(10, 30)),
		ev("B", at(10, 0), at(11, 0)),
		ev("C", at(12, 0), at(12, 30)),
	}
	got := byID(Day(events, day, opts()))

	if a := got["A"]; a.Column != 0 || a.Columns != 2 || a.Width != 0.5 || a.Left != 0 {
		t.Errorf("A = col %d/%d left %v width %v, want 0/2 0 0.5", a.Column, a.Columns, a.Left, a.Width)
	}
	if b := got["B"]; b.Column != 1 || b.Columns != 2 || b.Width != 0.5 || b.Left != 0.5 {
		t.Errorf("B = col %d/%d left %v width %v, want 1/2 0.5 0.5", b.Column, b.Columns, b.Left, b.Width)
	}
	if c := got["C"]; c.Column != 0 || c.Columns != 1 || c.Width != 1 {
		t.Errorf("C = col %d/%d width %v, want 0/1 full width", c.Column, c.Columns, c.Width)
	}

	a := got["A"]
	if a.Top != 432 || a.Height != 72 {
		t.Errorf("A geometry = top %v height %v, want 432 72", a.Top, a.Height)
	}
}

func TestDayTransitiveGroup(t *testing.T) {
	// A and C never overlap but share a group through B.
	events := []model.Event{
		ev("A", at(9, 0), at(10, 0)),
		ev("B", at(9, 30), at(10, 30)),
		ev("C", at(10, 15), at(11, 0)),
	}
	got := byID(Day(events, day, opts()))

	for _, id := range []string{"A", "B", "C"} {
		if got[id].Columns != 2 {
			t.Errorf("%s.Columns = %d, want 2", id, got[id].Columns)
		}
	}
	if got["A"].Column != 0 || got["B"].Column != 1 || got["C"].Column != 0 {
		t.Errorf("columns = A:%d B:%d C:%d, want 0 1 0", got["A"].Column, got["B"].Column, got["C"].Column)
	}
}

func TestDaySameStartLongerFirst(t *testing.T) {
	events := []model.Event{
		ev("short", at(9, 0), at(9, 30)),
		ev("long", at(9, 0), at(12, 0)),
		ev("mid", at(10, 0), at(11, 0)),
	}
	out := Day(events, day, opts())
	if out[0].ID != "long" || out[0].Column != 0 {
		t.Errorf("first = %s col %d, want long col 0", out[0].ID, out[0].Column)
	}
	got := byID(out)
	if got["short"].Column != 1 || got["mid"].Column != 1 {
		t.Errorf("short col %d mid col %d, want 1 and 1", got["short"].Column, got["mid"].Column)
	}
}

func TestDayTouchingEventsDoNotGroup(t *testing.T) {
	events := []model.Event{
		ev("A", at(9, 0), at(10, 0)),
		ev("B", at(10, 0), at(11, 0)),
	}
	for _, pe := range Day(events, day, opts()) {
		if pe.Columns != 1 || pe.Width != 1 {
			t.Errorf("%s = %d columns width %v, want full width", pe.ID, pe.Columns, pe.Width)
		}
	}
}

func TestDayMidnightBoundaries(t *testing.T) {
	events := []model.Event{
		ev("overnight", at(-2, 0), at(2, 0)),
		ev("ends-at-midnight", at(-1, 0), at(0, 0)),
		ev("late", at(23, 0), at(24, 0)),
		ev("tomorrow", at(24, 0), at(25, 0)),
	}
	got := byID(Day(events, day, opts()))

	if _, ok := got["ends-at-midnight"]; ok {
		t.Error("event ending at midnight should not appear on the next day")
	}
	if _, ok := got["tomorrow"]; ok {
		t.Error("event starting at the next midnight should not appear")
	}
	if o := got["overnight"]; o.Top != 0 || o.Height != 96 {
		t.Errorf("overnight = top %v height %v, want 0 96", o.Top, o.Height)
	}
	if l := got["late"]; l.Top != 1104 || l.Height != 48 {
		t.Errorf("late = top %v height %v, want 1104 48", l.Top, l.Height)
	}
}

func TestDayMinimumHeight(t *testing.T) {
	events := []model.Event{
		ev("blip", at(10, 0), at(10, 5)),
		ev("next", at(10, 10), at(10, 15)),
	}
	got := byID(Day(events, day, opts()))

	if h := got["blip"].Height; h != DefaultMinHeightPx {
		t.Errorf("blip height = %v, want %v", h, DefaultMinHeightPx)
	}
	// 20px at 48px/h is 25 minutes, so the boxes would collide in one column.
	if got["blip"].Columns != 2 || got["next"].Column != 1 {
		t.Errorf("short events should be placed side by side: %+v %+v", got["blip"], got["next"])
	}
}

func TestDaySkipsAllDayAndInvalid(t *testing.T) {
	allDay := ev("holiday", day, day.AddDate(0, 0, 1))
	allDay.AllDay = true
	week := ev("sprint", day.AddDate(0, 0, -2), day.AddDate(0, 0, 5))
	week.AllWeek = true
	events := []model.Event{
		allDay,
		week,
		ev("empty", at(9, 0), at(9, 0)),
		ev("meeting", at(9, 0), at(10, 0)),
	}

	out := Day(events, day, opts())
	if len(out) != 1 || out[0].ID != "meeting" {
		t.Fatalf("Day = %v, want only meeting", out)
	}

	strip := AllDay(events, day)
	if len(strip) != 2 || strip[0].ID != "sprint" || strip[1].ID != "holiday" {
		t.Errorf("AllDay = %v, want sprint, holiday", strip)
	}
	if len(AllDay(events, day.AddDate(0, 0, 1))) != 1 {
		t.Error("holiday ending at midnight should not be on the next day")
	}
}

func TestDayInvalidGridFallsBack(t *testing.T) {
	out := Day([]model.Event{ev("A", at(1, 0), at(2, 0))}, day, Options{})
	if len(out) != 1 || out[0].Top != timegrid.DefaultRowHeightPx {
		t.Errorf("Day with zero options = %+v, want default grid", out)
	}
}

func TestWeek(t *testing.T) {
	events := []model.Event{
		ev("mon", at(9, 0), at(10, 0)),
		ev("tue", at(24+9, 0), at(24+10, 0)),
	}
	week := Week(events, day, 3, opts())
	if len(week) != 3 {
		t.Fatalf("len = %d, want 3", len(week))
	}
	if len(week[0]) != 1 || len(week[1]) != 1 || len(week[2]) != 0 {
		t.Errorf("per day counts = %d %d %d, want 1 1 0", len(week[0]), len(week[1]), len(week[2]))
	}
}

func TestDayNoOverlapWithinColumn(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))

	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.IntN(25)
		events := make([]model.Event, n)
		for i := range events {
			start := at(-3+rng.IntN(28), rng.IntN(4)*15)
			dur := time.Duration(5+rng.IntN(240)) * time.Minute
			events[i] = ev(fmt.Sprintf("e%d", i), start, start.Add(dur))
		}

		out := Day(events, day, opts())
		for i, a := range out {
			if a.Column < 0 || a.Column >= a.Columns {
				t.Fatalf("iter %d: %s column %d of %d", iter, a.ID, a.Column, a.Columns)
			}
			if a.Left+a.Width > 1+1e-9 {
				t.Fatalf("iter %d: %s overflows the day column", iter, a.ID)
			}
			for _, b := range out[i+1:] {
				if a.Column == b.Column && a.Overlaps(b.Start, b.End) {
					t.Fatalf("iter %d: %s and %s overlap in column %d", iter, a.ID, b.ID, a.Column)
				}
				if a.Overlaps(b.Start, b.End) && a.Columns != b.Columns {
					t.Fatalf("iter %d: overlapping %s and %s report different column counts", iter, a.ID, b.ID)
				}
			}
		}
	}
}
