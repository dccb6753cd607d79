package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/daygrid/internal/config"
	"github.com/dukerupert/daygrid/internal/layout"
	"github.com/dukerupert/daygrid/internal/model"
	"github.com/dukerupert/daygrid/internal/timegrid"
)

const MaxWeekDays = 31

// DayView is everything a view needs to draw one day column.
type DayView struct {
	Date        string                   `json:"date"`
	Timed       []layout.PositionedEvent `json:"timed"`
	AllDay      []model.Event            `json:"all_day"`
	TotalHeight float64                  `json:"total_height"`
	RowHeightPx float64                  `json:"row_height_px"`
	StartHour   int                      `json:"start_hour"`
	EndHour     int                      `json:"end_hour"`
	Now         *Marker                  `json:"now,omitempty"`
}

// WeekView is a run of consecutive days.
type WeekView struct {
	Start string    `json:"start"`
	Days  []DayView `json:"days"`
}

// Marker is the live-time line drawn across today's column.
type Marker struct {
	Time     time.Time `json:"time"`
	OffsetPx float64   `json:"offset_px"`
}

// NowMarker places now on the grid. ok is false when now's hour is outside
// the visible range.
func NowMarker(e config.Engine, now time.Time) (Marker, bool) {
	grid := e.Grid()
	h := now.Hour()
	if h < grid.StartHour || h >= grid.EndHour {
		return Marker{}, false
	}
	return Marker{Time: now, OffsetPx: grid.TimeToOffset(now)}, true
}

// LayoutDay loads the events intersecting day and positions them with the
// current engine settings.
func (s *Service) LayoutDay(ctx context.Context, day, now time.Time) (*DayView, error) {
	week, err := s.LayoutWeek(ctx, day, 1, now)
	if err != nil {
		return nil, err
	}
	return &week.Days[0], nil
}

// LayoutWeek lays out days consecutive days starting at first.
func (s *Service) LayoutWeek(ctx context.Context, first time.Time, days int, now time.Time) (*WeekView, error) {
	if days < 1 || days > MaxWeekDays {
		return nil, fmt.Errorf("days must be between 1 and %d", MaxWeekDays)
	}
	start := timegrid.StartOfDay(first.In(s.loc))
	end := start.AddDate(0, 0, days)

	events, err := s.ListEvents(ctx, start, end)
	if err != nil {
		return nil, err
	}

	e := s.cfg.Engine()
	opts := layout.Options{Grid: e.Grid(), MinHeightPx: e.MinEventHeightPx}
	today := timegrid.StartOfDay(now.In(s.loc))

	out := &WeekView{Start: start.Format(time.DateOnly), Days: make([]DayView, days)}

	for i := range days {
		day := start.AddDate(0, 0, i)
		began := time.Now()
		timed := layout.Day(events, day, opts)
		if s.metrics != nil {
			s.metrics.ObserveLayout(began)
		}
		if timed == nil {
			timed = []layout.PositionedEvent{}
		}
		allDay := layout.AllDay(events, day)
		if allDay == nil {
			allDay = []model.Event{}
		}

		v := DayView{
			Date:        day.Format(time.DateOnly),
			Timed:       timed,
			AllDay:      allDay,
			TotalHeight: opts.Grid.TotalHeight(),
			RowHeightPx: opts.Grid.RowHeightPx,
			StartHour:   opts.Grid.StartHour,
			EndHour:     opts.Grid.EndHour,
		}
		if day.Equal(today) {
			if m, ok := NowMarker(e, now.In(s.loc)); ok {
				v.Now = &m
			}
		}
		out.Days[i] = v
	}
	return out, nil
}
