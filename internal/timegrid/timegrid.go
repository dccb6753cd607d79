package timegrid

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultRowHeightPx = 48
	DefaultStartHour   = 0
	DefaultEndHour     = 24
)

// Mapper converts between wall-clock time and vertical grid offsets.
// One row is one hour; the visible range is [StartHour, EndHour).
type Mapper struct {
	RowHeightPx float64
	StartHour   int
	EndHour     int
}

// Default returns a 24-hour grid with the default row height.
func Default() Mapper {
	return Mapper{RowHeightPx: DefaultRowHeightPx, StartHour: DefaultStartHour, EndHour: DefaultEndHour}
}

// Valid returns an error describing the first problem with the mapper's configuration.
func (m Mapper) Valid() error {
	if m.RowHeightPx <= 0 || math.IsNaN(m.RowHeightPx) || math.IsInf(m.RowHeightPx, 0) {
		return fmt.Errorf("row height must be positive, got %v", m.RowHeightPx)
	}
	if m.StartHour < 0 || m.EndHour > 24 || m.StartHour >= m.EndHour {
		return fmt.Errorf("invalid hour range [%d, %d)", m.StartHour, m.EndHour)
	}
	return nil
}

// Rows returns the number of visible hour rows.
func (m Mapper) Rows() int {
	return m.EndHour - m.StartHour
}

// TotalHeight is the pixel height of the whole visible grid.
func (m Mapper) TotalHeight() float64 {
	return float64(m.Rows()) * m.RowHeightPx
}

// TimeToOffset maps the clock time of t to a pixel offset from the top of the grid.
// Times outside the visible range clamp to the top or bottom edge.
func (m Mapper) TimeToOffset(t time.Time) float64 {
	return m.hoursToOffset(clockHours(t))
}

// DayOffset is like TimeToOffset but relative to a specific day: an instant
// before the day maps to the top and one at or after its end maps to the bottom.
func (m Mapper) DayOffset(t, day time.Time) float64 {
	start := StartOfDay(day)
	if t.Before(start) {
		return 0
	}
	if !t.Before(start.AddDate(0, 0, 1)) {
		return m.TotalHeight()
	}
	return m.TimeToOffset(t.In(day.Location()))
}

func (m Mapper) hoursToOffset(h float64) float64 {
	off := (h - float64(m.StartHour)) * m.RowHeightPx
	return clamp(off, 0, m.TotalHeight())
}

// OffsetToTime maps a pixel offset back to an instant on day. Offsets above
// the grid clamp to the first row and offsets below it clamp to the start of
// the last row.
func (m Mapper) OffsetToTime(px float64, day time.Time) time.Time {
	h := m.offsetToHours(px)
	return atHours(StartOfDay(day), h)
}

func (m Mapper) offsetToHours(px float64) float64 {
	if math.IsNaN(px) {
		px = 0
	}
	h := float64(m.StartHour) + px/m.RowHeightPx
	if h < float64(m.StartHour) {
		return float64(m.StartHour)
	}
	if h >= float64(m.EndHour) {
		return float64(m.EndHour - 1)
	}
	return h
}

// Row returns the row index (0-based from StartHour) containing px.
func (m Mapper) Row(px float64) int {
	return int(math.Floor(m.offsetToHours(px))) - m.StartHour
}

// SnapToRow rounds t to the nearest whole hour and clamps it to a visible row.
func (m Mapper) SnapToRow(t time.Time) time.Time {
	h := int(math.Round(clockHours(t)))
	if h < m.StartHour {
		h = m.StartHour
	}
	if h > m.EndHour-1 {
		h = m.EndHour - 1
	}
	return atHours(StartOfDay(t), float64(h))
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func clockHours(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600 +
		float64(t.Nanosecond())/3.6e12
}

// atHours builds the wall-clock instant h hours into the day starting at midnight.
// Using time.Date keeps the wall clock stable across DST transitions.
func atHours(midnight time.Time, h float64) time.Time {
	whole := int(h)
	minutes := int((h - float64(whole)) * 60)
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day(), whole, minutes, 0, 0, midnight.Location())
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
