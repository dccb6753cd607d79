package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/daygrid/internal/overdue"
	"github.com/dukerupert/daygrid/internal/recurrence"
	"github.com/dukerupert/daygrid/internal/timegrid"
)

// Engine keys, shared by the settings table and DAYGRID_* variables.
const (
	KeyRowHeightPx      = "row_height_px"
	KeyStartHour        = "start_hour"
	KeyEndHour          = "end_hour"
	KeyMinEventHeightPx = "min_event_height_px"
	KeySoftOffsetDays   = "soft_offset_days"
	KeyHardOffsetDays   = "hard_offset_days"
	KeyDragEnabled      = "drag_enabled"
	KeyResizeEnabled    = "resize_enabled"
	KeyMaxOccurrences   = "max_occurrences"
	KeyTickSchedule     = "tick_schedule"
)

var EngineKeys = []string{
	KeyRowHeightPx,
	KeyStartHour,
	KeyEndHour,
	KeyMinEventHeightPx,
	KeySoftOffsetDays,
	KeyHardOffsetDays,
	KeyDragEnabled,
	KeyResizeEnabled,
	KeyMaxOccurrences,
	KeyTickSchedule,
}

const (
	DefaultMinEventHeightPx = 20
	DefaultSoftOffsetDays   = 3
	DefaultHardOffsetDays   = 7
	DefaultTickSchedule     = "@every 1m"
	maxOccurrencesLimit     = 10000
)

// Engine is the set of values the scheduling engine reads on every operation.
type Engine struct {
	RowHeightPx      float64 `yaml:"row_height_px" json:"row_height_px"`
	StartHour        int     `yaml:"start_hour" json:"start_hour"`
	EndHour          int     `yaml:"end_hour" json:"end_hour"`
	MinEventHeightPx float64 `yaml:"min_event_height_px" json:"min_event_height_px"`
	SoftOffsetDays   int     `yaml:"soft_offset_days" json:"soft_offset_days"`
	HardOffsetDays   int     `yaml:"hard_offset_days" json:"hard_offset_days"`
	DragEnabled      bool    `yaml:"drag_enabled" json:"drag_enabled"`
	ResizeEnabled    bool    `yaml:"resize_enabled" json:"resize_enabled"`
	MaxOccurrences   int     `yaml:"max_occurrences" json:"max_occurrences"`
	TickSchedule     string  `yaml:"tick_schedule" json:"tick_schedule"`
}

func DefaultEngine() Engine {
	return Engine{
		RowHeightPx:      timegrid.DefaultRowHeightPx,
		StartHour:        timegrid.DefaultStartHour,
		EndHour:          timegrid.DefaultEndHour,
		MinEventHeightPx: DefaultMinEventHeightPx,
		SoftOffsetDays:   DefaultSoftOffsetDays,
		HardOffsetDays:   DefaultHardOffsetDays,
		DragEnabled:      true,
		ResizeEnabled:    true,
		MaxOccurrences:   recurrence.DefaultMaxOccurrences,
		TickSchedule:     DefaultTickSchedule,
	}
}

// Normalized returns a copy with out-of-range values replaced by defaults.
func (e Engine) Normalized() Engine {
	d := DefaultEngine()
	if e.Grid().Valid() != nil {
		e.RowHeightPx, e.StartHour, e.EndHour = d.RowHeightPx, d.StartHour, d.EndHour
	}
	if e.MinEventHeightPx < 0 {
		e.MinEventHeightPx = 0
	}
	e.SoftOffsetDays = max(e.SoftOffsetDays, 0)
	e.HardOffsetDays = max(e.HardOffsetDays, 0)
	if e.MaxOccurrences <= 0 || e.MaxOccurrences > maxOccurrencesLimit {
		e.MaxOccurrences = d.MaxOccurrences
	}
	if strings.TrimSpace(e.TickSchedule) == "" {
		e.TickSchedule = d.TickSchedule
	}
	return e
}

// Validate reports every problem with e. Used to reject settings updates.
func (e Engine) Validate() error {
	var errs []error
	if err := e.Grid().Valid(); err != nil {
		errs = append(errs, err)
	}
	if e.MinEventHeightPx < 0 {
		errs = append(errs, fmt.Errorf("min event height must not be negative"))
	}
	if e.SoftOffsetDays < 0 || e.HardOffsetDays < 0 {
		errs = append(errs, fmt.Errorf("deadline offsets must not be negative"))
	}
	if e.MaxOccurrences < 1 || e.MaxOccurrences > maxOccurrencesLimit {
		errs = append(errs, fmt.Errorf("max occurrences must be in [1, %d]", maxOccurrencesLimit))
	}
	if _, err := cron.ParseStandard(e.TickSchedule); err != nil {
		errs = append(errs, fmt.Errorf("tick schedule %q: %w", e.TickSchedule, err))
	}
	return errors.Join(errs...)
}

func (e Engine) Grid() timegrid.Mapper {
	return timegrid.Mapper{RowHeightPx: e.RowHeightPx, StartHour: e.StartHour, EndHour: e.EndHour}
}

func (e Engine) Offsets() overdue.Offsets {
	return overdue.Offsets{SoftDays: e.SoftOffsetDays, HardDays: e.HardOffsetDays}
}

// Apply returns a copy of e with the given key/value overrides applied.
// Unknown keys are ignored. Values that fail to parse are skipped and
// reported together in the returned error.
func (e Engine) Apply(values map[string]string) (Engine, error) {
	var errs []error
	setInt := func(key string, dst *int) {
		v, ok := values[key]
		if !ok {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
			return
		}
		*dst = n
	}
	setFloat := func(key string, dst *float64) {
		v, ok := values[key]
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid number %q", key, v))
			return
		}
		*dst = f
	}
	setBool := func(key string, dst *bool) {
		v, ok := values[key]
		if !ok {
			return
		}
		b, err := parseBool(key, v)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = b
	}

	setFloat(KeyRowHeightPx, &e.RowHeightPx)
	setInt(KeyStartHour, &e.StartHour)
	setInt(KeyEndHour, &e.EndHour)
	setFloat(KeyMinEventHeightPx, &e.MinEventHeightPx)
	setInt(KeySoftOffsetDays, &e.SoftOffsetDays)
	setInt(KeyHardOffsetDays, &e.HardOffsetDays)
	setBool(KeyDragEnabled, &e.DragEnabled)
	setBool(KeyResizeEnabled, &e.ResizeEnabled)
	setInt(KeyMaxOccurrences, &e.MaxOccurrences)
	if v, ok := values[KeyTickSchedule]; ok {
		e.TickSchedule = strings.TrimSpace(v)
	}

	return e, errors.Join(errs...)
}

// Values is the inverse of Apply.
func (e Engine) Values() map[string]string {
	return map[string]string{
		KeyRowHeightPx:      strconv.FormatFloat(e.RowHeightPx, 'f', -1, 64),
		KeyStartHour:        strconv.Itoa(e.StartHour),
		KeyEndHour:          strconv.Itoa(e.EndHour),
		KeyMinEventHeightPx: strconv.FormatFloat(e.MinEventHeightPx, 'f', -1, 64),
		KeySoftOffsetDays:   strconv.Itoa(e.SoftOffsetDays),
		KeyHardOffsetDays:   strconv.Itoa(e.HardOffsetDays),
		KeyDragEnabled:      strconv.FormatBool(e.DragEnabled),
		KeyResizeEnabled:    strconv.FormatBool(e.ResizeEnabled),
		KeyMaxOccurrences:   strconv.Itoa(e.MaxOccurrences),
		KeyTickSchedule:     e.TickSchedule,
	}
}
