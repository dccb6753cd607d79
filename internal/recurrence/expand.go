package recurrence

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/daygrid/internal/model"
)

// DefaultMaxOccurrences caps expansion of rules that have no count and no end
// date, and of rules whose count exceeds it.
const DefaultMaxOccurrences = 999

const (
	maxMonthSearch = 48
	maxYearSearch  = 32
)

// Expander materializes recurring events. The zero value is ready to use.
type Expander struct {
	MaxOccurrences int           // <= 0 means DefaultMaxOccurrences
	NewID          func() string // nil means uuid.NewString
}

// Result is the outcome of one expansion.
type Result struct {
	Occurrences []model.Event
	// Truncated is set when the occurrence cap, not the rule, ended the expansion.
	Truncated bool
}

// Expand materializes base under rule using the default cap and UUID identities.
func Expand(base model.Event, rule Rule) []model.Event {
	return Expander{}.Expand(base, rule).Occurrences
}

// Expand returns the finite, ordered list of occurrences of base under rule.
// Occurrence 0 is base itself and keeps its ID. Every later occurrence gets a
// fresh ID, the base's duration and SeriesID = base.ID. Each start is derived
// from the previous occurrence's start, never from a shared mutable value.
func (x Expander) Expand(base model.Event, rule Rule) Result {
	rule = rule.Normalize()
	if rule.IsNone() {
		return Result{Occurrences: []model.Event{base}}
	}

	limit := x.MaxOccurrences
	if limit <= 0 {
		limit = DefaultMaxOccurrences
	}
	newID := x.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	want := limit
	if rule.Count > 0 && rule.Count < want {
		want = rule.Count
	}

	first := base
	first.SeriesID = base.ID
	first.RecurrenceRule = rule.String()
	duration := base.Duration()

	out := make([]model.Event, 0, min(want, 64))
	out = append(out, first)

	st := newStepper(rule, base.Start)
	current := base.Start
	for len(out) < want {
		next, ok := st.next(current)
		if !ok || st.pastUntil(next) {
			return Result{Occurrences: out}
		}
		occ := first
		occ.ID = newID()
		occ.Start = next
		occ.End = next.Add(duration)
		out = append(out, occ)
		current = next
	}

	if rule.Count > 0 && rule.Count <= limit {
		return Result{Occurrences: out}
	}
	next, ok := st.next(current)
	return Result{Occurrences: out, Truncated: ok && !st.pastUntil(next)}
}

// stepper computes the start following a given occurrence start.
type stepper struct {
	rule     Rule
	base     time.Time
	anchor   time.Time // civil Monday of the base's week, WEEKLY+BYDAY only
	selected [7]bool
}

func newStepper(rule Rule, base time.Time) *stepper {
	st := &stepper{rule: rule, base: base}
	if rule.Freq == Weekly && len(rule.ByDay) > 0 {
		st.anchor = weekStart(civil(base))
		for _, d := range rule.ByDay {
			st.selected[d] = true
		}
	}
	return st
}

func (st *stepper) pastUntil(t time.Time) bool {
	return st.rule.Until != nil && !t.Before(*st.rule.Until)
}

func (st *stepper) next(current time.Time) (time.Time, bool) {
	switch st.rule.Freq {
	case Daily:
		return current.AddDate(0, 0, st.rule.Interval), true
	case Weekly:
		if len(st.rule.ByDay) > 0 {
			return st.nextByDay(current)
		}
		return current.AddDate(0, 0, 7*st.rule.Interval), true
	case Monthly:
		return st.nextMonthly(current)
	case Yearly:
		return st.nextYearly(current)
	}
	return time.Time{}, false
}

// nextByDay walks forward one calendar day at a time from current and returns
// the first day whose weekday is selected and whose week is a whole multiple
// of Interval weeks away from the base's week.
func (st *stepper) nextByDay(current time.Time) (time.Time, bool) {
	span := 7*st.rule.Interval + 7
	for i := 1; i <= span; i++ {
		day := time.Date(current.Year(), current.Month(), current.Day()+i, 0, 0, 0, 0, time.UTC)
		if !st.selected[day.Weekday()] {
			continue
		}
		weeks := daysBetween(st.anchor, weekStart(day)) / 7
		if weeks%st.rule.Interval != 0 {
			continue
		}
		return st.at(day.Year(), day.Month(), day.Day()), true
	}
	return time.Time{}, false
}

// nextMonthly re-snaps to the configured day of month on every step and skips
// months that do not have that day.
func (st *stepper) nextMonthly(current time.Time) (time.Time, bool) {
	day := st.rule.ByMonthDay
	if day == 0 {
		day = st.base.Day()
	}
	for k := 1; k <= maxMonthSearch; k++ {
		y, m := addMonths(current.Year(), current.Month(), st.rule.Interval*k)
		if day <= daysInMonth(y, m) {
			return st.at(y, m, day), true
		}
	}
	return time.Time{}, false
}

// nextYearly keeps the base's month and day; a Feb 29 base only recurs in leap years.
func (st *stepper) nextYearly(current time.Time) (time.Time, bool) {
	month, day := st.base.Month(), st.base.Day()
	for k := 1; k <= maxYearSearch; k++ {
		y := current.Year() + st.rule.Interval*k
		if day <= daysInMonth(y, month) {
			return st.at(y, month, day), true
		}
	}
	return time.Time{}, false
}

// at builds a new instant on the given date with the base's clock time and location.
func (st *stepper) at(y int, m time.Month, d int) time.Time {
	b := st.base
	return time.Date(y, m, d, b.Hour(), b.Minute(), b.Second(), b.Nanosecond(), b.Location())
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekStart returns the Monday of the civil (UTC midnight) date d's week.
func weekStart(d time.Time) time.Time {
	return d.AddDate(0, 0, -mondayIndex(d.Weekday()))
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

func addMonths(y int, m time.Month, n int) (int, time.Month) {
	total := int(m) - 1 + n
	return y + total/12, time.Month(total%12 + 1)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
