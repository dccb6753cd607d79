package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// ParseLenient accepts any RRULE that rrule-go understands (including
// DTSTART-prefixed and lower-case forms produced by other calendar apps) and
// reduces it to the subset this package expands. Parts with no equivalent,
// such as BYSETPOS or BYHOUR, are dropped and reported in ignored.
func ParseLenient(s string) (r Rule, ignored []string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rule{}, nil, nil
	}
	if r, err := Parse(s); err == nil {
		return r, nil, nil
	}

	opt, err := rrule.StrToROption(s)
	if err != nil {
		return Rule{}, nil, fmt.Errorf("parse rrule: %w", err)
	}
	r, ignored = FromROption(*opt)
	return r, ignored, nil
}

// FromROption converts an rrule-go option set. Unsupported frequencies map to None.
func FromROption(opt rrule.ROption) (Rule, []string) {
	var ignored []string
	r := Rule{Interval: opt.Interval, Count: opt.Count}

	switch opt.Freq {
	case rrule.DAILY:
		r.Freq = Daily
	case rrule.WEEKLY:
		r.Freq = Weekly
	case rrule.MONTHLY:
		r.Freq = Monthly
	case rrule.YEARLY:
		r.Freq = Yearly
	default:
		return Rule{}, []string{fmt.Sprintf("FREQ=%v", opt.Freq)}
	}

	if !opt.Until.IsZero() {
		u := opt.Until
		r.Until = &u
	}

	for i := range opt.Byweekday {
		if opt.Byweekday[i].N() != 0 {
			ignored = append(ignored, "BYDAY")
			continue
		}
		r.ByDay = append(r.ByDay, time.Weekday((opt.Byweekday[i].Day()+1)%7))
	}
	if len(r.ByDay) > 0 && r.Freq != Weekly {
		ignored = append(ignored, "BYDAY")
	}

	switch {
	case len(opt.Bymonthday) == 1 && opt.Bymonthday[0] > 0:
		r.ByMonthDay = opt.Bymonthday[0]
	case len(opt.Bymonthday) > 0:
		ignored = append(ignored, "BYMONTHDAY")
	}

	if len(opt.Bysetpos) > 0 {
		ignored = append(ignored, "BYSETPOS")
	}
	if len(opt.Bymonth) > 0 {
		ignored = append(ignored, "BYMONTH")
	}
	if len(opt.Byhour) > 0 || len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 {
		ignored = append(ignored, "BYHOUR")
	}

	return r.Normalize(), ignored
}
