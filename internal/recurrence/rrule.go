package recurrence

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Freq int

const (
	None Freq = iota
	Daily
	Weekly
	Monthly
	Yearly
)

var freqNames = map[Freq]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

var freqFromName = map[string]Freq{
	"DAILY":   Daily,
	"WEEKLY":  Weekly,
	"MONTHLY": Monthly,
	"YEARLY":  Yearly,
}

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

const untilLayout = "20060102T150405Z"

// Rule is an immutable recurrence description. The zero value means "does not repeat".
type Rule struct {
	Freq       Freq
	Interval   int            // every N units; values < 1 are treated as 1
	ByDay      []time.Weekday // WEEKLY only: selected weekdays (empty = base weekday)
	ByMonthDay int            // MONTHLY only: fixed day of month (0 = base day)
	Count      int            // total occurrences including the base (0 = unset)
	Until      *time.Time     // first start at or after this instant is not emitted
}

// IsNone reports whether the rule produces only the base event.
func (r Rule) IsNone() bool {
	return r.Freq == None
}

// Parse parses an RRULE string like "FREQ=WEEKLY;BYDAY=MO,WE;INTERVAL=2".
// An empty string is the None rule.
func Parse(rule string) (Rule, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return Rule{}, nil
	}
	rule = strings.TrimPrefix(rule, "RRULE:")

	r := Rule{Interval: 1}
	var hasFreq bool

	parts := strings.Split(rule, ";")
	for _, part := range parts {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Rule{}, fmt.Errorf("invalid rule part: %q", part)
		}
		key, val := strings.ToUpper(kv[0]), kv[1]

		switch key {
		case "FREQ":
			f, ok := freqFromName[strings.ToUpper(val)]
			if !ok {
				return Rule{}, fmt.Errorf("unknown frequency: %q", val)
			}
			r.Freq = f
			hasFreq = true

		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("invalid interval: %q", val)
			}
			r.Interval = n

		case "BYDAY":
			days := strings.Split(val, ",")
			for _, d := range days {
				wd, ok := dayNames[strings.ToUpper(strings.TrimSpace(d))]
				if !ok {
					return Rule{}, fmt.Errorf("unknown day: %q", d)
				}
				r.ByDay = append(r.ByDay, wd)
			}

		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 31 {
				return Rule{}, fmt.Errorf("invalid BYMONTHDAY: %q", val)
			}
			r.ByMonthDay = n

		case "COUNT":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("invalid count: %q", val)
			}
			r.Count = n

		case "UNTIL":
			t, err := time.Parse(untilLayout, val)
			if err != nil {
				t, err = time.Parse("20060102", val)
				if err != nil {
					return Rule{}, fmt.Errorf("invalid UNTIL: %q", val)
				}
			}
			r.Until = &t

		default:
			return Rule{}, fmt.Errorf("unsupported rule key: %q", key)
		}
	}

	if !hasFreq {
		return Rule{}, fmt.Errorf("FREQ is required")
	}

	return r, nil
}

// Normalize returns a copy of r with malformed fields repaired rather than rejected:
// the interval is at least 1, a count wins over an end date, ByDay is
// de-duplicated in Monday-first order and fields that do not apply to the
// frequency are dropped.
func (r Rule) Normalize() Rule {
	if r.Freq < None || r.Freq > Yearly {
		r.Freq = None
	}
	if r.Freq == None {
		return Rule{}
	}
	if r.Interval < 1 {
		r.Interval = 1
	}
	if r.Count < 0 {
		r.Count = 0
	}
	if r.Count > 0 {
		r.Until = nil
	}
	if r.Until != nil {
		u := *r.Until
		r.Until = &u
	}

	if r.Freq == Weekly && len(r.ByDay) > 0 {
		seen := make(map[time.Weekday]bool, 7)
		days := make([]time.Weekday, 0, len(r.ByDay))
		for _, d := range r.ByDay {
			if d < time.Sunday || d > time.Saturday || seen[d] {
				continue
			}
			seen[d] = true
			days = append(days, d)
		}
		slices.SortFunc(days, func(a, b time.Weekday) int {
			return mondayIndex(a) - mondayIndex(b)
		})
		r.ByDay = days
	} else {
		r.ByDay = nil
	}

	if r.Freq != Monthly || r.ByMonthDay < 1 || r.ByMonthDay > 31 {
		r.ByMonthDay = 0
	}
	return r
}

// String serializes the rule back to an RRULE string. None serializes to "".
func (r Rule) String() string {
	if r.Freq == None {
		return ""
	}

	var parts []string
	parts = append(parts, "FREQ="+freqNames[r.Freq])

	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}

	if len(r.ByDay) > 0 {
		var days []string
		for _, d := range r.ByDay {
			days = append(days, dayAbbrev[d])
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}

	if r.ByMonthDay > 0 {
		parts = append(parts, fmt.Sprintf("BYMONTHDAY=%d", r.ByMonthDay))
	}

	if r.Count > 0 {
		parts = append(parts, fmt.Sprintf("COUNT=%d", r.Count))
	}

	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.UTC().Format(untilLayout))
	}

	return strings.Join(parts, ";")
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	var base string
	switch r.Freq {
	case None:
		return "Does not repeat"
	case Daily:
		base = "Repeats daily"
		if r.Interval > 1 {
			base = fmt.Sprintf("Repeats every %d days", r.Interval)
		}
	case Weekly:
		base = "Repeats weekly"
		if r.Interval > 1 {
			base = fmt.Sprintf("Repeats every %d weeks", r.Interval)
		}
		if len(r.ByDay) > 0 {
			var names []string
			for _, d := range r.ByDay {
				names = append(names, d.String()[:3])
			}
			base += " on " + strings.Join(names, ", ")
		}
	case Monthly:
		base = "Repeats monthly"
		if r.Interval > 1 {
			base = fmt.Sprintf("Repeats every %d months", r.Interval)
		}
		if r.ByMonthDay > 0 {
			base += fmt.Sprintf(" on day %d", r.ByMonthDay)
		}
	case Yearly:
		base = "Repeats yearly"
		if r.Interval > 1 {
			base = fmt.Sprintf("Repeats every %d years", r.Interval)
		}
	default:
		return ""
	}

	switch {
	case r.Count > 0:
		base += fmt.Sprintf(", %d times", r.Count)
	case r.Until != nil:
		base += ", until " + r.Until.Format("Jan 2, 2006")
	}
	return base
}

func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
