// Package duedate turns user-entered due dates ("2024-03-01", "tomorrow",
// "next friday at 5pm") into timestamps.
package duedate

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var exactLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

type Parser struct {
	w   *when.Parser
	loc *time.Location
}

// New returns a Parser that interprets dates without an explicit offset in loc.
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w, loc: loc}
}

// Resolve parses input relative to now. ok is false for blank input or text
// that names no date; callers keep such text verbatim.
func (p *Parser) Resolve(input string, now time.Time) (due time.Time, ok bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, false
	}
	for _, layout := range exactLayouts {
		if t, err := time.ParseInLocation(layout, input, p.loc); err == nil {
			return t, true
		}
	}

	r, err := p.w.Parse(input, now.In(p.loc))
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time, true
}
