// Package ics converts stored events to and from iCalendar.
package ics

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/daygrid/internal/model"
	"github.com/dukerupert/daygrid/internal/recurrence"
)

const productID = "-//daygrid//calendar//EN"

var (
	propColor     = ical.ComponentProperty("COLOR")
	propRelatedTo = ical.ComponentProperty("RELATED-TO")
	propRecurID   = ical.ComponentProperty("RECURRENCE-ID")
)

// Export renders events as a published calendar. Every stored occurrence is
// written as its own VEVENT; series members point at their first event with
// RELATED-TO instead of repeating the RRULE.
func Export(events []model.Event, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		stamp := ev.UpdatedAt
		if stamp.IsZero() {
			stamp = now
		}
		ve.SetDtStampTime(stamp.UTC())
		if ev.AllDay || ev.AllWeek {
			ve.SetAllDayStartAt(ev.Start)
			ve.SetAllDayEndAt(ev.End)
		} else {
			ve.SetStartAt(ev.Start.UTC())
			ve.SetEndAt(ev.End.UTC())
		}
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Color != "" {
			ve.SetProperty(propColor, ev.Color)
		}
		if ev.Version > 0 {
			ve.SetProperty(ical.ComponentPropertySequence, strconv.FormatInt(ev.Version-1, 10))
		}
		if ev.SeriesID != "" && ev.SeriesID != ev.ID {
			ve.SetProperty(propRelatedTo, ev.SeriesID)
		}
	}
	return cal.Serialize()
}

// Imported is one VEVENT ready to be created.
type Imported struct {
	Event model.Event
	// Rule is the normalized recurrence, empty when the event does not repeat.
	Rule string
	// Ignored lists recurrence parts that could not be kept.
	Ignored []string
}

// Result is the outcome of Import.
type Result struct {
	Events []Imported
	// Skipped describes VEVENTs that were not imported.
	Skipped []string
}

// Import parses an iCalendar stream. Dates without a zone are read in loc.
// Modified instances of a recurring event (RECURRENCE-ID) are skipped since
// their series is expanded from its own rule.
func Import(r io.Reader, loc *time.Location) (*Result, error) {
	if loc == nil {
		loc = time.UTC
	}
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	out := &Result{}
	for i, ve := range cal.Events() {
		imp, err := parseVEvent(ve, loc)
		if err != nil {
			out.Skipped = append(out.Skipped, fmt.Sprintf("event %d: %v", i+1, err))
			continue
		}
		out.Events = append(out.Events, imp)
	}
	return out, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (Imported, error) {
	var imp Imported
	if p := ve.GetProperty(propRecurID); p != nil {
		return imp, errors.New("modified instance of a recurring event")
	}

	ev := &imp.Event
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Title = unescape(p.Value)
	}
	if ev.Title == "" {
		ev.Title = "(no title)"
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = unescape(p.Value)
	}
	if p := ve.GetProperty(propColor); p != nil {
		ev.Color = p.Value
	}

	start, allDay, err := propTime(ve, ical.ComponentPropertyDtStart, loc)
	if err != nil {
		return imp, fmt.Errorf("DTSTART: %w", err)
	}
	end, _, err := propTime(ve, ical.ComponentPropertyDtEnd, loc)
	switch {
	case err == nil && end.After(start):
	case allDay:
		end = start.AddDate(0, 0, 1)
	default:
		end = start.Add(time.Hour)
	}
	ev.Start, ev.End, ev.AllDay = start, end, allDay

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rule, ignored, err := recurrence.ParseLenient(p.Value)
		if err != nil {
			imp.Ignored = append(imp.Ignored, "RRULE:"+p.Value)
		} else {
			imp.Rule = rule.String()
			imp.Ignored = append(imp.Ignored, ignored...)
		}
	}
	if len(ve.GetProperties(ical.ComponentPropertyExdate)) > 0 {
		imp.Ignored = append(imp.Ignored, "EXDATE")
	}
	return imp, nil
}

// propTime reads a DATE or DATE-TIME property. allDay reports a DATE value.
func propTime(ve *ical.VEvent, prop ical.ComponentProperty, loc *time.Location) (t time.Time, allDay bool, err error) {
	p := ve.GetProperty(prop)
	if p == nil {
		return time.Time{}, false, errors.New("missing")
	}
	val := strings.TrimSpace(p.Value)

	if vs, ok := p.ICalParameters["VALUE"]; (ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE")) || !strings.Contains(val, "T") {
		t, err := time.ParseInLocation("20060102", val, loc)
		return t, true, err
	}

	if tz, ok := p.ICalParameters["TZID"]; ok && len(tz) > 0 {
		if zone, err := time.LoadLocation(tz[0]); err == nil {
			t, err := time.ParseInLocation("20060102T150405", val, zone)
			return t.In(loc), false, err
		}
	}
	if strings.HasSuffix(val, "Z") {
		t, err := time.Parse("20060102T150405Z", val)
		return t.In(loc), false, err
	}
	t, err = time.ParseInLocation("20060102T150405", val, loc)
	return t, false, err
}

var unescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescape(s string) string {
	return unescaper.Replace(s)
}
