package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/daygrid/internal/calendar"
	"github.com/dukerupert/daygrid/internal/ics"
	"github.com/dukerupert/daygrid/internal/model"
	"github.com/dukerupert/daygrid/internal/recurrence"
	"github.com/dukerupert/daygrid/internal/store"
)

const maxICSBytes = 10 << 20

type EventHandler struct {
	svc    *calendar.Service
	logger *slog.Logger
	now    func() time.Time
}

func NewEventHandler(svc *calendar.Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger, now: time.Now}
}

type eventRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Color          string `json:"color"`
	AllDay         bool   `json:"all_day"`
	AllWeek        bool   `json:"all_week"`
	RecurrenceRule string `json:"recurrence_rule"`
	Version        int64  `json:"version"`
}

type eventResponse struct {
	model.Event
	Recurrence string `json:"recurrence,omitempty"`
}

func describe(ev model.Event) eventResponse {
	out := eventResponse{Event: ev}
	if r, err := recurrence.Parse(ev.RecurrenceRule); err == nil && !r.IsNone() {
		out.Recurrence = r.Describe()
	}
	return out
}

func (h *EventHandler) parseAndValidate(w http.ResponseWriter, r *http.Request) (*eventRequest, model.Event, bool) {
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return nil, model.Event{}, false
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return nil, model.Event{}, false
	}

	loc := h.svc.Location()
	start, err := parseFlexibleTime(req.Start, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
		return nil, model.Event{}, false
	}
	end, err := parseFlexibleTime(req.End, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
		return nil, model.Event{}, false
	}
	if !req.AllDay && !req.AllWeek && !start.Before(end) {
		writeError(w, http.StatusBadRequest, "start must be before end")
		return nil, model.Event{}, false
	}
	if req.Color != "" && !hexColorRegexp.MatchString(req.Color) {
		writeError(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return nil, model.Event{}, false
	}

	return &req, model.Event{
		Title:       req.Title,
		Description: req.Description,
		Start:       start,
		End:         end,
		Color:       req.Color,
		AllDay:      req.AllDay,
		AllWeek:     req.AllWeek,
		Version:     req.Version,
	}, true
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ev, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	created, err := h.svc.CreateEvent(r.Context(), ev, req.RecurrenceRule)
	if err != nil {
		h.writeServiceError(w, err, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}

	loc := h.svc.Location()
	start, err := parseFlexibleTime(startStr, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
		return
	}
	end, err := parseFlexibleTime(endStr, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
		return
	}

	events, err := h.svc.ListEvents(r.Context(), start, end)
	if err != nil {
		h.logger.Error("list events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, describe(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	ev, err := h.svc.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to get event")
		return
	}
	writeJSON(w, http.StatusOK, describe(*ev))
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ev, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}
	ev.ID = r.PathValue("id")

	updated, err := h.svc.UpdateEvent(r.Context(), ev, req.RecurrenceRule)
	if err != nil {
		h.writeServiceError(w, err, "failed to update event")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	scope, err := calendar.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.svc.DeleteEvent(r.Context(), r.PathValue("id"), scope); err != nil {
		h.writeServiceError(w, err, "failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LayoutDay serves GET /api/layout/day?date=YYYY-MM-DD (default today).
func (h *EventHandler) LayoutDay(w http.ResponseWriter, r *http.Request) {
	now := h.now().In(h.svc.Location())
	day, ok := h.dateParam(w, r, "date", now)
	if !ok {
		return
	}
	view, err := h.svc.LayoutDay(r.Context(), day, now)
	if err != nil {
		h.writeServiceError(w, err, "failed to lay out day")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// LayoutWeek serves GET /api/layout/week?start=YYYY-MM-DD&days=7.
func (h *EventHandler) LayoutWeek(w http.ResponseWriter, r *http.Request) {
	now := h.now().In(h.svc.Location())
	start, ok := h.dateParam(w, r, "start", now)
	if !ok {
		return
	}
	days := 7
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > calendar.MaxWeekDays {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("days must be between 1 and %d", calendar.MaxWeekDays))
			return
		}
		days = n
	}
	view, err := h.svc.LayoutWeek(r.Context(), start, days, now)
	if err != nil {
		h.writeServiceError(w, err, "failed to lay out week")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *EventHandler) dateParam(w http.ResponseWriter, r *http.Request, name string, def time.Time) (time.Time, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	t, err := parseFlexibleTime(s, h.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be RFC3339 or YYYY-MM-DD format")
		return time.Time{}, false
	}
	return t, true
}

// ExportICS serves the events in [start, end) as text/calendar. The range
// defaults to 30 days back and 365 days ahead.
func (h *EventHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	now := h.now().In(h.svc.Location())
	start, ok := h.dateParam(w, r, "start", now.AddDate(0, 0, -30))
	if !ok {
		return
	}
	end, ok := h.dateParam(w, r, "end", now.AddDate(1, 0, 0))
	if !ok {
		return
	}

	events, err := h.svc.ListEvents(r.Context(), start, end)
	if err != nil {
		h.logger.Error("export ics", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="daygrid.ics"`)
	w.Write([]byte(ics.Export(events, now)))
}

type importResponse struct {
	Imported  int      `json:"imported"`
	Created   int      `json:"created"`
	Truncated []string `json:"truncated,omitempty"`
	Skipped   []string `json:"skipped,omitempty"`
	Ignored   []string `json:"ignored,omitempty"`
}

// ImportICS creates events from an uploaded iCalendar body.
func (h *EventHandler) ImportICS(w http.ResponseWriter, r *http.Request) {
	res, err := ics.Import(http.MaxBytesReader(w, r.Body, maxICSBytes), h.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid iCalendar data")
		return
	}

	out := importResponse{Skipped: res.Skipped}
	for _, imp := range res.Events {
		created, err := h.svc.CreateEvent(r.Context(), imp.Event, imp.Rule)
		if err != nil {
			out.Skipped = append(out.Skipped, fmt.Sprintf("%s: %v", imp.Event.Title, err))
			continue
		}
		out.Imported++
		out.Created += len(created.Events)
		if created.Truncated {
			out.Truncated = append(out.Truncated, imp.Event.Title)
		}
		for _, part := range imp.Ignored {
			out.Ignored = append(out.Ignored, imp.Event.Title+": "+part)
		}
	}
	h.logger.Info("calendar imported", "events", out.Imported, "occurrences", out.Created, "skipped", len(out.Skipped))
	writeJSON(w, http.StatusOK, out)
}

func (h *EventHandler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, calendar.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, calendar.ErrInvalidTimes):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, calendar.ErrOccurrence):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrVersionConflict):
		writeError(w, http.StatusConflict, "event was changed by someone else")
	default:
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, msg)
	}
}
