package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/daygrid/internal/calendar"
	"github.com/dukerupert/daygrid/internal/interaction"
	"github.com/dukerupert/daygrid/internal/store"
)

// SessionHandler exposes the drag/resize controller. A client sends pointer
// positions while the gesture is in progress and commits or cancels at the
// end.
type SessionHandler struct {
	ctrl   *interaction.Controller
	svc    *calendar.Service
	logger *slog.Logger
}

func NewSessionHandler(ctrl *interaction.Controller, svc *calendar.Service, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{ctrl: ctrl, svc: svc, logger: logger}
}

type viewportRequest struct {
	FirstDay      string  `json:"first_day"`
	Days          int     `json:"days"`
	ColumnWidthPx float64 `json:"column_width_px"`
}

type beginRequest struct {
	EventID  string              `json:"event_id"`
	Pointer  interaction.Pointer `json:"pointer"`
	Edge     string              `json:"edge"`
	Viewport *viewportRequest    `json:"viewport"`
}

type pointerRequest struct {
	Pointer interaction.Pointer `json:"pointer"`
}

type commitResponse struct {
	Committed bool                `json:"committed"`
	Change    *interaction.Change `json:"change,omitempty"`
}

// BeginDrag serves POST /api/sessions/drag.
func (h *SessionHandler) BeginDrag(w http.ResponseWriter, r *http.Request) {
	var req beginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	vp, ok := h.viewport(w, req.Viewport)
	if !ok {
		return
	}
	ev, err := h.svc.GetEvent(r.Context(), req.EventID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	p, err := h.ctrl.BeginDrag(*ev, req.Pointer, vp)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// BeginResize serves POST /api/sessions/resize.
func (h *SessionHandler) BeginResize(w http.ResponseWriter, r *http.Request) {
	var req beginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	edge, err := interaction.ParseEdge(req.Edge)
	if err != nil {
		writeError(w, http.StatusBadRequest, "edge must be top or bottom")
		return
	}
	ev, err := h.svc.GetEvent(r.Context(), req.EventID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	p, err := h.ctrl.BeginResize(*ev, edge, req.Pointer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Current serves GET /api/sessions/current.
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	p, ok := h.ctrl.Active()
	if !ok {
		writeError(w, http.StatusNotFound, interaction.ErrNoSession.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Move serves PUT /api/sessions/current with the latest pointer position.
func (h *SessionHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req pointerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	active, ok := h.ctrl.Active()
	if !ok {
		writeError(w, http.StatusNotFound, interaction.ErrNoSession.Error())
		return
	}

	var (
		p   interaction.Preview
		err error
	)
	if active.Kind == interaction.KindResize {
		p, err = h.ctrl.UpdateResize(req.Pointer)
	} else {
		p, err = h.ctrl.UpdateDrag(req.Pointer)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Commit serves POST /api/sessions/current/commit. A session that never
// moved the event ends without a change.
func (h *SessionHandler) Commit(w http.ResponseWriter, r *http.Request) {
	active, ok := h.ctrl.Active()
	if !ok {
		writeError(w, http.StatusNotFound, interaction.ErrNoSession.Error())
		return
	}

	var (
		change    interaction.Change
		committed bool
		err       error
	)
	if active.Kind == interaction.KindResize {
		change, committed, err = h.ctrl.EndResize(r.Context())
	} else {
		change, committed, err = h.ctrl.EndDrag(r.Context())
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := commitResponse{Committed: committed}
	if committed {
		out.Change = &change
	}
	writeJSON(w, http.StatusOK, out)
}

// Cancel serves DELETE /api/sessions/current and returns the event as it was
// before the gesture.
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.ctrl.Cancel()
	if !ok {
		writeError(w, http.StatusNotFound, interaction.ErrNoSession.Error())
		return
	}
	writeJSON(w, http.StatusOK, describe(ev))
}

func (h *SessionHandler) viewport(w http.ResponseWriter, req *viewportRequest) (interaction.Viewport, bool) {
	if req == nil {
		writeError(w, http.StatusBadRequest, "viewport is required")
		return interaction.Viewport{}, false
	}
	first, err := parseFlexibleTime(req.FirstDay, h.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "viewport.first_day must be YYYY-MM-DD format")
		return interaction.Viewport{}, false
	}
	if req.Days < 1 || req.Days > calendar.MaxWeekDays || req.ColumnWidthPx <= 0 {
		writeError(w, http.StatusBadRequest, "viewport needs days in range and a positive column width")
		return interaction.Viewport{}, false
	}
	return interaction.Viewport{FirstDay: first, Days: req.Days, ColumnWidthPx: req.ColumnWidthPx}, true
}

func (h *SessionHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calendar.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, interaction.ErrSessionActive), errors.Is(err, interaction.ErrWrongKind):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, interaction.ErrNoSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, interaction.ErrDragDisabled), errors.Is(err, interaction.ErrResizeDisabled):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, interaction.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrVersionConflict):
		writeError(w, http.StatusConflict, "event was changed by someone else")
	default:
		h.logger.Error("session request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "session request failed")
	}
}
