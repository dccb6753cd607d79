package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/daygrid/internal/config"
	"github.com/dukerupert/daygrid/internal/duedate"
	"github.com/dukerupert/daygrid/internal/model"
	"github.com/dukerupert/daygrid/internal/overdue"
	"github.com/dukerupert/daygrid/internal/store"
	"github.com/dukerupert/daygrid/internal/websocket"
)

type TaskHandler struct {
	tasks  *store.TaskStore
	cfg    config.Source
	due    *duedate.Parser
	hub    *websocket.Hub
	logger *slog.Logger
	now    func() time.Time
}

func NewTaskHandler(tasks *store.TaskStore, cfg config.Source, due *duedate.Parser, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, cfg: cfg, due: due, hub: hub, logger: logger, now: time.Now}
}

func (h *TaskHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type taskRequest struct {
	Title     string `json:"title"`
	ProjectID string `json:"project_id"`
	// Due accepts RFC3339, YYYY-MM-DD or natural language ("next friday").
	// Text that names no date is kept and reported as unreadable.
	Due       *string `json:"due"`
	Completed *bool   `json:"completed"`
	Version   int64   `json:"version"`
}

// taskView is a task with its classification at request time. Completed
// tasks carry no classification.
type taskView struct {
	model.Task
	DueText string          `json:"due_text,omitempty"`
	Overdue *overdue.Result `json:"overdue,omitempty"`
	Label   string          `json:"label,omitempty"`
}

func (h *TaskHandler) view(t model.Task, now time.Time, offsets overdue.Offsets) taskView {
	v := taskView{Task: t}
	if t.DueDate == nil {
		v.DueText = t.DueRaw
	}
	if !t.Completed {
		res := overdue.Classify(t, now, offsets)
		v.Overdue = &res
		v.Label = overdue.Label(res)
	}
	return v
}

func (h *TaskHandler) applyDue(t *model.Task, raw string) {
	t.DueDate, t.DueRaw = nil, ""
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if due, ok := h.due.Resolve(raw, h.now()); ok {
		t.DueDate = &due
		return
	}
	t.DueRaw = raw
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	t := model.Task{Title: req.Title, ProjectID: strings.TrimSpace(req.ProjectID)}
	if req.Due != nil {
		h.applyDue(&t, *req.Due)
	}
	if req.Completed != nil {
		t.Completed = *req.Completed
	}

	created, err := h.tasks.Create(t)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}
	h.broadcast(websocket.NewMessage("task", "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, h.view(*created, h.now(), h.cfg.Engine().Offsets()))
}

// List serves GET /api/tasks. Completed tasks are included with ?all=1.
// ?status= filters open tasks by classification.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		tasks []model.Task
		err   error
	)
	if q.Get("all") == "1" || q.Get("all") == "true" {
		tasks, err = h.tasks.List()
	} else {
		tasks, err = h.tasks.ListOpen()
	}
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	status := overdue.Status(q.Get("status"))
	switch status {
	case "", overdue.StatusOnTime, overdue.StatusSoftOverdue, overdue.StatusHardOverdue:
	default:
		writeError(w, http.StatusBadRequest, "status must be on_time, soft_overdue or hard_overdue")
		return
	}

	now := h.now()
	offsets := h.cfg.Engine().Offsets()
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		v := h.view(t, now, offsets)
		if status != "" && (v.Overdue == nil || v.Overdue.Status != status) {
			continue
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.view(*t, h.now(), h.cfg.Engine().Offsets()))
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.load(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t := *existing
	if title := strings.TrimSpace(req.Title); title != "" {
		t.Title = title
	}
	t.ProjectID = strings.TrimSpace(req.ProjectID)
	if req.Due != nil {
		h.applyDue(&t, *req.Due)
	}
	if req.Completed != nil {
		t.Completed = *req.Completed
	}
	t.Version = req.Version

	updated, err := h.tasks.Update(t)
	if err != nil {
		h.writeStoreError(w, err, "failed to update task")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	h.broadcast(websocket.NewMessage("task", "updated", updated.ID, nil))
	writeJSON(w, http.StatusOK, h.view(*updated, h.now(), h.cfg.Engine().Offsets()))
}

// Complete serves POST /api/tasks/{id}/complete. DELETE on the same path
// reopens the task.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, true)
}

func (h *TaskHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, false)
}

func (h *TaskHandler) setCompleted(w http.ResponseWriter, r *http.Request, completed bool) {
	t, err := h.tasks.SetCompleted(r.PathValue("id"), completed)
	if err != nil {
		h.writeStoreError(w, err, "failed to update task")
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	action := "completed"
	if !completed {
		action = "reopened"
	}
	h.broadcast(websocket.NewMessage("task", action, t.ID, nil))
	writeJSON(w, http.StatusOK, h.view(*t, h.now(), h.cfg.Engine().Offsets()))
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.load(w, r); !ok {
		return
	}
	id := r.PathValue("id")
	if err := h.tasks.Delete(id); err != nil {
		h.writeStoreError(w, err, "failed to delete task")
		return
	}
	h.broadcast(websocket.NewMessage("task", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) load(w http.ResponseWriter, r *http.Request) (*model.Task, bool) {
	t, err := h.tasks.GetByID(r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, err, "failed to get task")
		return nil, false
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	return t, true
}

func (h *TaskHandler) writeStoreError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, store.ErrVersionConflict) {
		writeError(w, http.StatusConflict, "task was changed by someone else")
		return
	}
	h.logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}
