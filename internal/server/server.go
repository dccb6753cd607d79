package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/daygrid/internal/calendar"
	"github.com/dukerupert/daygrid/internal/config"
	"github.com/dukerupert/daygrid/internal/duedate"
	"github.com/dukerupert/daygrid/internal/handler"
	"github.com/dukerupert/daygrid/internal/interaction"
	"github.com/dukerupert/daygrid/internal/metrics"
	"github.com/dukerupert/daygrid/internal/middleware"
	"github.com/dukerupert/daygrid/internal/scheduler"
	"github.com/dukerupert/daygrid/internal/store"
	ws "github.com/dukerupert/daygrid/internal/websocket"
)

const (
	importLimit       = 10
	importLimitPeriod = time.Minute
	limiterCleanup    = "@every 10m"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	metrics     *metrics.Metrics
	scheduler   *scheduler.Scheduler
	eventH      *handler.EventHandler
	taskH       *handler.TaskHandler
	sessionH    *handler.SessionHandler
	settingsH   *handler.SettingsHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	m := metrics.New(hub.ClientCount)

	eventStore := store.NewEventStore(db)
	taskStore := store.NewTaskStore(db)
	settingsStore := store.NewSettingsStore(db)

	engine := config.NewSettingsSource(cfg.Engine, settingsStore, logger)
	cal := calendar.NewService(eventStore, engine, hub, m, loc, logger)

	ctrl := interaction.New(engine, cal, logger)
	ctrl.OnFinish = func(kind interaction.Kind, outcome interaction.Outcome) {
		m.ObserveSession(string(kind), string(outcome))
	}

	sched := scheduler.New(taskStore, engine, hub, m, loc, logger)
	limiter := middleware.NewRateLimiter(importLimit, importLimitPeriod)
	if err := sched.AddJob("rate limiter cleanup", limiterCleanup, func() { limiter.Cleanup() }); err != nil {
		return nil, fmt.Errorf("schedule cleanup: %w", err)
	}

	return &Server{
		db:          db,
		hub:         hub,
		metrics:     m,
		scheduler:   sched,
		eventH:      handler.NewEventHandler(cal, logger.With("component", "event")),
		taskH:       handler.NewTaskHandler(taskStore, engine, duedate.New(loc), hub, logger.With("component", "task")),
		sessionH:    handler.NewSessionHandler(ctrl, cal, logger.With("component", "session")),
		settingsH:   handler.NewSettingsHandler(settingsStore, engine, hub, logger.With("component", "settings")),
		rateLimiter: limiter,
		logger:      logger,
	}, nil
}

// Scheduler returns the overdue/clock scheduler so the caller can run it
// alongside the HTTP server.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	// Events
	mux.HandleFunc("POST /api/events", s.eventH.Create)
	mux.HandleFunc("GET /api/events", s.eventH.List)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)

	// Layout
	mux.HandleFunc("GET /api/layout/day", s.eventH.LayoutDay)
	mux.HandleFunc("GET /api/layout/week", s.eventH.LayoutWeek)

	// iCalendar
	mux.HandleFunc("GET /calendar.ics", s.eventH.ExportICS)
	mux.Handle("POST /api/import", middleware.RateLimit(s.rateLimiter)(http.HandlerFunc(s.eventH.ImportICS)))

	// Drag and resize sessions
	mux.HandleFunc("POST /api/sessions/drag", s.sessionH.BeginDrag)
	mux.HandleFunc("POST /api/sessions/resize", s.sessionH.BeginResize)
	mux.HandleFunc("GET /api/sessions/current", s.sessionH.Current)
	mux.HandleFunc("PUT /api/sessions/current", s.sessionH.Move)
	mux.HandleFunc("POST /api/sessions/current/commit", s.sessionH.Commit)
	mux.HandleFunc("DELETE /api/sessions/current", s.sessionH.Cancel)

	// Tasks
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)
	mux.HandleFunc("DELETE /api/tasks/{id}/complete", s.taskH.Reopen)

	// Engine settings
	mux.HandleFunc("GET /api/settings/engine", s.settingsH.GetEngine)
	mux.HandleFunc("PUT /api/settings/engine", s.settingsH.UpdateEngine)
	mux.HandleFunc("DELETE /api/settings/engine/{key}", s.settingsH.ResetEngineKey)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "database unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "clients": s.hub.ClientCount()})
}
