package handler

import (
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/dukerupert/daygrid/internal/config"
	"github.com/dukerupert/daygrid/internal/store"
	"github.com/dukerupert/daygrid/internal/websocket"
)

type SettingsHandler struct {
	settingsStore *store.SettingsStore
	source        *config.SettingsSource
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, source *config.SettingsSource, hub *websocket.Hub, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settingsStore: ss, source: source, hub: hub, logger: logger}
}

func (h *SettingsHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type engineResponse struct {
	Engine    config.Engine     `json:"engine"`
	Overrides map[string]string `json:"overrides"`
}

func (h *SettingsHandler) current() (*engineResponse, error) {
	overrides, err := h.settingsStore.GetEngineSettings()
	if err != nil {
		return nil, err
	}
	return &engineResponse{Engine: h.source.Engine(), Overrides: overrides}, nil
}

// GetEngine serves GET /api/settings/engine: the effective values and the
// stored overrides behind them.
func (h *SettingsHandler) GetEngine(w http.ResponseWriter, r *http.Request) {
	resp, err := h.current()
	if err != nil {
		h.logger.Error("get engine settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateEngine serves PUT /api/settings/engine. The whole update is rejected
// if any key is unknown or the merged configuration is invalid.
func (h *SettingsHandler) UpdateEngine(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req) == 0 {
		writeError(w, http.StatusBadRequest, "no settings given")
		return
	}
	for key := range req {
		if !slices.Contains(config.EngineKeys, key) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown setting: %s", key))
			return
		}
	}

	stored, err := h.settingsStore.GetEngineSettings()
	if err != nil {
		h.logger.Error("get engine settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	merged := make(map[string]string, len(stored)+len(req))
	maps.Copy(merged, stored)
	for key, value := range req {
		merged[key] = strings.TrimSpace(value)
	}
	engine, err := h.source.Base().Apply(merged)
	if err == nil {
		err = engine.Validate()
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updates := make(map[string]string, len(req))
	for key := range req {
		updates[key] = merged[key]
	}
	if err := h.settingsStore.SetMany(updates); err != nil {
		h.logger.Error("save engine settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	h.logger.Info("engine settings updated", "keys", slices.Sorted(maps.Keys(updates)))
	h.broadcast(websocket.NewMessage("settings", "updated", "", nil))

	h.GetEngine(w, r)
}

// ResetEngineKey serves DELETE /api/settings/engine/{key}, restoring the
// configured base value.
func (h *SettingsHandler) ResetEngineKey(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !slices.Contains(config.EngineKeys, key) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown setting: %s", key))
		return
	}
	if err := h.settingsStore.Delete(key); err != nil {
		h.logger.Error("delete engine setting", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset setting")
		return
	}
	h.broadcast(websocket.NewMessage("settings", "updated", "", nil))
	h.GetEngine(w, r)
}
