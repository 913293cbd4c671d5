package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SettingsWriter persists an admin-editable setting and invalidates any
// cached copy.
type SettingsWriter interface {
	Set(ctx context.Context, key, value string) error
}

// SettingsHandler exposes the admin endpoint for notification settings.
type SettingsHandler struct {
	settings SettingsWriter
}

func NewSettingsHandler(settings SettingsWriter) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) RegisterRoutes(router chi.Router) {
	router.Put("/settings/{key}", h.handleUpdateSetting)
}

type updateSettingRequest struct {
	Value string `json:"value"`
}

func (h *SettingsHandler) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		respondWithError(w, http.StatusBadRequest, "Missing setting key")
		return
	}

	var req updateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.settings.Set(r.Context(), key, req.Value); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to update setting")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to update setting"))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}
