package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/alerts"
	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
)

type AlertHandler struct {
	hub    *alerts.Hub
	logger zerolog.Logger
}

func NewAlertHandler(hub *alerts.Hub, logger zerolog.Logger) *AlertHandler {
	return &AlertHandler{
		hub:    hub,
		logger: logger.With().Str("handler", "alert").Logger(),
	}
}

// List returns alerts newest-first, optionally filtered by job, type, and
// read state.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.AlertFilter{
		JobID:      r.URL.Query().Get("job_id"),
		Type:       models.AlertType(r.URL.Query().Get("type")),
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Limit:      queryInt(r, "limit", 50),
	}
	writeJSON(w, http.StatusOK, h.hub.List(filter))
}

func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	alert, err := h.hub.MarkRead(mux.Vars(r)["alertID"])
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *AlertHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"unread": h.hub.UnreadCount()})
}
