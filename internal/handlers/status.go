package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/alerts"
	"github.com/propflow/etl-api/internal/pipeline"
	"github.com/propflow/etl-api/internal/sources"
)

// StatusHandler serves the dashboard polling endpoints: the system status
// snapshot and aggregate job statistics.
type StatusHandler struct {
	orch     *pipeline.Orchestrator
	registry *sources.Registry
	hub      *alerts.Hub
	logger   zerolog.Logger
}

func NewStatusHandler(orch *pipeline.Orchestrator, registry *sources.Registry, hub *alerts.Hub, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		orch:     orch,
		registry: registry,
		hub:      hub,
		logger:   logger.With().Str("handler", "status").Logger(),
	}
}

func (h *StatusHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := h.orch.SystemStatus()
	status.DataSources = len(h.registry.List())
	status.UnreadAlerts = h.hub.UnreadCount()
	writeJSON(w, http.StatusOK, status)
}

func (h *StatusHandler) JobStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.JobStats())
}
