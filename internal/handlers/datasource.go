package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/sources"
)

type DataSourceHandler struct {
	registry *sources.Registry
	logger   zerolog.Logger
}

func NewDataSourceHandler(registry *sources.Registry, logger zerolog.Logger) *DataSourceHandler {
	return &DataSourceHandler{
		registry: registry,
		logger:   logger.With().Str("handler", "datasource").Logger(),
	}
}

func (h *DataSourceHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

func (h *DataSourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ds, err := h.registry.Describe(mux.Vars(r)["sourceID"])
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *DataSourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload models.DataSource
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	created, err := h.registry.Register(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *DataSourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        *string            `json:"name"`
		Description *string            `json:"description"`
		Config      *map[string]string `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	updated, err := h.registry.Update(mux.Vars(r)["sourceID"], func(ds *models.DataSource) {
		if payload.Name != nil {
			ds.Name = *payload.Name
		}
		if payload.Description != nil {
			ds.Description = *payload.Description
		}
		if payload.Config != nil {
			ds.Config = *payload.Config
		}
	})
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *DataSourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Delete(mux.Vars(r)["sourceID"]) {
		http.Error(w, "data source not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckAvailability probes the source and reports the result. The probe
// never fails the request; an unreachable source is available=false.
func (h *DataSourceHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	sourceID := mux.Vars(r)["sourceID"]
	available := h.registry.CheckAvailability(r.Context(), sourceID)
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (h *DataSourceHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	ds, err := h.registry.Disconnect(mux.Vars(r)["sourceID"])
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}
