package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/batch"
	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
)

type BatchHandler struct {
	batches     store.BatchStore
	coordinator *batch.Coordinator
	logger      zerolog.Logger
}

func NewBatchHandler(batches store.BatchStore, coordinator *batch.Coordinator, logger zerolog.Logger) *BatchHandler {
	return &BatchHandler{
		batches:     batches,
		coordinator: coordinator,
		logger:      logger.With().Str("handler", "batch").Logger(),
	}
}

func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.batches.List())
}

func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.batches.GetByID(mux.Vars(r)["batchID"])
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		JobIDs      []string `json:"job_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		http.Error(w, "Batch name is required", http.StatusBadRequest)
		return
	}
	if len(payload.JobIDs) == 0 {
		http.Error(w, "Batch needs at least one job", http.StatusBadRequest)
		return
	}
	created := h.batches.Create(models.BatchJob{
		Name:        payload.Name,
		Description: payload.Description,
		JobIDs:      payload.JobIDs,
	})
	writeJSON(w, http.StatusCreated, created)
}

func (h *BatchHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        *string   `json:"name"`
		Description *string   `json:"description"`
		JobIDs      *[]string `json:"job_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	updated, err := h.batches.Update(mux.Vars(r)["batchID"], func(b *models.BatchJob) {
		if payload.Name != nil {
			b.Name = *payload.Name
		}
		if payload.Description != nil {
			b.Description = *payload.Description
		}
		if payload.JobIDs != nil {
			b.JobIDs = *payload.JobIDs
		}
	})
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.batches.Delete(mux.Vars(r)["batchID"]) {
		http.Error(w, "batch not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Run starts the batch asynchronously. Progress is polled via Get or
// Refresh.
func (h *BatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["batchID"]
	b, err := h.batches.GetByID(batchID)
	if err != nil {
		storeError(w, err)
		return
	}
	if b.Status == models.JobStatusRunning {
		http.Error(w, "batch is already running", http.StatusConflict)
		return
	}

	go func() {
		if _, err := h.coordinator.RunBatch(context.Background(), batchID); err != nil {
			h.logger.Error().Err(err).Str("batch_id", batchID).Msg("batch run failed")
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"batch_id": batchID, "status": "accepted"})
}

// Refresh recomputes progress from the member jobs on demand.
func (h *BatchHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	b, err := h.coordinator.Refresh(mux.Vars(r)["batchID"])
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
