package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
)

type SuggestionHandler struct {
	suggestions store.SuggestionStore
	logger      zerolog.Logger
}

func NewSuggestionHandler(suggestions store.SuggestionStore, logger zerolog.Logger) *SuggestionHandler {
	return &SuggestionHandler{
		suggestions: suggestions,
		logger:      logger.With().Str("handler", "suggestion").Logger(),
	}
}

func (h *SuggestionHandler) List(w http.ResponseWriter, r *http.Request) {
	if jobID := r.URL.Query().Get("job_id"); jobID != "" {
		writeJSON(w, http.StatusOK, h.suggestions.ListByJob(jobID))
		return
	}
	writeJSON(w, http.StatusOK, h.suggestions.List())
}

func (h *SuggestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.suggestions.GetByID(mux.Vars(r)["suggestionID"])
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateStatus moves a suggestion through its review lifecycle.
func (h *SuggestionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status models.SuggestionStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if !models.IsValidSuggestionStatus(payload.Status) {
		http.Error(w, "Invalid suggestion status: "+string(payload.Status), http.StatusBadRequest)
		return
	}
	updated, err := h.suggestions.Update(mux.Vars(r)["suggestionID"], func(s *models.OptimizationSuggestion) {
		s.Status = payload.Status
	})
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *SuggestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.suggestions.Delete(mux.Vars(r)["suggestionID"]) {
		http.Error(w, "suggestion not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
