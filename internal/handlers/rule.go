package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
	"github.com/propflow/etl-api/internal/transform"
)

type RuleHandler struct {
	rules  store.RuleStore
	engine *transform.Engine
	logger zerolog.Logger
}

func NewRuleHandler(rules store.RuleStore, engine *transform.Engine, logger zerolog.Logger) *RuleHandler {
	return &RuleHandler{
		rules:  rules,
		engine: engine,
		logger: logger.With().Str("handler", "rule").Logger(),
	}
}

func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rules.List())
}

// Handlers lists the transformer names rules may reference.
func (h *RuleHandler) Handlers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"handlers": h.engine.Handlers()})
}

func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.GetByID(mux.Vars(r)["ruleID"])
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload models.TransformationRule
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		http.Error(w, "Rule name is required", http.StatusBadRequest)
		return
	}
	if !h.engine.KnownHandler(payload.Handler) {
		http.Error(w, "Unknown handler: "+payload.Handler, http.StatusBadRequest)
		return
	}
	payload.ID = ""
	writeJSON(w, http.StatusCreated, h.rules.Create(payload))
}

func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name        *string            `json:"name"`
		Description *string            `json:"description"`
		Handler     *string            `json:"handler"`
		Params      *map[string]string `json:"params"`
		Active      *bool              `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.Handler != nil && !h.engine.KnownHandler(*payload.Handler) {
		http.Error(w, "Unknown handler: "+*payload.Handler, http.StatusBadRequest)
		return
	}
	updated, err := h.rules.Update(mux.Vars(r)["ruleID"], func(rule *models.TransformationRule) {
		if payload.Name != nil {
			rule.Name = *payload.Name
		}
		if payload.Description != nil {
			rule.Description = *payload.Description
		}
		if payload.Handler != nil {
			rule.Handler = *payload.Handler
		}
		if payload.Params != nil {
			rule.Params = *payload.Params
		}
		if payload.Active != nil {
			rule.Active = *payload.Active
		}
	})
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.rules.Delete(mux.Vars(r)["ruleID"]) {
		http.Error(w, "rule not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
