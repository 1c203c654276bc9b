package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/propflow/etl-api/internal/handlers"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth        *handlers.AuthHandler
	DataSources *handlers.DataSourceHandler
	Rules       *handlers.RuleHandler
	Jobs        *handlers.JobHandler
	Batches     *handlers.BatchHandler
	Alerts      *handlers.AlertHandler
	Suggestions *handlers.SuggestionHandler
	Status      *handlers.StatusHandler
}

// NewRouter sets up the API routes
func NewRouter(h Handlers) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoint
	router.HandleFunc("/api/login", h.Auth.Login).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(h.Auth.JWTMiddleware)

	// Data sources
	api.HandleFunc("/sources", h.DataSources.List).Methods(http.MethodGet)
	api.HandleFunc("/sources", h.DataSources.Create).Methods(http.MethodPost)
	api.HandleFunc("/sources/{sourceID}", h.DataSources.Get).Methods(http.MethodGet)
	api.HandleFunc("/sources/{sourceID}", h.DataSources.Update).Methods(http.MethodPut)
	api.HandleFunc("/sources/{sourceID}", h.DataSources.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/sources/{sourceID}/check", h.DataSources.CheckAvailability).Methods(http.MethodPost)
	api.HandleFunc("/sources/{sourceID}/disconnect", h.DataSources.Disconnect).Methods(http.MethodPost)

	// Transformation rules
	api.HandleFunc("/rules", h.Rules.List).Methods(http.MethodGet)
	api.HandleFunc("/rules", h.Rules.Create).Methods(http.MethodPost)
	api.HandleFunc("/rules/handlers", h.Rules.Handlers).Methods(http.MethodGet)
	api.HandleFunc("/rules/{ruleID}", h.Rules.Get).Methods(http.MethodGet)
	api.HandleFunc("/rules/{ruleID}", h.Rules.Update).Methods(http.MethodPut)
	api.HandleFunc("/rules/{ruleID}", h.Rules.Delete).Methods(http.MethodDelete)

	// Jobs and runs
	api.HandleFunc("/jobs", h.Jobs.List).Methods(http.MethodGet)
	api.HandleFunc("/jobs", h.Jobs.Create).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{jobID}", h.Jobs.Get).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{jobID}", h.Jobs.Update).Methods(http.MethodPut)
	api.HandleFunc("/jobs/{jobID}", h.Jobs.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/jobs/{jobID}/run", h.Jobs.Run).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{jobID}/cancel", h.Jobs.Cancel).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{jobID}/schedule", h.Jobs.SetSchedule).Methods(http.MethodPut)
	api.HandleFunc("/jobs/{jobID}/runs", h.Jobs.ListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs", h.Jobs.ListAllRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{runID}", h.Jobs.GetRun).Methods(http.MethodGet)

	// Batches
	api.HandleFunc("/batches", h.Batches.List).Methods(http.MethodGet)
	api.HandleFunc("/batches", h.Batches.Create).Methods(http.MethodPost)
	api.HandleFunc("/batches/{batchID}", h.Batches.Get).Methods(http.MethodGet)
	api.HandleFunc("/batches/{batchID}", h.Batches.Update).Methods(http.MethodPut)
	api.HandleFunc("/batches/{batchID}", h.Batches.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/batches/{batchID}/run", h.Batches.Run).Methods(http.MethodPost)
	api.HandleFunc("/batches/{batchID}/refresh", h.Batches.Refresh).Methods(http.MethodPost)

	// Alerts
	api.HandleFunc("/alerts", h.Alerts.List).Methods(http.MethodGet)
	api.HandleFunc("/alerts/unread-count", h.Alerts.UnreadCount).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{alertID}/read", h.Alerts.MarkRead).Methods(http.MethodPost)

	// Optimization suggestions
	api.HandleFunc("/suggestions", h.Suggestions.List).Methods(http.MethodGet)
	api.HandleFunc("/suggestions/{suggestionID}", h.Suggestions.Get).Methods(http.MethodGet)
	api.HandleFunc("/suggestions/{suggestionID}/status", h.Suggestions.UpdateStatus).Methods(http.MethodPut)
	api.HandleFunc("/suggestions/{suggestionID}", h.Suggestions.Delete).Methods(http.MethodDelete)

	// Dashboard polling
	api.HandleFunc("/status", h.Status.SystemStatus).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.Status.JobStats).Methods(http.MethodGet)

	return router
}
