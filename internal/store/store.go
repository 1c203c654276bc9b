// Package store is the persistence boundary for the orchestration engine.
// The in-memory implementation is the source of truth; the optional postgres
// archive only mirrors terminal runs and alerts for offline inspection.
package store

import (
	"errors"

	"github.com/propflow/etl-api/internal/models"
)

// ErrNotFound is returned when an entity id does not resolve.
var ErrNotFound = errors.New("not found")

type DataSourceStore interface {
	List() []models.DataSource
	GetByID(id string) (models.DataSource, error)
	Create(ds models.DataSource) models.DataSource
	Update(id string, mutate func(*models.DataSource)) (models.DataSource, error)
	Delete(id string) bool
}

type RuleStore interface {
	List() []models.TransformationRule
	GetByID(id string) (models.TransformationRule, error)
	Create(rule models.TransformationRule) models.TransformationRule
	Update(id string, mutate func(*models.TransformationRule)) (models.TransformationRule, error)
	Delete(id string) bool
}

type JobStore interface {
	List() []models.Job
	GetByID(id string) (models.Job, error)
	Create(job models.Job) models.Job
	Update(id string, mutate func(*models.Job)) (models.Job, error)
	Delete(id string) bool
}

type RunStore interface {
	// List returns runs most-recent-first by start time. limit <= 0 means all.
	List(limit int) []models.JobRun
	ListByJob(jobID string, limit int) []models.JobRun
	GetByID(id string) (models.JobRun, error)
	Create(run models.JobRun) models.JobRun
	Update(id string, mutate func(*models.JobRun)) (models.JobRun, error)
	Delete(id string) bool
}

type BatchStore interface {
	List() []models.BatchJob
	GetByID(id string) (models.BatchJob, error)
	Create(batch models.BatchJob) models.BatchJob
	Update(id string, mutate func(*models.BatchJob)) (models.BatchJob, error)
	Delete(id string) bool
}

// AlertFilter narrows List results. Zero values mean "no constraint".
type AlertFilter struct {
	JobID      string
	Type       models.AlertType
	UnreadOnly bool
	Limit      int
}

type AlertStore interface {
	// List returns alerts newest-first.
	List(filter AlertFilter) []models.Alert
	GetByID(id string) (models.Alert, error)
	Create(alert models.Alert) models.Alert
	MarkRead(id string) (models.Alert, error)
	UnreadCount() int
	Delete(id string) bool
}

type SuggestionStore interface {
	List() []models.OptimizationSuggestion
	ListByJob(jobID string) []models.OptimizationSuggestion
	GetByID(id string) (models.OptimizationSuggestion, error)
	Create(s models.OptimizationSuggestion) models.OptimizationSuggestion
	Update(id string, mutate func(*models.OptimizationSuggestion)) (models.OptimizationSuggestion, error)
	Delete(id string) bool
}

// Stores bundles every collection for wiring in main.
type Stores struct {
	DataSources DataSourceStore
	Rules       RuleStore
	Jobs        JobStore
	Runs        RunStore
	Batches     BatchStore
	Alerts      AlertStore
	Suggestions SuggestionStore
}

// NewMemoryStores builds the default in-memory store set.
func NewMemoryStores() *Stores {
	return &Stores{
		DataSources: NewMemoryDataSourceStore(),
		Rules:       NewMemoryRuleStore(),
		Jobs:        NewMemoryJobStore(),
		Runs:        NewMemoryRunStore(),
		Batches:     NewMemoryBatchStore(),
		Alerts:      NewMemoryAlertStore(),
		Suggestions: NewMemorySuggestionStore(),
	}
}
