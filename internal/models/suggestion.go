package models

import "time"

type SuggestionType string

const (
	SuggestionTypeRetry        SuggestionType = "retry_logic"
	SuggestionTypeBatching     SuggestionType = "batching"
	SuggestionTypeStreaming    SuggestionType = "streaming"
	SuggestionTypeConsolidate  SuggestionType = "schedule_consolidation"
	SuggestionTypeIdleSchedule SuggestionType = "idle_schedule"
)

type SuggestionSeverity string

const (
	SuggestionSeverityLow    SuggestionSeverity = "low"
	SuggestionSeverityMedium SuggestionSeverity = "medium"
	SuggestionSeverityHigh   SuggestionSeverity = "high"
)

type SuggestionStatus string

const (
	SuggestionStatusNew         SuggestionStatus = "new"
	SuggestionStatusInProgress  SuggestionStatus = "in_progress"
	SuggestionStatusImplemented SuggestionStatus = "implemented"
	SuggestionStatusDismissed   SuggestionStatus = "dismissed"
)

func IsValidSuggestionStatus(s SuggestionStatus) bool {
	switch s {
	case SuggestionStatusNew, SuggestionStatusInProgress, SuggestionStatusImplemented, SuggestionStatusDismissed:
		return true
	}
	return false
}

// OptimizationSuggestion is an advisory recommendation derived from run
// metrics. It never affects job execution.
type OptimizationSuggestion struct {
	ID                 string             `json:"id"`
	JobID              string             `json:"job_id"`
	Type               SuggestionType     `json:"type"`
	Severity           SuggestionSeverity `json:"severity"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	SuggestedAction    string             `json:"suggested_action"`
	EstimatedMetric    string             `json:"estimated_metric,omitempty"`
	EstimatedImprovePc float64            `json:"estimated_improvement_pct,omitempty"`
	Complexity         string             `json:"complexity,omitempty"`
	ExampleCode        string             `json:"example_code,omitempty"`
	Status             SuggestionStatus   `json:"status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func (s OptimizationSuggestion) Clone() OptimizationSuggestion {
	return s
}
