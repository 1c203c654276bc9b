package models

import "time"

type JobStatus string

const (
	JobStatusCreated   JobStatus = "created"
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusSkipped   JobStatus = "skipped"
)

// IsTerminal reports whether the status closes a run.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled, JobStatusSkipped:
		return true
	}
	return false
}

// JobMetrics is the cached snapshot of a job's most recent execution
// characteristics, refreshed on every terminal run.
type JobMetrics struct {
	LastDurationMs   int64   `json:"last_duration_ms"`
	RecordsProcessed int     `json:"records_processed"`
	MemoryEstimateKB int64   `json:"memory_estimate_kb"`
	TotalRuns        int     `json:"total_runs"`
	SuccessRate      float64 `json:"success_rate"`
}

// Job is a configured extract/transform/load task. Status mirrors the most
// recent run, not a queue position; at most one run is in flight per job.
type Job struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	SourceID    string     `json:"source_id"`
	TargetID    string     `json:"target_id"`
	RuleIDs     []string   `json:"rule_ids"`
	Enabled     bool       `json:"enabled"`
	Status      JobStatus  `json:"status"`
	Schedule    string     `json:"schedule,omitempty"`
	Metrics     JobMetrics `json:"metrics"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (j Job) Clone() Job {
	out := j
	if j.RuleIDs != nil {
		out.RuleIDs = append([]string(nil), j.RuleIDs...)
	}
	if j.LastRunAt != nil {
		t := *j.LastRunAt
		out.LastRunAt = &t
	}
	return out
}
