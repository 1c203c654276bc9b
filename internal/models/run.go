package models

import "time"

// RecordCounts tracks how many records survived each stage boundary.
type RecordCounts struct {
	Extracted   int `json:"extracted"`
	Transformed int `json:"transformed"`
	Loaded      int `json:"loaded"`
}

// JobRun is one execution attempt of a job. Runs are immutable once they
// reach a terminal status.
type JobRun struct {
	ID              string       `json:"id"`
	JobID           string       `json:"job_id"`
	IsManual        bool         `json:"is_manual"`
	Status          JobStatus    `json:"status"`
	StartedAt       time.Time    `json:"started_at"`
	EndedAt         *time.Time   `json:"ended_at,omitempty"`
	Counts          RecordCounts `json:"record_counts"`
	Error           string       `json:"error,omitempty"`
	TransformErrors int          `json:"transform_errors,omitempty"`
	QualityIssues   []string     `json:"quality_issues,omitempty"`
}

func (r JobRun) Clone() JobRun {
	out := r
	if r.EndedAt != nil {
		t := *r.EndedAt
		out.EndedAt = &t
	}
	if r.QualityIssues != nil {
		out.QualityIssues = append([]string(nil), r.QualityIssues...)
	}
	return out
}
