package models

import "time"

// BatchJob groups jobs whose aggregate status and progress derive from the
// member jobs. Progress is terminal-member count over total, 0..100.
type BatchJob struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	JobIDs      []string   `json:"job_ids"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (b BatchJob) Clone() BatchJob {
	out := b
	if b.JobIDs != nil {
		out.JobIDs = append([]string(nil), b.JobIDs...)
	}
	if b.StartedAt != nil {
		t := *b.StartedAt
		out.StartedAt = &t
	}
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
