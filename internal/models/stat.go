package models

// SystemStatus is a read-only projection over the current job set, computed
// fresh on every call. Never a source of truth.
type SystemStatus struct {
	TotalJobs    int `json:"total_jobs"`
	RunningJobs  int `json:"running_jobs"`
	PendingJobs  int `json:"pending_jobs"` // enabled, scheduled, not running
	DataSources  int `json:"data_sources"`
	UnreadAlerts int `json:"unread_alerts"`
}

// JobStats aggregates run outcomes across all jobs plus a per-status
// histogram of the current job set.
type JobStats struct {
	TotalRuns       int               `json:"total_runs"`
	Succeeded       int               `json:"succeeded"`
	Failed          int               `json:"failed"`
	Cancelled       int               `json:"cancelled"`
	SuccessRate     float64           `json:"success_rate"`
	StatusHistogram map[JobStatus]int `json:"status_histogram"`
}
