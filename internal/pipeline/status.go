package pipeline

import (
	"github.com/propflow/etl-api/internal/models"
)

// SystemStatus projects the current job set into the polling view. It is
// computed fresh on every call and is never a source of truth.
func (o *Orchestrator) SystemStatus() models.SystemStatus {
	status := models.SystemStatus{}
	for _, job := range o.jobs.List() {
		status.TotalJobs++
		switch {
		case job.Status == models.JobStatusRunning || job.Status == models.JobStatusQueued:
			status.RunningJobs++
		case job.Enabled && job.Schedule != "":
			status.PendingJobs++
		}
	}
	return status
}

// JobStats aggregates run outcomes and the per-status histogram.
func (o *Orchestrator) JobStats() models.JobStats {
	stats := models.JobStats{
		StatusHistogram: make(map[models.JobStatus]int),
	}
	for _, job := range o.jobs.List() {
		stats.StatusHistogram[job.Status]++
	}

	terminal := 0
	for _, run := range o.runs.List(0) {
		if !run.Status.IsTerminal() {
			continue
		}
		stats.TotalRuns++
		terminal++
		switch run.Status {
		case models.JobStatusSucceeded:
			stats.Succeeded++
		case models.JobStatusFailed:
			stats.Failed++
		case models.JobStatusCancelled:
			stats.Cancelled++
		}
	}
	if terminal > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(terminal)
	}
	return stats
}
