// Package pipeline owns the job and job-run lifecycle: it executes jobs
// end-to-end through extract, transform, quality-check and load, updates
// status and metrics, and emits exactly one terminal alert per run.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/alerts"
	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/quality"
	"github.com/propflow/etl-api/internal/sources"
	"github.com/propflow/etl-api/internal/store"
	"github.com/propflow/etl-api/internal/transform"
)

// RunArchiver mirrors terminal runs into long-term storage. Optional.
type RunArchiver interface {
	SaveRun(ctx context.Context, run models.JobRun)
}

// CompletionListener observes terminal runs. Used by the optimization
// advisor; listener failures must not affect the pipeline.
type CompletionListener func(job models.Job, run models.JobRun)

type runHandle struct {
	cancelled atomic.Bool
}

// Orchestrator coordinates single-flight execution per job. At most one run
// may be in flight for a job at any time; a trigger arriving while the job
// is running is dropped, not queued.
type Orchestrator struct {
	jobs     store.JobStore
	runs     store.RunStore
	registry *sources.Registry
	engine   *transform.Engine
	analyzer *quality.Analyzer
	hub      *alerts.Hub
	archive  RunArchiver
	logger   zerolog.Logger

	mu        sync.Mutex
	inflight  map[string]*runHandle
	listeners []CompletionListener
}

func NewOrchestrator(
	jobs store.JobStore,
	runs store.RunStore,
	registry *sources.Registry,
	engine *transform.Engine,
	analyzer *quality.Analyzer,
	hub *alerts.Hub,
	archive RunArchiver,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		jobs:     jobs,
		runs:     runs,
		registry: registry,
		engine:   engine,
		analyzer: analyzer,
		hub:      hub,
		archive:  archive,
		logger:   logger.With().Str("component", "pipeline").Logger(),
		inflight: make(map[string]*runHandle),
	}
}

// OnRunCompleted registers a listener invoked after every terminal run.
func (o *Orchestrator) OnRunCompleted(listener CompletionListener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, listener)
}

// IsRunning reports whether the job has an in-flight run.
func (o *Orchestrator) IsRunning(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[jobID]
	return ok
}

// tryAcquire atomically claims the in-flight slot for a job.
func (o *Orchestrator) tryAcquire(jobID string) (*runHandle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inflight[jobID]; ok {
		return nil, false
	}
	handle := &runHandle{}
	o.inflight[jobID] = handle
	return handle, true
}

func (o *Orchestrator) release(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, jobID)
}

// Cancel flags the in-flight run for a job. The pipeline observes the flag
// at stage boundaries; mid-stage work is allowed to finish. Returns false
// when the job has no run in flight.
func (o *Orchestrator) Cancel(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	handle, ok := o.inflight[jobID]
	if !ok {
		return false
	}
	handle.cancelled.Store(true)
	return true
}

// RunJob executes one run of the job. A concurrent trigger for a job that
// is already running is a silent no-op (started=false, no error). Stage
// failures are converted into a FAILED run plus one error alert and never
// escape as errors; the returned error only covers "job does not exist".
func (o *Orchestrator) RunJob(ctx context.Context, jobID string, manual bool) (run models.JobRun, started bool, err error) {
	job, err := o.jobs.GetByID(jobID)
	if err != nil {
		return models.JobRun{}, false, fmt.Errorf("job %s: %w", jobID, err)
	}

	// Scheduler and batch triggers respect the enabled flag; the run is
	// recorded as SKIPPED so batch progress still closes.
	if !manual && !job.Enabled {
		run = o.runs.Create(models.JobRun{
			JobID:     jobID,
			Status:    models.JobStatusSkipped,
			StartedAt: time.Now(),
		})
		now := time.Now()
		run, _ = o.runs.Update(run.ID, func(r *models.JobRun) { r.EndedAt = &now })
		o.jobs.Update(jobID, func(j *models.Job) { j.Status = models.JobStatusSkipped })
		o.hub.Info(jobID, fmt.Sprintf("Job %q is disabled, run skipped", job.Name), nil)
		o.archiveRun(run)
		return run, true, nil
	}

	handle, ok := o.tryAcquire(jobID)
	if !ok {
		o.logger.Debug().Str("job_id", jobID).Msg("trigger dropped, job already running")
		return models.JobRun{}, false, nil
	}
	defer o.release(jobID)

	run = o.runs.Create(models.JobRun{
		JobID:     jobID,
		IsManual:  manual,
		Status:    models.JobStatusRunning,
		StartedAt: time.Now(),
	})
	o.jobs.Update(jobID, func(j *models.Job) { j.Status = models.JobStatusRunning })
	o.logger.Info().Str("job_id", jobID).Str("run_id", run.ID).Bool("manual", manual).Msg("run started")

	run = o.execute(ctx, job, run, handle)
	return run, true, nil
}

// execute walks the stages and always returns a terminal run.
func (o *Orchestrator) execute(ctx context.Context, job models.Job, run models.JobRun, handle *runHandle) models.JobRun {
	if handle.cancelled.Load() {
		return o.finish(job, run, models.JobStatusCancelled, "")
	}

	// Extract
	src, err := o.registry.Connector(job.SourceID)
	if err != nil {
		return o.finish(job, run, models.JobStatusFailed, errors.Wrap(err, "extract").Error())
	}
	records, err := src.Extract(ctx)
	if err != nil {
		return o.finish(job, run, models.JobStatusFailed, errors.Wrap(err, "extract").Error())
	}
	run.Counts.Extracted = len(records)

	if handle.cancelled.Load() {
		return o.finish(job, run, models.JobStatusCancelled, "")
	}

	// Transform
	result, err := o.engine.Apply(records, job.RuleIDs)
	if err != nil {
		return o.finish(job, run, models.JobStatusFailed, errors.Wrap(err, "transform").Error())
	}
	for _, note := range result.Warnings {
		o.logger.Warn().Str("job_id", job.ID).Str("run_id", run.ID).Msg(note)
	}
	if len(records) > 0 && len(result.Records) == 0 && len(result.Errors) > 0 {
		return o.finish(job, run, models.JobStatusFailed,
			fmt.Sprintf("transform: all %d records failed, first error: %s", len(records), result.Errors[0].Error()))
	}
	run.Counts.Transformed = len(result.Records)
	run.TransformErrors = len(result.Errors)

	if handle.cancelled.Load() {
		return o.finish(job, run, models.JobStatusCancelled, "")
	}

	// Quality check: informational only, never aborts the load.
	report := o.analyzer.Analyze(result.Records)
	run.QualityIssues = report.IssueStrings()
	if len(report.Issues) > 0 && !report.Metadata.InsufficientData {
		o.logger.Warn().Str("job_id", job.ID).Int("issues", len(report.Issues)).Msg("quality issues detected")
	}

	if handle.cancelled.Load() {
		return o.finish(job, run, models.JobStatusCancelled, "")
	}

	// Load
	tgt, err := o.registry.Connector(job.TargetID)
	if err != nil {
		return o.finish(job, run, models.JobStatusFailed, errors.Wrap(err, "load").Error())
	}
	if err := tgt.Load(ctx, result.Records); err != nil {
		return o.finish(job, run, models.JobStatusFailed, errors.Wrap(err, "load").Error())
	}
	run.Counts.Loaded = len(result.Records)

	return o.finish(job, run, models.JobStatusSucceeded, "")
}

// finish closes the run, refreshes the job's cached status and metrics,
// archives the run, and publishes the single terminal alert.
func (o *Orchestrator) finish(job models.Job, run models.JobRun, status models.JobStatus, errMsg string) models.JobRun {
	now := time.Now()
	updated, err := o.runs.Update(run.ID, func(r *models.JobRun) {
		r.Status = status
		r.EndedAt = &now
		r.Error = errMsg
		r.Counts = run.Counts
		r.QualityIssues = run.QualityIssues
		r.TransformErrors = run.TransformErrors
	})
	if err != nil {
		o.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to close run")
		updated = run
		updated.Status = status
		updated.EndedAt = &now
		updated.Error = errMsg
	}

	duration := now.Sub(run.StartedAt)
	updatedJob, err := o.jobs.Update(job.ID, func(j *models.Job) {
		j.Status = status
		j.LastRunAt = &now
		j.Metrics = o.recomputeMetrics(j.ID, updated, duration)
	})
	if err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to update job after run")
		updatedJob = job
	}

	o.archiveRun(updated)
	o.publishTerminalAlert(updatedJob, updated)
	o.notifyListeners(updatedJob, updated)

	o.logger.Info().
		Str("job_id", job.ID).
		Str("run_id", updated.ID).
		Str("status", string(status)).
		Dur("duration", duration).
		Msg("run finished")
	return updated
}

// recomputeMetrics derives the cached metrics snapshot from run history.
func (o *Orchestrator) recomputeMetrics(jobID string, run models.JobRun, duration time.Duration) models.JobMetrics {
	history := o.runs.ListByJob(jobID, 0)
	total, succeeded := 0, 0
	for _, r := range history {
		if !r.Status.IsTerminal() {
			continue
		}
		total++
		if r.Status == models.JobStatusSucceeded {
			succeeded++
		}
	}
	rate := 0.0
	if total > 0 {
		rate = float64(succeeded) / float64(total)
	}
	return models.JobMetrics{
		LastDurationMs:   duration.Milliseconds(),
		RecordsProcessed: run.Counts.Loaded,
		// Coarse working-set estimate from batch width.
		MemoryEstimateKB: int64(run.Counts.Extracted) * 2,
		TotalRuns:        total,
		SuccessRate:      rate,
	}
}

func (o *Orchestrator) publishTerminalAlert(job models.Job, run models.JobRun) {
	details := map[string]interface{}{
		"run_id":      run.ID,
		"extracted":   run.Counts.Extracted,
		"transformed": run.Counts.Transformed,
		"loaded":      run.Counts.Loaded,
	}
	if run.TransformErrors > 0 {
		details["transform_errors"] = run.TransformErrors
	}
	if len(run.QualityIssues) > 0 {
		details["quality_issues"] = len(run.QualityIssues)
	}

	switch run.Status {
	case models.JobStatusSucceeded:
		o.hub.Success(job.ID, fmt.Sprintf("Job %q completed: %d records loaded", job.Name, run.Counts.Loaded), details)
	case models.JobStatusFailed:
		details["error"] = run.Error
		o.hub.Error(job.ID, fmt.Sprintf("Job %q failed: %s", job.Name, run.Error), details)
	case models.JobStatusCancelled:
		o.hub.Warning(job.ID, fmt.Sprintf("Job %q was cancelled", job.Name), details)
	default:
		o.hub.Info(job.ID, fmt.Sprintf("Job %q finished with status %s", job.Name, run.Status), details)
	}
}

func (o *Orchestrator) notifyListeners(job models.Job, run models.JobRun) {
	o.mu.Lock()
	listeners := append([]CompletionListener(nil), o.listeners...)
	o.mu.Unlock()
	for _, listener := range listeners {
		listener(job, run)
	}
}

func (o *Orchestrator) archiveRun(run models.JobRun) {
	if o.archive == nil {
		return
	}
	o.archive.SaveRun(context.Background(), run)
}
