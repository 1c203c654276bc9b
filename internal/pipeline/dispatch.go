package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/models"
)

// Dispatcher decouples triggering from execution: the scheduler enqueues a
// job id onto a buffered channel and a worker pool drains it, so the tick
// loop never blocks on a run. A full queue drops the trigger, consistent
// with the drop-don't-backlog policy for busy jobs.
type Dispatcher struct {
	orch    *Orchestrator
	queue   chan string
	workers int
	logger  zerolog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewDispatcher(orch *Orchestrator, queueSize, workers int, logger zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if workers <= 0 {
		workers = 4
	}
	return &Dispatcher{
		orch:    orch,
		queue:   make(chan string, queueSize),
		workers: workers,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Start launches the worker pool. Workers exit when the queue is closed and
// drained.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for jobID := range d.queue {
				if _, _, err := d.orch.RunJob(ctx, jobID, false); err != nil {
					d.logger.Warn().Err(err).Str("job_id", jobID).Msg("queued run failed to start")
				}
			}
		}()
	}
	d.logger.Info().Int("workers", d.workers).Msg("dispatcher started")
}

// Stop closes the queue and waits for in-flight runs to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
	d.logger.Info().Msg("dispatcher stopped")
}

// Trigger enqueues a run for the job. Triggers for jobs that are already
// running or already queued are dropped. Returns whether the trigger
// was accepted.
func (d *Dispatcher) Trigger(jobID string) bool {
	if d.orch.IsRunning(jobID) {
		d.logger.Debug().Str("job_id", jobID).Msg("trigger dropped, job running")
		return false
	}
	job, err := d.orch.jobs.GetByID(jobID)
	if err != nil {
		d.logger.Warn().Err(err).Str("job_id", jobID).Msg("trigger for unknown job")
		return false
	}
	if job.Status == models.JobStatusQueued {
		return false
	}

	// Mark queued before the id is visible to a worker. A fast run writes
	// its terminal status after this, so a stale queued write can never
	// land on top of a finished run.
	if _, err := d.orch.jobs.Update(jobID, func(j *models.Job) { j.Status = models.JobStatusQueued }); err != nil {
		return false
	}

	select {
	case d.queue <- jobID:
		return true
	default:
		d.orch.jobs.Update(jobID, func(j *models.Job) { j.Status = job.Status })
		d.logger.Warn().Str("job_id", jobID).Msg("dispatch queue full, trigger dropped")
		return false
	}
}
