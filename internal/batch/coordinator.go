// Package batch groups jobs into named batches and derives aggregate
// status and progress from the member jobs.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/pipeline"
	"github.com/propflow/etl-api/internal/store"
)

// Coordinator triggers member jobs and keeps batch progress in sync.
// Member runs go through the orchestrator, so single-flight per job still
// holds inside a batch.
type Coordinator struct {
	batches     store.BatchStore
	jobs        store.JobStore
	orch        *pipeline.Orchestrator
	concurrency int
	logger      zerolog.Logger
}

func NewCoordinator(batches store.BatchStore, jobs store.JobStore, orch *pipeline.Orchestrator, concurrency int, logger zerolog.Logger) *Coordinator {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Coordinator{
		batches:     batches,
		jobs:        jobs,
		orch:        orch,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "batch").Logger(),
	}
}

// RunBatch executes every member job and blocks until all of them reach a
// terminal state. Member failures do not abort the batch; they surface in
// the aggregate status.
func (c *Coordinator) RunBatch(ctx context.Context, batchID string) (models.BatchJob, error) {
	b, err := c.batches.GetByID(batchID)
	if err != nil {
		return models.BatchJob{}, fmt.Errorf("batch %s: %w", batchID, err)
	}
	if len(b.JobIDs) == 0 {
		return b, fmt.Errorf("batch %q has no member jobs", b.Name)
	}

	now := time.Now()
	b, err = c.batches.Update(batchID, func(batch *models.BatchJob) {
		batch.Status = models.JobStatusRunning
		batch.Progress = 0
		batch.StartedAt = &now
		batch.CompletedAt = nil
	})
	if err != nil {
		return models.BatchJob{}, err
	}
	c.logger.Info().Str("batch_id", batchID).Int("members", len(b.JobIDs)).Msg("batch started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, jobID := range b.JobIDs {
		jobID := jobID
		g.Go(func() error {
			if _, _, err := c.orch.RunJob(gctx, jobID, false); err != nil {
				c.logger.Warn().Err(err).Str("batch_id", batchID).Str("job_id", jobID).Msg("batch member could not run")
			}
			// Keep progress moving as members close.
			c.Refresh(batchID)
			return nil
		})
	}
	g.Wait()

	done := time.Now()
	c.batches.Update(batchID, func(batch *models.BatchJob) {
		batch.CompletedAt = &done
	})
	return c.Refresh(batchID)
}

// Refresh recomputes progress and aggregate status from the member jobs'
// current statuses: FAILED if any member failed, RUNNING while any member
// runs, SUCCEEDED only when every member succeeded.
func (c *Coordinator) Refresh(batchID string) (models.BatchJob, error) {
	b, err := c.batches.GetByID(batchID)
	if err != nil {
		return models.BatchJob{}, err
	}

	total := len(b.JobIDs)
	if total == 0 {
		return b, nil
	}

	terminal, succeeded, failed, running, cancelled := 0, 0, 0, 0, 0
	for _, jobID := range b.JobIDs {
		job, err := c.jobs.GetByID(jobID)
		if err != nil {
			// Deleted member counts as terminal so the batch can close.
			terminal++
			failed++
			continue
		}
		switch {
		case job.Status == models.JobStatusRunning || job.Status == models.JobStatusQueued:
			running++
		case job.Status.IsTerminal():
			terminal++
			switch job.Status {
			case models.JobStatusSucceeded:
				succeeded++
			case models.JobStatusFailed:
				failed++
			case models.JobStatusCancelled:
				cancelled++
			}
		}
	}

	status := b.Status
	switch {
	case running > 0:
		status = models.JobStatusRunning
	case failed > 0:
		status = models.JobStatusFailed
	case succeeded == total:
		status = models.JobStatusSucceeded
	case cancelled > 0:
		status = models.JobStatusCancelled
	case terminal == total:
		status = models.JobStatusSkipped
	}

	return c.batches.Update(batchID, func(batch *models.BatchJob) {
		batch.Progress = terminal * 100 / total
		batch.Status = status
	})
}
