// Package scheduler decides, on a fixed check interval, which enabled jobs
// are due and hands them to the dispatcher without blocking the tick loop.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/alerts"
	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
)

// DefaultCheckInterval matches the reference cadence of one scheduler pass
// per minute.
const DefaultCheckInterval = time.Minute

// Runner accepts fire-and-forget triggers. Trigger must not block on run
// completion.
type Runner interface {
	Trigger(jobID string) bool
}

type entry struct {
	expr  string
	inert bool
}

// Scheduler keeps a cached map of jobID to schedule expression and
// evaluates it every tick. One scheduler instance serves the whole engine;
// construct it explicitly and inject it wherever the tick loop is hosted.
type Scheduler struct {
	jobs   store.JobStore
	runner Runner
	hub    *alerts.Hub
	logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(jobs store.JobStore, runner Runner, hub *alerts.Hub, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		jobs:    jobs,
		runner:  runner,
		hub:     hub,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		entries: make(map[string]*entry),
	}
}

// Start launches the tick loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, interval)
	s.logger.Info().Dur("interval", interval).Msg("scheduler started")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Stop halts the tick loop and waits for it to exit. In-flight runs are
// not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info().Msg("scheduler stopped")
}

// ScheduleJob caches the expression for the job. An unparsable expression
// is kept inert: it never triggers, and the diagnostic (one warning alert
// plus a log line) is surfaced here rather than on every tick. The
// validation error is returned so callers can report it.
func (s *Scheduler) ScheduleJob(jobID, expr string) error {
	err := ValidateExpression(expr)

	s.mu.Lock()
	s.entries[jobID] = &entry{expr: expr, inert: err != nil}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("unparsable schedule, job will never auto-trigger")
		s.hub.Warning(jobID, fmt.Sprintf("Schedule is invalid and will never trigger: %v", err), nil)
		return err
	}
	return nil
}

// UnscheduleJob drops the cached expression.
func (s *Scheduler) UnscheduleJob(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, jobID)
}

// Tick evaluates every cached schedule against the current job set and
// triggers the due ones. Exposed for test harnesses; the loop calls it on
// every interval.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	snapshot := make(map[string]entry, len(s.entries))
	for id, e := range s.entries {
		snapshot[id] = *e
	}
	s.mu.Unlock()

	for jobID, e := range snapshot {
		if e.inert {
			continue
		}
		job, err := s.jobs.GetByID(jobID)
		if err != nil {
			// Job was deleted out from under the cache.
			s.UnscheduleJob(jobID)
			continue
		}
		if !job.Enabled || job.Schedule == "" {
			continue
		}
		if job.Status == models.JobStatusRunning || job.Status == models.JobStatusQueued {
			continue
		}
		if ShouldTrigger(e.expr, job.LastRunAt, now) {
			if s.runner.Trigger(jobID) {
				s.logger.Debug().Str("job_id", jobID).Msg("job triggered")
			}
		}
	}
}
