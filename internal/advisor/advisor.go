// Package advisor inspects run history and metrics and produces advisory
// optimization suggestions. It never mutates jobs and never blocks or
// fails the pipeline.
package advisor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
)

// Thresholds tune when the advisor speaks up.
type Thresholds struct {
	// Runs required before success-rate advice is meaningful.
	MinRuns int
	// Below this success rate, suggest retry logic.
	SuccessRate float64
	// Above this duration, suggest batching.
	SlowRunMs int64
	// Above this working-set estimate, suggest streaming.
	MemoryKB int64
	// A */n schedule at or below this cadence counts as frequent.
	FrequentMinutes int
	// Below this record count a run counts as small.
	SmallRunRecords int64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinRuns:     5,
		SuccessRate: 0.8,
		SlowRunMs:   5 * 60 * 1000,
		MemoryKB:    256 * 1024,

		FrequentMinutes: 15,
		SmallRunRecords: 50,
	}
}

type Advisor struct {
	suggestions store.SuggestionStore
	thresholds  Thresholds
	logger      zerolog.Logger
}

func New(suggestions store.SuggestionStore, thresholds Thresholds, logger zerolog.Logger) *Advisor {
	if thresholds.MinRuns <= 0 {
		thresholds = DefaultThresholds()
	}
	return &Advisor{
		suggestions: suggestions,
		thresholds:  thresholds,
		logger:      logger.With().Str("component", "advisor").Logger(),
	}
}

// OnRunCompleted derives suggestions from the job's refreshed metrics.
// Any failure in here is swallowed and logged; advice must never surface
// as a pipeline or scheduler error.
func (a *Advisor) OnRunCompleted(job models.Job, run models.JobRun) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error().Interface("panic", rec).Str("job_id", job.ID).Msg("advisor check panicked")
		}
	}()

	metrics := job.Metrics

	if metrics.TotalRuns >= a.thresholds.MinRuns && metrics.SuccessRate < a.thresholds.SuccessRate {
		a.suggest(models.OptimizationSuggestion{
			JobID:    job.ID,
			Type:     models.SuggestionTypeRetry,
			Severity: models.SuggestionSeverityHigh,
			Title:    "Low success rate",
			Description: fmt.Sprintf("Job %q succeeded in %.0f%% of its last %d runs.",
				job.Name, metrics.SuccessRate*100, metrics.TotalRuns),
			SuggestedAction:    "Add retry logic around the extract and load stages, or fix the failing data source.",
			EstimatedMetric:    "success_rate",
			EstimatedImprovePc: (a.thresholds.SuccessRate - metrics.SuccessRate) * 100,
			Complexity:         "medium",
		})
	}

	if metrics.LastDurationMs > a.thresholds.SlowRunMs {
		a.suggest(models.OptimizationSuggestion{
			JobID:    job.ID,
			Type:     models.SuggestionTypeBatching,
			Severity: models.SuggestionSeverityMedium,
			Title:    "Slow run",
			Description: fmt.Sprintf("The last run of %q took %.1f minutes for %d records.",
				job.Name, float64(metrics.LastDurationMs)/60000, metrics.RecordsProcessed),
			SuggestedAction: "Split the extract into smaller batches or narrow the extract query.",
			EstimatedMetric: "duration",
			Complexity:      "medium",
		})
	}

	if metrics.MemoryEstimateKB > a.thresholds.MemoryKB {
		a.suggest(models.OptimizationSuggestion{
			JobID:    job.ID,
			Type:     models.SuggestionTypeStreaming,
			Severity: models.SuggestionSeverityMedium,
			Title:    "Large working set",
			Description: fmt.Sprintf("Job %q holds roughly %d MB of records in memory per run.",
				job.Name, metrics.MemoryEstimateKB/1024),
			SuggestedAction: "Stream records through the pipeline instead of materializing the whole batch.",
			EstimatedMetric: "memory",
			Complexity:      "high",
		})
	}

	if cadence, ok := scheduleCadenceMinutes(job.Schedule); ok && cadence <= a.thresholds.FrequentMinutes {
		switch {
		case metrics.TotalRuns >= a.thresholds.MinRuns && metrics.RecordsProcessed == 0:
			a.suggest(models.OptimizationSuggestion{
				JobID:    job.ID,
				Type:     models.SuggestionTypeIdleSchedule,
				Severity: models.SuggestionSeverityLow,
				Title:    "Schedule runs against an idle source",
				Description: fmt.Sprintf("Job %q fires every %d minutes but its recent runs processed no records.",
					job.Name, cadence),
				SuggestedAction: "Slow the schedule down, or disable the job until the source produces data.",
				EstimatedMetric: "runs",
				Complexity:      "low",
			})
		case metrics.RecordsProcessed > 0 && int64(metrics.RecordsProcessed) < a.thresholds.SmallRunRecords:
			a.suggest(models.OptimizationSuggestion{
				JobID:    job.ID,
				Type:     models.SuggestionTypeConsolidate,
				Severity: models.SuggestionSeverityLow,
				Title:    "Frequent schedule, small batches",
				Description: fmt.Sprintf("Job %q fires every %d minutes but moved only %d records last run.",
					job.Name, cadence, metrics.RecordsProcessed),
				SuggestedAction: "Widen the schedule interval so each run handles a fuller batch.",
				EstimatedMetric: "runs",
				Complexity:      "low",
			})
		}
	}
}

// scheduleCadenceMinutes reads the effective cadence out of a */n minute
// field. Schedules outside that dialect report no cadence.
func scheduleCadenceMinutes(expr string) (int, bool) {
	fields := strings.Fields(expr)
	if len(fields) != 5 || !strings.HasPrefix(fields[0], "*/") {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0][2:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// suggest creates the suggestion unless an open one of the same type
// already exists for the job.
func (a *Advisor) suggest(s models.OptimizationSuggestion) {
	for _, existing := range a.suggestions.ListByJob(s.JobID) {
		if existing.Type != s.Type {
			continue
		}
		if existing.Status == models.SuggestionStatusNew || existing.Status == models.SuggestionStatusInProgress {
			return
		}
	}
	created := a.suggestions.Create(s)
	a.logger.Info().
		Str("job_id", s.JobID).
		Str("suggestion_id", created.ID).
		Str("type", string(s.Type)).
		Msg("optimization suggestion created")
}
