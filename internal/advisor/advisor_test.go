package advisor

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
)

func newTestAdvisor(t *testing.T) (*Advisor, store.SuggestionStore) {
	t.Helper()
	suggestions := store.NewMemorySuggestionStore()
	return New(suggestions, DefaultThresholds(), zerolog.Nop()), suggestions
}

func jobWithMetrics(metrics models.JobMetrics, schedule string) models.Job {
	return models.Job{
		ID:       "job-1",
		Name:     "listings-sync",
		Schedule: schedule,
		Metrics:  metrics,
	}
}

func ofType(list []models.OptimizationSuggestion, kind models.SuggestionType) []models.OptimizationSuggestion {
	out := make([]models.OptimizationSuggestion, 0)
	for _, s := range list {
		if s.Type == kind {
			out = append(out, s)
		}
	}
	return out
}

func TestLowSuccessRateSuggestsRetry(t *testing.T) {
	adv, suggestions := newTestAdvisor(t)

	job := jobWithMetrics(models.JobMetrics{TotalRuns: 10, SuccessRate: 0.5}, "")
	adv.OnRunCompleted(job, models.JobRun{})

	got := ofType(suggestions.ListByJob("job-1"), models.SuggestionTypeRetry)
	require.Len(t, got, 1)
	assert.Equal(t, models.SuggestionSeverityHigh, got[0].Severity)
	assert.Equal(t, models.SuggestionStatusNew, got[0].Status)
}

func TestFewRunsStaysQuiet(t *testing.T) {
	adv, suggestions := newTestAdvisor(t)

	// Two runs is too little history for success-rate advice.
	job := jobWithMetrics(models.JobMetrics{TotalRuns: 2, SuccessRate: 0.0}, "")
	adv.OnRunCompleted(job, models.JobRun{})

	assert.Empty(t, suggestions.List())
}

func TestSlowRunSuggestsBatching(t *testing.T) {
	adv, suggestions := newTestAdvisor(t)

	job := jobWithMetrics(models.JobMetrics{TotalRuns: 1, SuccessRate: 1, LastDurationMs: 10 * 60 * 1000}, "")
	adv.OnRunCompleted(job, models.JobRun{})

	assert.Len(t, ofType(suggestions.ListByJob("job-1"), models.SuggestionTypeBatching), 1)
}

func TestLargeWorkingSetSuggestsStreaming(t *testing.T) {
	adv, suggestions := newTestAdvisor(t)

	job := jobWithMetrics(models.JobMetrics{TotalRuns: 1, SuccessRate: 1, MemoryEstimateKB: 512 * 1024}, "")
	adv.OnRunCompleted(job, models.JobRun{})

	assert.Len(t, ofType(suggestions.ListByJob("job-1"), models.SuggestionTypeStreaming), 1)
}

func TestFrequentSmallRunsSuggestConsolidation(t *testing.T) {
	adv, suggestions := newTestAdvisor(t)

	job := jobWithMetrics(models.JobMetrics{TotalRuns: 3, SuccessRate: 1, RecordsProcessed: 7}, "*/5 * * * *")
	adv.OnRunCompleted(job, models.JobRun{})

	assert.Len(t, ofType(suggestions.ListByJob("job-1"), models.SuggestionTypeConsolidate), 1)
}

func TestIdleFrequentScheduleSuggestsSlowdown(t *testing.T) {
	adv, suggestions := newTestAdvisor(t)

	job := jobWithMetrics(models.JobMetrics{TotalRuns: 8, SuccessRate: 1, RecordsProcessed: 0}, "*/10 * * * *")
	adv.OnRunCompleted(job, models.JobRun{})

	assert.Len(t, ofType(suggestions.ListByJob("job-1"), models.SuggestionTypeIdleSchedule), 1)
}

func TestHourlyScheduleGetsNoCadenceAdvice(t *testing.T) {
	adv, suggestions := newTestAdvisor(t)

	job := jobWithMetrics(models.JobMetrics{TotalRuns: 3, SuccessRate: 1, RecordsProcessed: 7}, "0 * * * *")
	adv.OnRunCompleted(job, models.JobRun{})

	assert.Empty(t, ofType(suggestions.ListByJob("job-1"), models.SuggestionTypeConsolidate))
}

func TestOpenSuggestionSuppressesDuplicates(t *testing.T) {
	adv, suggestions := newTestAdvisor(t)
	job := jobWithMetrics(models.JobMetrics{TotalRuns: 10, SuccessRate: 0.5}, "")

	adv.OnRunCompleted(job, models.JobRun{})
	adv.OnRunCompleted(job, models.JobRun{})
	adv.OnRunCompleted(job, models.JobRun{})

	assert.Len(t, ofType(suggestions.ListByJob("job-1"), models.SuggestionTypeRetry), 1)
}

func TestDismissedSuggestionCanRecur(t *testing.T) {
	adv, suggestions := newTestAdvisor(t)
	job := jobWithMetrics(models.JobMetrics{TotalRuns: 10, SuccessRate: 0.5}, "")

	adv.OnRunCompleted(job, models.JobRun{})
	existing := ofType(suggestions.ListByJob("job-1"), models.SuggestionTypeRetry)
	require.Len(t, existing, 1)

	_, err := suggestions.Update(existing[0].ID, func(s *models.OptimizationSuggestion) {
		s.Status = models.SuggestionStatusDismissed
	})
	require.NoError(t, err)

	adv.OnRunCompleted(job, models.JobRun{})
	assert.Len(t, ofType(suggestions.ListByJob("job-1"), models.SuggestionTypeRetry), 2)
}

func TestAdvisorSurvivesPanickingStore(t *testing.T) {
	adv := New(panickyStore{}, DefaultThresholds(), zerolog.Nop())
	job := jobWithMetrics(models.JobMetrics{TotalRuns: 10, SuccessRate: 0.5}, "")

	assert.NotPanics(t, func() {
		adv.OnRunCompleted(job, models.JobRun{})
	})
}

type panickyStore struct{}

func (panickyStore) List() []models.OptimizationSuggestion { panic("store down") }

func (panickyStore) ListByJob(string) []models.OptimizationSuggestion { panic("store down") }

func (panickyStore) GetByID(string) (models.OptimizationSuggestion, error) {
	panic("store down")
}
func (panickyStore) Create(models.OptimizationSuggestion) models.OptimizationSuggestion {
	panic("store down")
}

func (panickyStore) Update(string, func(*models.OptimizationSuggestion)) (models.OptimizationSuggestion, error) {
	panic("store down")
}

func (panickyStore) Delete(string) bool { panic("store down") }
