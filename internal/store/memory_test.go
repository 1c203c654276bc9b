package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/etl-api/internal/models"
)

func TestJobStoreCRUD(t *testing.T) {
	jobs := NewMemoryJobStore()

	created := jobs.Create(models.Job{Name: "sync", SourceID: "s", TargetID: "t"})
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.JobStatusCreated, created.Status)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := jobs.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "sync", got.Name)

	updated, err := jobs.Update(created.ID, func(j *models.Job) {
		j.Status = models.JobStatusRunning
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, updated.Status)

	assert.True(t, jobs.Delete(created.ID))
	assert.False(t, jobs.Delete(created.ID))
	_, err = jobs.GetByID(created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUnknownID(t *testing.T) {
	jobs := NewMemoryJobStore()
	_, err := jobs.Update("nope", func(j *models.Job) {})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	jobs := NewMemoryJobStore()
	a := jobs.Create(models.Job{Name: "a"})
	b := jobs.Create(models.Job{Name: "b"})
	c := jobs.Create(models.Job{Name: "c"})

	list := jobs.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestReturnedValuesAreIsolatedCopies(t *testing.T) {
	jobs := NewMemoryJobStore()
	created := jobs.Create(models.Job{Name: "sync", RuleIDs: []string{"r1"}})

	got, err := jobs.GetByID(created.ID)
	require.NoError(t, err)
	got.RuleIDs[0] = "tampered"
	got.Name = "tampered"

	fresh, err := jobs.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "sync", fresh.Name)
	assert.Equal(t, []string{"r1"}, fresh.RuleIDs)
}

func TestRunStoreOrderingAndLimits(t *testing.T) {
	runs := NewMemoryRunStore()
	base := time.Now()

	old := runs.Create(models.JobRun{JobID: "j1", StartedAt: base.Add(-2 * time.Hour)})
	mid := runs.Create(models.JobRun{JobID: "j2", StartedAt: base.Add(-1 * time.Hour)})
	newest := runs.Create(models.JobRun{JobID: "j1", StartedAt: base})

	all := runs.List(0)
	require.Len(t, all, 3)
	assert.Equal(t, newest.ID, all[0].ID)
	assert.Equal(t, old.ID, all[2].ID)

	limited := runs.List(2)
	require.Len(t, limited, 2)
	assert.Equal(t, newest.ID, limited[0].ID)
	assert.Equal(t, mid.ID, limited[1].ID)

	j1 := runs.ListByJob("j1", 0)
	require.Len(t, j1, 2)
	assert.Equal(t, newest.ID, j1[0].ID)

	j1Limited := runs.ListByJob("j1", 1)
	require.Len(t, j1Limited, 1)
	assert.Equal(t, newest.ID, j1Limited[0].ID)
}

func TestAlertStoreFilters(t *testing.T) {
	alerts := NewMemoryAlertStore()

	alerts.Create(models.Alert{JobID: "j1", Type: models.AlertTypeSuccess, Message: "one"})
	second := alerts.Create(models.Alert{JobID: "j2", Type: models.AlertTypeError, Message: "two"})
	alerts.Create(models.Alert{JobID: "j1", Type: models.AlertTypeError, Message: "three"})

	newestFirst := alerts.List(AlertFilter{})
	require.Len(t, newestFirst, 3)
	assert.Equal(t, "three", newestFirst[0].Message)

	byJob := alerts.List(AlertFilter{JobID: "j1"})
	assert.Len(t, byJob, 2)

	byType := alerts.List(AlertFilter{Type: models.AlertTypeError})
	assert.Len(t, byType, 2)

	_, err := alerts.MarkRead(second.ID)
	require.NoError(t, err)
	unread := alerts.List(AlertFilter{UnreadOnly: true})
	assert.Len(t, unread, 2)
	assert.Equal(t, 2, alerts.UnreadCount())
}

func TestSuggestionStoreDefaults(t *testing.T) {
	suggestions := NewMemorySuggestionStore()

	created := suggestions.Create(models.OptimizationSuggestion{
		JobID: "j1",
		Type:  models.SuggestionTypeRetry,
	})
	assert.Equal(t, models.SuggestionStatusNew, created.Status)

	suggestions.Create(models.OptimizationSuggestion{JobID: "j2", Type: models.SuggestionTypeBatching})
	assert.Len(t, suggestions.ListByJob("j1"), 1)
	assert.Len(t, suggestions.List(), 2)
}
