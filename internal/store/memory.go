package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/propflow/etl-api/internal/models"
)

// cloneable constrains collection elements to value types that can produce
// an independent copy. Every model with reference fields implements it.
type cloneable[T any] interface {
	Clone() T
}

// collection is the shared mutex-guarded map behind every memory store.
// Insertion order is preserved so listings are deterministic.
type collection[T cloneable[T]] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

func newCollection[T cloneable[T]]() *collection[T] {
	return &collection[T]{items: make(map[string]T)}
}

func (c *collection[T]) insert(id string, item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[id]; !exists {
		c.order = append(c.order, id)
	}
	c.items[id] = item.Clone()
}

func (c *collection[T]) get(id string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return item.Clone(), nil
}

func (c *collection[T]) update(id string, mutate func(*T)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	next := item.Clone()
	mutate(&next)
	c.items[id] = next
	return next.Clone(), nil
}

func (c *collection[T]) delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *collection[T]) list() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id].Clone())
	}
	return out
}

// --- DataSource ---

type memoryDataSourceStore struct{ col *collection[models.DataSource] }

func NewMemoryDataSourceStore() DataSourceStore {
	return &memoryDataSourceStore{col: newCollection[models.DataSource]()}
}

func (s *memoryDataSourceStore) List() []models.DataSource { return s.col.list() }

func (s *memoryDataSourceStore) GetByID(id string) (models.DataSource, error) {
	return s.col.get(id)
}

func (s *memoryDataSourceStore) Create(ds models.DataSource) models.DataSource {
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	now := time.Now()
	ds.CreatedAt = now
	ds.UpdatedAt = now
	s.col.insert(ds.ID, ds)
	return ds
}

func (s *memoryDataSourceStore) Update(id string, mutate func(*models.DataSource)) (models.DataSource, error) {
	return s.col.update(id, func(ds *models.DataSource) {
		mutate(ds)
		ds.UpdatedAt = time.Now()
	})
}

func (s *memoryDataSourceStore) Delete(id string) bool { return s.col.delete(id) }

// --- TransformationRule ---

type memoryRuleStore struct{ col *collection[models.TransformationRule] }

func NewMemoryRuleStore() RuleStore {
	return &memoryRuleStore{col: newCollection[models.TransformationRule]()}
}

func (s *memoryRuleStore) List() []models.TransformationRule { return s.col.list() }

func (s *memoryRuleStore) GetByID(id string) (models.TransformationRule, error) {
	return s.col.get(id)
}

func (s *memoryRuleStore) Create(rule models.TransformationRule) models.TransformationRule {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.col.insert(rule.ID, rule)
	return rule
}

func (s *memoryRuleStore) Update(id string, mutate func(*models.TransformationRule)) (models.TransformationRule, error) {
	return s.col.update(id, func(rule *models.TransformationRule) {
		mutate(rule)
		rule.UpdatedAt = time.Now()
	})
}

func (s *memoryRuleStore) Delete(id string) bool { return s.col.delete(id) }

// --- Job ---

type memoryJobStore struct{ col *collection[models.Job] }

func NewMemoryJobStore() JobStore {
	return &memoryJobStore{col: newCollection[models.Job]()}
}

func (s *memoryJobStore) List() []models.Job { return s.col.list() }

func (s *memoryJobStore) GetByID(id string) (models.Job, error) { return s.col.get(id) }

func (s *memoryJobStore) Create(job models.Job) models.Job {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusCreated
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	s.col.insert(job.ID, job)
	return job
}

func (s *memoryJobStore) Update(id string, mutate func(*models.Job)) (models.Job, error) {
	return s.col.update(id, func(job *models.Job) {
		mutate(job)
		job.UpdatedAt = time.Now()
	})
}

func (s *memoryJobStore) Delete(id string) bool { return s.col.delete(id) }

// --- JobRun ---

type memoryRunStore struct{ col *collection[models.JobRun] }

func NewMemoryRunStore() RunStore {
	return &memoryRunStore{col: newCollection[models.JobRun]()}
}

func (s *memoryRunStore) List(limit int) []models.JobRun {
	runs := s.col.list()
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}

func (s *memoryRunStore) ListByJob(jobID string, limit int) []models.JobRun {
	all := s.List(0)
	out := make([]models.JobRun, 0)
	for _, run := range all {
		if run.JobID == jobID {
			out = append(out, run)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

func (s *memoryRunStore) GetByID(id string) (models.JobRun, error) { return s.col.get(id) }

func (s *memoryRunStore) Create(run models.JobRun) models.JobRun {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	s.col.insert(run.ID, run)
	return run
}

func (s *memoryRunStore) Update(id string, mutate func(*models.JobRun)) (models.JobRun, error) {
	return s.col.update(id, mutate)
}

func (s *memoryRunStore) Delete(id string) bool { return s.col.delete(id) }

// --- BatchJob ---

type memoryBatchStore struct{ col *collection[models.BatchJob] }

func NewMemoryBatchStore() BatchStore {
	return &memoryBatchStore{col: newCollection[models.BatchJob]()}
}

func (s *memoryBatchStore) List() []models.BatchJob { return s.col.list() }

func (s *memoryBatchStore) GetByID(id string) (models.BatchJob, error) { return s.col.get(id) }

func (s *memoryBatchStore) Create(batch models.BatchJob) models.BatchJob {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.Status == "" {
		batch.Status = models.JobStatusCreated
	}
	now := time.Now()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	s.col.insert(batch.ID, batch)
	return batch
}

func (s *memoryBatchStore) Update(id string, mutate func(*models.BatchJob)) (models.BatchJob, error) {
	return s.col.update(id, func(batch *models.BatchJob) {
		mutate(batch)
		batch.UpdatedAt = time.Now()
	})
}

func (s *memoryBatchStore) Delete(id string) bool { return s.col.delete(id) }

// --- Alert ---

type memoryAlertStore struct{ col *collection[models.Alert] }

func NewMemoryAlertStore() AlertStore {
	return &memoryAlertStore{col: newCollection[models.Alert]()}
}

func (s *memoryAlertStore) List(filter AlertFilter) []models.Alert {
	all := s.col.list()
	out := make([]models.Alert, 0, len(all))
	// Reverse insertion order: newest first.
	for i := len(all) - 1; i >= 0; i-- {
		alert := all[i]
		if filter.JobID != "" && alert.JobID != filter.JobID {
			continue
		}
		if filter.Type != "" && alert.Type != filter.Type {
			continue
		}
		if filter.UnreadOnly && alert.IsRead {
			continue
		}
		out = append(out, alert)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

func (s *memoryAlertStore) GetByID(id string) (models.Alert, error) { return s.col.get(id) }

func (s *memoryAlertStore) Create(alert models.Alert) models.Alert {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	s.col.insert(alert.ID, alert)
	return alert
}

func (s *memoryAlertStore) MarkRead(id string) (models.Alert, error) {
	return s.col.update(id, func(alert *models.Alert) {
		alert.IsRead = true
	})
}

func (s *memoryAlertStore) UnreadCount() int {
	count := 0
	for _, alert := range s.col.list() {
		if !alert.IsRead {
			count++
		}
	}
	return count
}

func (s *memoryAlertStore) Delete(id string) bool { return s.col.delete(id) }

// --- OptimizationSuggestion ---

type memorySuggestionStore struct{ col *collection[models.OptimizationSuggestion] }

func NewMemorySuggestionStore() SuggestionStore {
	return &memorySuggestionStore{col: newCollection[models.OptimizationSuggestion]()}
}

func (s *memorySuggestionStore) List() []models.OptimizationSuggestion { return s.col.list() }

func (s *memorySuggestionStore) ListByJob(jobID string) []models.OptimizationSuggestion {
	out := make([]models.OptimizationSuggestion, 0)
	for _, sg := range s.col.list() {
		if sg.JobID == jobID {
			out = append(out, sg)
		}
	}
	return out
}

func (s *memorySuggestionStore) GetByID(id string) (models.OptimizationSuggestion, error) {
	return s.col.get(id)
}

func (s *memorySuggestionStore) Create(sg models.OptimizationSuggestion) models.OptimizationSuggestion {
	if sg.ID == "" {
		sg.ID = uuid.NewString()
	}
	if sg.Status == "" {
		sg.Status = models.SuggestionStatusNew
	}
	now := time.Now()
	sg.CreatedAt = now
	sg.UpdatedAt = now
	s.col.insert(sg.ID, sg)
	return sg
}

func (s *memorySuggestionStore) Update(id string, mutate func(*models.OptimizationSuggestion)) (models.OptimizationSuggestion, error) {
	return s.col.update(id, func(sg *models.OptimizationSuggestion) {
		mutate(sg)
		sg.UpdatedAt = time.Now()
	})
}

func (s *memorySuggestionStore) Delete(id string) bool { return s.col.delete(id) }
