// Package alerts is the central notification log: typed, append-only,
// with read/unread state and synchronous fan-out to subscribers.
package alerts

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
)

// Listener receives every published alert. Listeners run synchronously on
// the publisher's goroutine and should return quickly.
type Listener func(alert models.Alert)

// Archiver mirrors alerts into long-term storage. Optional.
type Archiver interface {
	SaveAlert(ctx context.Context, alert models.Alert)
}

// Hub assigns identity and timestamps on publish, appends to the alert
// store, and fans out to subscribers in subscription order. A subscriber
// that panics is isolated; the remaining subscribers still receive the
// alert.
type Hub struct {
	store   store.AlertStore
	archive Archiver
	logger  zerolog.Logger

	// mu serializes publishes so alert A reaches every subscriber before
	// alert B reaches any. It also guards the subscriber list.
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id       int
	listener Listener
}

func NewHub(s store.AlertStore, archive Archiver, logger zerolog.Logger) *Hub {
	return &Hub{
		store:   s,
		archive: archive,
		logger:  logger.With().Str("component", "alerts").Logger(),
	}
}

// Publish appends the alert and delivers it to every subscriber. The alert
// comes back with its assigned id and timestamp.
func (h *Hub) Publish(alert models.Alert) models.Alert {
	if alert.Type == "" {
		alert.Type = models.AlertTypeInfo
	}

	h.mu.Lock()
	created := h.store.Create(alert)
	for _, sub := range h.subs {
		h.deliver(sub, created)
	}
	h.mu.Unlock()

	// The archive mirror runs outside the lock; a slow insert must not
	// stall other publishers.
	h.archiveAlert(created)
	return created
}

// deliver isolates one subscriber's panic from the rest of the fan-out.
func (h *Hub) deliver(sub subscription, alert models.Alert) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error().
				Interface("panic", rec).
				Int("subscriber", sub.id).
				Str("alert_id", alert.ID).
				Msg("alert subscriber panicked")
		}
	}()
	sub.listener(alert)
}

func (h *Hub) archiveAlert(alert models.Alert) {
	if h.archive == nil {
		return
	}
	h.archive.SaveAlert(context.Background(), alert)
}

// Subscribe registers a listener and returns its unsubscribe handle.
func (h *Hub) Subscribe(listener Listener) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscription{id: id, listener: listener})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, sub := range h.subs {
			if sub.id == id {
				h.subs = append(h.subs[:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

// List returns alerts newest-first.
func (h *Hub) List(filter store.AlertFilter) []models.Alert {
	return h.store.List(filter)
}

// MarkRead flips the only mutable bit on an alert.
func (h *Hub) MarkRead(id string) (models.Alert, error) {
	return h.store.MarkRead(id)
}

func (h *Hub) UnreadCount() int {
	return h.store.UnreadCount()
}

// Error publishes an error alert for a job.
func (h *Hub) Error(jobID, message string, details map[string]interface{}) models.Alert {
	return h.Publish(models.Alert{JobID: jobID, Type: models.AlertTypeError, Message: message, Details: details})
}

// Warning publishes a warning alert for a job.
func (h *Hub) Warning(jobID, message string, details map[string]interface{}) models.Alert {
	return h.Publish(models.Alert{JobID: jobID, Type: models.AlertTypeWarning, Message: message, Details: details})
}

// Success publishes a success alert for a job.
func (h *Hub) Success(jobID, message string, details map[string]interface{}) models.Alert {
	return h.Publish(models.Alert{JobID: jobID, Type: models.AlertTypeSuccess, Message: message, Details: details})
}

// Info publishes a system-level info alert when jobID is empty.
func (h *Hub) Info(jobID, message string, details map[string]interface{}) models.Alert {
	return h.Publish(models.Alert{JobID: jobID, Type: models.AlertTypeInfo, Message: message, Details: details})
}
