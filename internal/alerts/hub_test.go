package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/store"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(store.NewMemoryAlertStore(), nil, zerolog.Nop())
}

func TestPublishAssignsIdentity(t *testing.T) {
	hub := newTestHub(t)

	alert := hub.Error("job-1", "extract failed", map[string]interface{}{"run_id": "r-1"})

	assert.NotEmpty(t, alert.ID)
	assert.False(t, alert.CreatedAt.IsZero())
	assert.Equal(t, models.AlertTypeError, alert.Type)
	assert.False(t, alert.IsRead)
}

func TestPublishDefaultsToInfo(t *testing.T) {
	hub := newTestHub(t)
	alert := hub.Publish(models.Alert{Message: "engine started"})
	assert.Equal(t, models.AlertTypeInfo, alert.Type)
}

func TestSubscribersSeeAlertsInPublishOrder(t *testing.T) {
	hub := newTestHub(t)

	var mu sync.Mutex
	first := make([]string, 0)
	second := make([]string, 0)
	hub.Subscribe(func(a models.Alert) {
		mu.Lock()
		defer mu.Unlock()
		first = append(first, a.Message)
	})
	hub.Subscribe(func(a models.Alert) {
		mu.Lock()
		defer mu.Unlock()
		second = append(second, a.Message)
	})

	var wg sync.WaitGroup
	for _, msg := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(msg string) {
			defer wg.Done()
			hub.Info("job-1", msg, nil)
		}(msg)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	// Concurrent publishes may land in any order, but every subscriber
	// observes the same order.
	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

func TestPanickingSubscriberIsIsolated(t *testing.T) {
	hub := newTestHub(t)

	var got []string
	hub.Subscribe(func(a models.Alert) { panic("bad subscriber") })
	hub.Subscribe(func(a models.Alert) { got = append(got, a.Message) })

	hub.Info("job-1", "still delivered", nil)

	require.Len(t, got, 1)
	assert.Equal(t, "still delivered", got[0])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := newTestHub(t)

	var got int
	unsubscribe := hub.Subscribe(func(a models.Alert) { got++ })

	hub.Info("job-1", "one", nil)
	unsubscribe()
	hub.Info("job-1", "two", nil)

	assert.Equal(t, 1, got)
}

func TestListNewestFirstWithFilters(t *testing.T) {
	hub := newTestHub(t)

	hub.Success("job-1", "first", nil)
	hub.Error("job-2", "second", nil)
	hub.Error("job-1", "third", nil)

	all := hub.List(store.AlertFilter{})
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Message)
	assert.Equal(t, "first", all[2].Message)

	job1 := hub.List(store.AlertFilter{JobID: "job-1"})
	assert.Len(t, job1, 2)

	errs := hub.List(store.AlertFilter{Type: models.AlertTypeError})
	assert.Len(t, errs, 2)

	limited := hub.List(store.AlertFilter{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, "third", limited[0].Message)
}

// gatedArchiver stalls its first save until the gate opens; later saves
// return immediately.
type gatedArchiver struct {
	gate chan struct{}

	mu    sync.Mutex
	calls int
}

func (a *gatedArchiver) SaveAlert(_ context.Context, _ models.Alert) {
	a.mu.Lock()
	a.calls++
	first := a.calls == 1
	a.mu.Unlock()
	if first {
		<-a.gate
	}
}

func TestSlowArchiveDoesNotStallOtherPublishers(t *testing.T) {
	arch := &gatedArchiver{gate: make(chan struct{})}
	hub := NewHub(store.NewMemoryAlertStore(), arch, zerolog.Nop())

	var mu sync.Mutex
	var delivered []string
	hub.Subscribe(func(a models.Alert) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, a.Message)
	})

	done := make(chan struct{})
	go func() {
		hub.Publish(models.Alert{Message: "first"})
		close(done)
	}()

	// The first publish is parked in its archive write. Fan-out and the
	// store append must already be visible, and a second publisher must
	// get through.
	require.Eventually(t, func() bool { return hub.UnreadCount() == 1 }, time.Second, time.Millisecond)
	hub.Publish(models.Alert{Message: "second"})

	mu.Lock()
	assert.Equal(t, []string{"first", "second"}, delivered)
	mu.Unlock()

	close(arch.gate)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first publish never returned")
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	hub := newTestHub(t)

	a := hub.Info("job-1", "one", nil)
	hub.Info("job-1", "two", nil)
	require.Equal(t, 2, hub.UnreadCount())

	read, err := hub.MarkRead(a.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	assert.Equal(t, 1, hub.UnreadCount())

	unread := hub.List(store.AlertFilter{UnreadOnly: true})
	require.Len(t, unread, 1)
	assert.Equal(t, "two", unread[0].Message)

	_, err = hub.MarkRead("missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
