package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu       sync.Mutex
	sent     []string
	attempts map[string]int
	failFor  map[string]int // alert id -> attempts that fail; -1 fails forever
}

func newFakeSink() *fakeSink {
	return &fakeSink{attempts: make(map[string]int), failFor: make(map[string]int)}
}

func (f *fakeSink) Send(_ context.Context, _ int64, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[message]++
	limit, ok := f.failFor[message]
	if ok && (limit < 0 || f.attempts[message] <= limit) {
		return fmt.Errorf("sink unavailable")
	}
	f.sent = append(f.sent, message)
	return nil
}

type fakeAlertStore struct {
	mu       sync.Mutex
	statuses map[string][]Status
	deleted  map[string]bool
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{statuses: make(map[string][]Status), deleted: make(map[string]bool)}
}

func (f *fakeAlertStore) ListActiveAlerts(context.Context) ([]Alert, error) { return nil, nil }

func (f *fakeAlertStore) SetAlertStatus(_ context.Context, id string, status Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = append(f.statuses[id], status)
	return nil
}

func (f *fakeAlertStore) DeleteAlert(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[id] = true
	return nil
}

// render by alert id so the sink can target failures per event.
func renderID(event TriggerEvent) string { return event.Alert.ID }

func fastOptions(retries int) DispatcherOptions {
	return DispatcherOptions{
		MaxRetries:    retries,
		CallTimeout:   time.Second,
		MaxConcurrent: 2,
		BackoffMin:    time.Millisecond,
		BackoffMax:    2 * time.Millisecond,
	}
}

func mkEvent(id string) TriggerEvent {
	return TriggerEvent{
		Alert:  mkAlert(id, "pool-1", "2.00", DirectionAbove, StatusActive),
		Sample: mkSample("pool-1", "2.05"),
		Cycle:  1,
	}
}

func TestDispatchFailureIsolation(t *testing.T) {
	sink := newFakeSink()
	sink.failFor["a2"] = -1
	store := newFakeAlertStore()

	dispatcher := NewDispatcher(sink, store, renderID, fastOptions(3), zerolog.Nop())
	results := dispatcher.Dispatch(context.Background(), []TriggerEvent{mkEvent("a1"), mkEvent("a2"), mkEvent("a3")})

	require.Len(t, results, 3)
	assert.True(t, results[0].Delivered)
	assert.False(t, results[1].Delivered)
	assert.Error(t, results[1].Err)
	assert.True(t, results[2].Delivered)

	// delivered alerts are marked triggered then deleted
	assert.Equal(t, []Status{StatusTriggered}, store.statuses["a1"])
	assert.True(t, store.deleted["a1"])
	assert.Equal(t, []Status{StatusTriggered}, store.statuses["a3"])
	assert.True(t, store.deleted["a3"])

	// the failed alert stays active for the next cycle
	assert.Empty(t, store.statuses["a2"])
	assert.False(t, store.deleted["a2"])
}

func TestDispatchRetriesTransientFailure(t *testing.T) {
	sink := newFakeSink()
	sink.failFor["a1"] = 2
	store := newFakeAlertStore()

	dispatcher := NewDispatcher(sink, store, renderID, fastOptions(3), zerolog.Nop())
	results := dispatcher.Dispatch(context.Background(), []TriggerEvent{mkEvent("a1")})

	require.Len(t, results, 1)
	assert.True(t, results[0].Delivered)
	assert.Equal(t, 3, results[0].Attempts)
	assert.True(t, store.deleted["a1"])
}

func TestDispatchExhaustsRetries(t *testing.T) {
	sink := newFakeSink()
	sink.failFor["a1"] = -1
	store := newFakeAlertStore()

	dispatcher := NewDispatcher(sink, store, renderID, fastOptions(2), zerolog.Nop())
	results := dispatcher.Dispatch(context.Background(), []TriggerEvent{mkEvent("a1")})

	require.Len(t, results, 1)
	assert.False(t, results[0].Delivered)
	assert.Equal(t, 2, results[0].Attempts)
	assert.Equal(t, 2, sink.attempts["a1"])
	assert.Empty(t, store.statuses["a1"])
}

func TestDispatchResultsKeepInputOrder(t *testing.T) {
	sink := newFakeSink()
	dispatcher := NewDispatcher(sink, newFakeAlertStore(), renderID, fastOptions(1), zerolog.Nop())

	events := []TriggerEvent{mkEvent("a1"), mkEvent("a2"), mkEvent("a3"), mkEvent("a4")}
	results := dispatcher.Dispatch(context.Background(), events)

	require.Len(t, results, 4)
	for i, res := range results {
		assert.Equal(t, events[i].Alert.ID, res.Event.Alert.ID)
	}
}

func TestDispatchNilStore(t *testing.T) {
	sink := newFakeSink()
	dispatcher := NewDispatcher(sink, nil, renderID, fastOptions(1), zerolog.Nop())

	results := dispatcher.Dispatch(context.Background(), []TriggerEvent{mkEvent("a1")})
	require.Len(t, results, 1)
	assert.True(t, results[0].Delivered)
}
