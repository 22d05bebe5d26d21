package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerCyclesNeverOverlap(t *testing.T) {
	var inFlight atomic.Int32
	var maxInFlight atomic.Int32
	var executed atomic.Int32

	cycle := func(ctx context.Context, seq uint64) error {
		current := inFlight.Add(1)
		if current > maxInFlight.Load() {
			maxInFlight.Store(current)
		}
		time.Sleep(50 * time.Millisecond) // overruns the 20ms interval
		inFlight.Add(-1)
		executed.Add(1)
		return nil
	}

	s := New(20*time.Millisecond, zerolog.Nop())
	require.NoError(t, s.Start(context.Background(), cycle))
	time.Sleep(250 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), maxInFlight.Load(), "cycles must never run concurrently")
	// At 50ms per cycle only ~4-5 fit in 250ms; without skipping, 20ms ticks
	// would have queued far more.
	assert.LessOrEqual(t, executed.Load(), int32(6), "overlapping ticks must be skipped, not queued")
	assert.GreaterOrEqual(t, executed.Load(), int32(2))
}

func TestSchedulerStopDrainsInFlightCycle(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool

	cycle := func(ctx context.Context, seq uint64) error {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(60 * time.Millisecond)
		finished.Store(true)
		return nil
	}

	s := New(10*time.Millisecond, zerolog.Nop())
	require.NoError(t, s.Start(context.Background(), cycle))

	<-started
	s.Stop()

	assert.True(t, finished.Load(), "Stop must not return before the in-flight cycle completes")
	assert.False(t, s.Running())
}

func TestSchedulerStartWhileRunning(t *testing.T) {
	s := New(10*time.Millisecond, zerolog.Nop())
	noop := func(ctx context.Context, seq uint64) error { return nil }

	require.NoError(t, s.Start(context.Background(), noop))
	assert.ErrorIs(t, s.Start(context.Background(), noop), ErrAlreadyRunning)
	s.Stop()

	// stopped -> running -> stopped; a fresh Start is valid again
	require.NoError(t, s.Start(context.Background(), noop))
	s.Stop()
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := New(10*time.Millisecond, zerolog.Nop())
	s.Stop() // never started

	require.NoError(t, s.Start(context.Background(), func(ctx context.Context, seq uint64) error { return nil }))
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestSchedulerSequenceIncreases(t *testing.T) {
	var last atomic.Uint64
	var monotonic atomic.Bool
	monotonic.Store(true)

	cycle := func(ctx context.Context, seq uint64) error {
		if seq != last.Load()+1 {
			monotonic.Store(false)
		}
		last.Store(seq)
		return nil
	}

	s := New(10*time.Millisecond, zerolog.Nop())
	require.NoError(t, s.Start(context.Background(), cycle))
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.True(t, monotonic.Load())
	assert.GreaterOrEqual(t, last.Load(), uint64(3))
}
