package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CycleFunc runs one poll-evaluate-dispatch pass. seq increases by one per
// executed cycle.
type CycleFunc func(ctx context.Context, seq uint64) error

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("scheduler: already running")

// Scheduler drives the engine on a fixed interval. Cycles run inline in the
// loop goroutine so they can never overlap; a tick that falls due while a
// cycle is still running is skipped, not queued.
type Scheduler struct {
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs a Scheduler instance.
func New(interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{interval: interval, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Start begins the loop. It returns immediately; the loop stops when Stop
// is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, cycle CycleFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(loopCtx, cycle)
	return nil
}

// Stop requests cooperative cancellation and blocks until the in-flight
// cycle, if any, has completed and the loop has quiesced. Stopping a
// stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, cycle CycleFunc) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Uint64("cycles", seq).Msg("scheduler stopped")
			return
		case <-ticker.C:
		}

		seq++
		started := time.Now()
		s.logger.Debug().Uint64("cycle", seq).Msg("executing cycle")

		if err := cycle(ctx, seq); err != nil {
			s.logger.Error().Err(err).Uint64("cycle", seq).Msg("cycle failed")
		}

		elapsed := time.Since(started)
		if elapsed > s.interval {
			s.logger.Warn().Uint64("cycle", seq).Dur("elapsed", elapsed).Msg("cycle overran interval; skipping pending tick")
		}
		drainPending(ticker)
	}
}

// drainPending discards the tick, if any, that accumulated while the cycle
// ran. time.Ticker buffers at most one.
func drainPending(ticker *time.Ticker) {
	select {
	case <-ticker.C:
	default:
	}
}
