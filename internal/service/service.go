package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/dev-bhaskar8/kekterminal/internal/engine"
	"github.com/dev-bhaskar8/kekterminal/internal/scheduler"
	"github.com/dev-bhaskar8/kekterminal/internal/storage"
)

// Options tune service behaviour outside the engine components.
type Options struct {
	UnhealthyAfter  int
	AdvisoryLockKey int64
	PollInterval    time.Duration
}

// Service orchestrates one monitoring cycle: read active alerts, sample
// pool prices, evaluate thresholds, dispatch notifications, persist
// history. It holds no alert state between cycles beyond what it reads
// fresh from the store.
type Service struct {
	scheduler  *scheduler.Scheduler
	store      engine.AlertStore
	sampler    *engine.Sampler
	dispatcher *engine.Dispatcher
	samples    storage.SampleStore
	locker     storage.AdvisoryLocker
	opts       Options
	logger     zerolog.Logger

	failedCycles atomic.Int64
	degraded     atomic.Bool
}

// New constructs the monitoring service. samples and locker may be nil when
// persistence of history or cross-process locking is not configured.
func New(sched *scheduler.Scheduler, store engine.AlertStore, sampler *engine.Sampler, dispatcher *engine.Dispatcher, samples storage.SampleStore, locker storage.AdvisoryLocker, opts Options, logger zerolog.Logger) *Service {
	if opts.UnhealthyAfter <= 0 {
		opts.UnhealthyAfter = 3
	}
	return &Service{
		scheduler:  sched,
		store:      store,
		sampler:    sampler,
		dispatcher: dispatcher,
		samples:    samples,
		locker:     locker,
		opts:       opts,
		logger:     logger.With().Str("component", "service").Logger(),
	}
}

// Start begins the fixed-interval monitoring loop.
func (s *Service) Start(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Start(ctx, s.RunCycle)
}

// Stop drains the in-flight cycle and quiesces the loop.
func (s *Service) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Healthy reports whether the service is degraded. It flips false after
// UnhealthyAfter consecutive fully-failed cycles and recovers on the next
// successful one.
func (s *Service) Healthy() bool {
	return !s.degraded.Load()
}

// RunCycle executes one poll-evaluate-dispatch pass. Only a store failure
// aborts the cycle; per-pool and per-event failures are isolated inside the
// sampler and dispatcher.
func (s *Service) RunCycle(ctx context.Context, seq uint64) error {
	err := s.runCycle(ctx, seq)
	s.recordOutcome(err)
	return err
}

func (s *Service) runCycle(ctx context.Context, seq uint64) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Uint64("cycle", seq).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	alerts, err := s.store.ListActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("list active alerts: %w", err)
	}
	if len(alerts) == 0 {
		s.logger.Debug().Uint64("cycle", seq).Msg("no active alerts")
		return nil
	}

	pools := lo.Map(alerts, func(a engine.Alert, _ int) string { return a.Pool })
	samples := s.sampler.Sample(ctx, pools)
	s.persistSamples(ctx, samples)

	events := engine.Evaluate(alerts, samples, seq)
	if len(events) == 0 {
		s.logger.Info().Uint64("cycle", seq).
			Int("alerts", len(alerts)).
			Int("pools", len(samples)).
			Msg("cycle complete, nothing triggered")
		return nil
	}

	results := s.dispatcher.Dispatch(ctx, events)

	delivered := 0
	for _, res := range results {
		if res.Delivered {
			delivered++
		}
	}
	s.logger.Info().Uint64("cycle", seq).
		Int("alerts", len(alerts)).
		Int("triggered", len(events)).
		Int("delivered", delivered).
		Int("failed", len(results)-delivered).
		Msg("cycle complete")
	return nil
}

// persistSamples writes this cycle's observations, best effort. Failure
// provenance is stored alongside prices so history shows the gaps.
func (s *Service) persistSamples(ctx context.Context, samples map[string]engine.PriceSample) {
	if s.samples == nil {
		return
	}

	bucket := time.Now().UTC()
	if s.opts.PollInterval > 0 {
		bucket = bucket.Truncate(s.opts.PollInterval)
	}

	for _, sample := range samples {
		record := storage.SampleRecord{
			Pool:   sample.Pool,
			Price:  sample.Price,
			Bucket: bucket,
			Status: storage.SampleComplete,
		}
		if sample.Failed() {
			msg := sample.Err.Error()
			record.Status = storage.SampleErrored
			record.Error = &msg
		}
		if err := s.samples.UpsertSample(ctx, record); err != nil {
			s.logger.Error().Err(err).Str("pool", sample.Pool).Msg("failed to persist price sample")
		}
	}
}

func (s *Service) recordOutcome(err error) {
	if err == nil {
		s.failedCycles.Store(0)
		if s.degraded.CompareAndSwap(true, false) {
			s.logger.Info().Msg("service health recovered")
		}
		return
	}

	failed := s.failedCycles.Add(1)
	if failed >= int64(s.opts.UnhealthyAfter) && s.degraded.CompareAndSwap(false, true) {
		s.logger.Error().Int64("consecutive_failures", failed).Msg("service degraded")
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.AdvisoryLockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.AdvisoryLockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
