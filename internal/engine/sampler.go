package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Sampler fetches the current price for every pool referenced by at least
// one active alert, one upstream call per distinct pool per cycle.
type Sampler struct {
	source  PriceSource
	timeout time.Duration
	limit   int
	logger  zerolog.Logger
}

// NewSampler constructs a Sampler. maxConcurrent bounds parallel fetches;
// timeout bounds each individual upstream call.
func NewSampler(source PriceSource, timeout time.Duration, maxConcurrent int, logger zerolog.Logger) *Sampler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Sampler{
		source:  source,
		timeout: timeout,
		limit:   maxConcurrent,
		logger:  logger.With().Str("component", "sampler").Logger(),
	}
}

// Sample prices every distinct pool in pools. The returned map is complete:
// one entry per distinct pool, with failure provenance recorded in place of
// a price when the upstream call errors. One pool's failure never aborts
// sampling of the others.
func (s *Sampler) Sample(ctx context.Context, pools []string) map[string]PriceSample {
	distinct := lo.Uniq(pools)
	samples := make(map[string]PriceSample, len(distinct))

	var mu sync.Mutex
	group := new(errgroup.Group)
	group.SetLimit(s.limit)

	for _, pool := range distinct {
		group.Go(func() error {
			sample := s.fetchOne(ctx, pool)
			mu.Lock()
			samples[pool] = sample
			mu.Unlock()
			return nil
		})
	}

	_ = group.Wait()
	return samples
}

func (s *Sampler) fetchOne(ctx context.Context, pool string) PriceSample {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	price, at, err := s.source.FetchPoolPrice(callCtx, pool)
	if err != nil {
		s.logger.Warn().Err(err).Str("pool", pool).Msg("pool price fetch failed")
		return PriceSample{Pool: pool, SampledAt: time.Now().UTC(), Err: err}
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return PriceSample{Pool: pool, Price: price, SampledAt: at}
}
