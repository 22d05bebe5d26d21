package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	calls  map[string]int
	prices map[string]string
	fail   map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:  make(map[string]int),
		prices: make(map[string]string),
		fail:   make(map[string]error),
	}
}

func (f *fakeSource) FetchPoolPrice(_ context.Context, pool string) (decimal.Decimal, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[pool]++

	if err, ok := f.fail[pool]; ok {
		return decimal.Decimal{}, time.Time{}, err
	}
	raw, ok := f.prices[pool]
	if !ok {
		return decimal.Decimal{}, time.Time{}, fmt.Errorf("unknown pool %s", pool)
	}
	return decimal.RequireFromString(raw), time.Now().UTC(), nil
}

func TestSamplerDeduplicatesPools(t *testing.T) {
	source := newFakeSource()
	source.prices["pool-1"] = "1.23"
	source.prices["pool-2"] = "4.56"

	sampler := NewSampler(source, time.Second, 4, zerolog.Nop())
	samples := sampler.Sample(context.Background(), []string{"pool-1", "pool-2", "pool-1", "pool-1"})

	require.Len(t, samples, 2)
	assert.Equal(t, 1, source.calls["pool-1"], "one upstream call per distinct pool")
	assert.Equal(t, 1, source.calls["pool-2"])
	assert.True(t, samples["pool-1"].Price.Equal(decimal.RequireFromString("1.23")))
}

func TestSamplerIsolatesFailuresAndStaysComplete(t *testing.T) {
	source := newFakeSource()
	source.prices["pool-1"] = "1.00"
	source.fail["pool-2"] = fmt.Errorf("upstream 502")
	source.prices["pool-3"] = "3.00"

	sampler := NewSampler(source, time.Second, 2, zerolog.Nop())
	samples := sampler.Sample(context.Background(), []string{"pool-1", "pool-2", "pool-3"})

	require.Len(t, samples, 3, "map must be complete, success or failure")
	assert.False(t, samples["pool-1"].Failed())
	assert.True(t, samples["pool-2"].Failed())
	assert.ErrorContains(t, samples["pool-2"].Err, "upstream 502")
	assert.False(t, samples["pool-3"].Failed())
}

func TestSamplerEmptyInput(t *testing.T) {
	sampler := NewSampler(newFakeSource(), time.Second, 1, zerolog.Nop())
	samples := sampler.Sample(context.Background(), nil)
	assert.Empty(t, samples)
}
