package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkAlert(id, pool, target string, direction Direction, status Status) Alert {
	return Alert{
		ID:        id,
		ChatID:    42,
		Pool:      pool,
		Target:    decimal.RequireFromString(target),
		Direction: direction,
		Status:    status,
		CreatedAt: time.Unix(1700000000, 0),
	}
}

func mkSample(pool, price string) PriceSample {
	return PriceSample{
		Pool:      pool,
		Price:     decimal.RequireFromString(price),
		SampledAt: time.Unix(1700000060, 0),
	}
}

func TestEvaluateThresholdBoundaries(t *testing.T) {
	cases := []struct {
		name      string
		direction Direction
		target    string
		price     string
		want      bool
	}{
		{"above, price below target", DirectionAbove, "1.50", "1.49", false},
		{"above, price at target", DirectionAbove, "1.50", "1.50", true},
		{"above, price past target", DirectionAbove, "1.50", "1.51", true},
		{"below, price past target", DirectionBelow, "1.50", "1.49", true},
		{"below, price at target", DirectionBelow, "1.50", "1.50", true},
		{"below, price above target", DirectionBelow, "1.50", "1.51", false},
		{"above, high-precision tie", DirectionAbove, "0.000000012345", "0.000000012345", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alert := mkAlert("a1", "pool-1", tc.target, tc.direction, StatusActive)
			samples := map[string]PriceSample{"pool-1": mkSample("pool-1", tc.price)}

			events := Evaluate([]Alert{alert}, samples, 7)
			if tc.want {
				require.Len(t, events, 1)
				assert.Equal(t, "a1", events[0].Alert.ID)
				assert.Equal(t, uint64(7), events[0].Cycle)
			} else {
				assert.Empty(t, events)
			}
		})
	}
}

func TestEvaluateSkipsNonActiveAlerts(t *testing.T) {
	samples := map[string]PriceSample{"pool-1": mkSample("pool-1", "3.00")}
	alerts := []Alert{
		mkAlert("a1", "pool-1", "2.00", DirectionAbove, StatusTriggered),
		mkAlert("a2", "pool-1", "2.00", DirectionAbove, StatusDeleted),
	}

	assert.Empty(t, Evaluate(alerts, samples, 1))
}

func TestEvaluateTreatsFailedSampleAsNoSignal(t *testing.T) {
	samples := map[string]PriceSample{
		"pool-1": {Pool: "pool-1", Err: assert.AnError},
	}
	alerts := []Alert{
		mkAlert("a1", "pool-1", "0.01", DirectionAbove, StatusActive),
		mkAlert("a2", "pool-1", "1000000", DirectionBelow, StatusActive),
	}

	assert.Empty(t, Evaluate(alerts, samples, 1), "a failed sample must never read as a crossing")
}

func TestEvaluateSkipsUnsampledPools(t *testing.T) {
	alerts := []Alert{mkAlert("a1", "pool-1", "1.00", DirectionAbove, StatusActive)}
	assert.Empty(t, Evaluate(alerts, map[string]PriceSample{}, 1))
}

func TestEvaluatePreservesInputOrder(t *testing.T) {
	samples := map[string]PriceSample{
		"pool-1": mkSample("pool-1", "5.00"),
		"pool-2": mkSample("pool-2", "0.10"),
	}
	alerts := []Alert{
		mkAlert("a3", "pool-2", "0.50", DirectionBelow, StatusActive),
		mkAlert("a1", "pool-1", "4.00", DirectionAbove, StatusActive),
		mkAlert("a2", "pool-1", "100.00", DirectionAbove, StatusActive),
		mkAlert("a4", "pool-1", "5.00", DirectionAbove, StatusActive),
	}

	events := Evaluate(alerts, samples, 3)
	require.Len(t, events, 3)
	assert.Equal(t, "a3", events[0].Alert.ID)
	assert.Equal(t, "a1", events[1].Alert.ID)
	assert.Equal(t, "a4", events[2].Alert.ID)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	samples := map[string]PriceSample{
		"pool-1": mkSample("pool-1", "2.05"),
		"pool-2": mkSample("pool-2", "0.90"),
	}
	alerts := []Alert{
		mkAlert("a1", "pool-1", "2.00", DirectionAbove, StatusActive),
		mkAlert("a2", "pool-2", "1.00", DirectionBelow, StatusActive),
		mkAlert("a3", "pool-2", "0.50", DirectionBelow, StatusActive),
	}

	first := Evaluate(alerts, samples, 9)
	second := Evaluate(alerts, samples, 9)
	require.Equal(t, first, second)
}
