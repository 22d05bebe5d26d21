package engine

import "github.com/shopspring/decimal"

// Evaluate computes which alerts transition to triggered given this cycle's
// samples. It is a pure function: same inputs, same events, in the same
// relative order as the input alerts. Alerts whose status is not active are
// skipped, as are alerts whose pool carries a failed sample — an unpriced
// pool is "no signal", never a trigger.
func Evaluate(alerts []Alert, samples map[string]PriceSample, cycle uint64) []TriggerEvent {
	events := make([]TriggerEvent, 0)
	for _, alert := range alerts {
		if alert.Status != StatusActive {
			continue
		}
		sample, ok := samples[alert.Pool]
		if !ok || sample.Failed() {
			continue
		}
		if crossed(alert.Direction, alert.Target, sample.Price) {
			events = append(events, TriggerEvent{Alert: alert, Sample: sample, Cycle: cycle})
		}
	}
	return events
}

// crossed applies the threshold condition at the sample's own precision.
func crossed(direction Direction, target, price decimal.Decimal) bool {
	switch direction {
	case DirectionAbove:
		return price.GreaterThanOrEqual(target)
	case DirectionBelow:
		return price.LessThanOrEqual(target)
	default:
		return false
	}
}
