package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates which side of the target price fires an alert.
type Direction string

const (
	// DirectionAbove fires once the pool price reaches or exceeds the target.
	DirectionAbove Direction = "above"
	// DirectionBelow fires once the pool price reaches or falls under the target.
	DirectionBelow Direction = "below"
)

// Valid reports whether the direction is one of the recognised values.
func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// Status is the lifecycle state of an alert.
type Status string

const (
	StatusActive    Status = "active"
	StatusTriggered Status = "triggered"
	StatusDeleted   Status = "deleted"
)

// Alert is a user's standing request to be notified when a pool price
// crosses a target value in a given direction.
type Alert struct {
	ID        string
	ChatID    int64
	Pool      string
	Label     string
	Target    decimal.Decimal
	Direction Direction
	Status    Status
	CreatedAt time.Time
}

// PriceSample is one observation of a pool price within a cycle. A non-nil
// Err marks failure provenance: the pool could not be priced this cycle.
type PriceSample struct {
	Pool      string
	Price     decimal.Decimal
	SampledAt time.Time
	Err       error
}

// Failed reports whether the sample carries failure provenance.
func (s PriceSample) Failed() bool {
	return s.Err != nil
}

// TriggerEvent records that an alert's condition newly held against a fresh
// sample. It only lives long enough to hand work to the dispatcher.
type TriggerEvent struct {
	Alert  Alert
	Sample PriceSample
	Cycle  uint64
}

// DispatchResult reports the outcome of one logical notification attempt.
type DispatchResult struct {
	Event     TriggerEvent
	Delivered bool
	Attempts  int
	Err       error
}
