package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// SampleRecord is one persisted pool price observation, success or failure.
type SampleRecord struct {
	Pool      string
	Price     decimal.Decimal
	Bucket    time.Time
	Status    string
	Error     *string
	CreatedAt time.Time
}

// Sample statuses.
const (
	SampleComplete = "complete"
	SampleErrored  = "errored"
)
