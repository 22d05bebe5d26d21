package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource supplies the current price for a pool. Implementations may
// block on I/O and must honour the supplied context.
type PriceSource interface {
	FetchPoolPrice(ctx context.Context, pool string) (decimal.Decimal, time.Time, error)
}

// AlertStore is the durable mapping from alert id to alert record. The
// engine reads the active set fresh each cycle and mutates status only
// through SetAlertStatus and DeleteAlert; it assumes the store serialises
// concurrent writes to the same alert id.
type AlertStore interface {
	ListActiveAlerts(ctx context.Context) ([]Alert, error)
	SetAlertStatus(ctx context.Context, id string, status Status) error
	DeleteAlert(ctx context.Context, id string) error
}

// NotificationSink delivers a rendered message to a chat. Failures are
// treated as transient and retried by the dispatcher.
type NotificationSink interface {
	Send(ctx context.Context, chatID int64, message string) error
}

// Renderer turns a trigger event into the outbound message text. Message
// content is owned by the presentation layer; the engine treats it as opaque.
type Renderer func(TriggerEvent) string
