package engine

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DispatcherOptions tune delivery behaviour.
type DispatcherOptions struct {
	MaxRetries    int
	CallTimeout   time.Duration
	MaxConcurrent int
	BackoffMin    time.Duration
	BackoffMax    time.Duration
}

// Dispatcher turns trigger events into notifications. Each event gets
// exactly one logical delivery with bounded retries; after a successful
// delivery the alert is marked triggered and then deleted so one-shot
// alerts never re-fire. A failed delivery leaves the alert active, to be
// re-evaluated against the next cycle's sample.
type Dispatcher struct {
	sink   NotificationSink
	store  AlertStore
	render Renderer
	opts   DispatcherOptions
	logger zerolog.Logger
}

// NewDispatcher constructs a Dispatcher. store may be nil, in which case
// delivered alerts are not status-mutated (used by alert simulation).
func NewDispatcher(sink NotificationSink, store AlertStore, render Renderer, opts DispatcherOptions, logger zerolog.Logger) *Dispatcher {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = 500 * time.Millisecond
	}
	if opts.BackoffMax < opts.BackoffMin {
		opts.BackoffMax = 5 * time.Second
	}
	return &Dispatcher{
		sink:   sink,
		store:  store,
		render: render,
		opts:   opts,
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch delivers every event, bounded by the concurrency limit, and
// returns one result per event in input order. One event's failure never
// blocks the others.
func (d *Dispatcher) Dispatch(ctx context.Context, events []TriggerEvent) []DispatchResult {
	results := make([]DispatchResult, len(events))

	group := new(errgroup.Group)
	group.SetLimit(d.opts.MaxConcurrent)

	for i, event := range events {
		group.Go(func() error {
			results[i] = d.deliver(ctx, event)
			return nil
		})
	}
	_ = group.Wait()

	for _, res := range results {
		if res.Delivered {
			d.retire(ctx, res.Event.Alert)
		}
	}
	return results
}

// deliver performs the retry loop for a single event. Attempts are
// sequential with backoff, never concurrent with each other.
func (d *Dispatcher) deliver(ctx context.Context, event TriggerEvent) DispatchResult {
	message := d.render(event)
	delay := &backoff.Backoff{
		Min:    d.opts.BackoffMin,
		Max:    d.opts.BackoffMax,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, d.opts.CallTimeout)
		err := d.sink.Send(callCtx, event.Alert.ChatID, message)
		cancel()
		if err == nil {
			return DispatchResult{Event: event, Delivered: true, Attempts: attempt}
		}

		lastErr = err
		d.logger.Warn().Err(err).
			Str("alert_id", event.Alert.ID).
			Str("pool", event.Alert.Pool).
			Int("attempt", attempt).
			Msg("notification delivery failed")

		if attempt == d.opts.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return DispatchResult{Event: event, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(delay.Duration()):
		}
	}

	return DispatchResult{Event: event, Attempts: d.opts.MaxRetries, Err: lastErr}
}

// retire transitions a delivered alert to triggered and then deletes it.
// A crash between delivery and this update can duplicate one notification
// on restart; that narrow window is the documented at-least-once trade-off.
func (d *Dispatcher) retire(ctx context.Context, alert Alert) {
	if d.store == nil {
		return
	}
	if err := d.store.SetAlertStatus(ctx, alert.ID, StatusTriggered); err != nil {
		d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to mark alert triggered")
		return
	}
	if err := d.store.DeleteAlert(ctx, alert.ID); err != nil {
		d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to delete triggered alert")
	}
}
