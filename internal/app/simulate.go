package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dev-bhaskar8/kekterminal/internal/engine"
)

// SimulateAlert pushes one synthetic trigger through the evaluator and the
// real notifier, without touching the store. Useful for verifying channel
// wiring before pointing the engine at production alerts.
func (a *App) SimulateAlert(ctx context.Context, chatID int64, pool string, price, target decimal.Decimal, direction engine.Direction) error {
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("telegram not configured; nothing to simulate against")
	}

	alert := engine.Alert{
		ID:        "simulated",
		ChatID:    chatID,
		Pool:      pool,
		Target:    target,
		Direction: direction,
		Status:    engine.StatusActive,
		CreatedAt: time.Now().UTC(),
	}
	samples := map[string]engine.PriceSample{
		pool: {Pool: pool, Price: price, SampledAt: time.Now().UTC()},
	}

	events := engine.Evaluate([]engine.Alert{alert}, samples, 0)
	if len(events) == 0 {
		return fmt.Errorf("price %s does not cross target %s (%s); nothing to send", price, target, direction)
	}

	dispatcher := a.newDispatcher(notifier, nil)
	results := dispatcher.Dispatch(ctx, events)
	if !results[0].Delivered {
		return fmt.Errorf("simulated notification failed: %w", results[0].Err)
	}

	a.Logger.Info().Str("pool", pool).Int("attempts", results[0].Attempts).Msg("simulated alert delivered")
	return nil
}
