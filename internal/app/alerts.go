package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dev-bhaskar8/kekterminal/internal/alerting"
	"github.com/dev-bhaskar8/kekterminal/internal/engine"
)

// AddAlert creates an alert row. When no direction is given it is derived
// from the current pool price: a target above the current price means
// "above", otherwise "below".
func (a *App) AddAlert(ctx context.Context, opts AddAlertOptions) error {
	target, err := decimal.NewFromString(opts.Target)
	if err != nil {
		return fmt.Errorf("invalid --target value: %w", err)
	}
	if !target.IsPositive() {
		return errors.New("--target must be greater than zero")
	}

	direction := engine.Direction(opts.Direction)
	if opts.Direction == "" {
		direction, err = a.deriveDirection(ctx, opts.Pool, target)
		if err != nil {
			return err
		}
	}
	if !direction.Valid() {
		return fmt.Errorf("direction must be %q or %q", engine.DirectionAbove, engine.DirectionBelow)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot create alerts")
	}
	defer closeStore()

	alert, err := store.CreateAlert(ctx, engine.Alert{
		ChatID:    opts.ChatID,
		Pool:      opts.Pool,
		Label:     opts.Label,
		Target:    target,
		Direction: direction,
	})
	if err != nil {
		return err
	}

	a.Logger.Info().
		Str("alert_id", alert.ID).
		Str("pool", alert.Pool).
		Str("direction", string(alert.Direction)).
		Str("target", alert.Target.String()).
		Msg("alert created")
	fmt.Fprintf(os.Stdout, "created alert %s (%s %s %s)\n", alert.ID, alert.Pool, alert.Direction, alerting.FormatPrice(alert.Target))
	return nil
}

func (a *App) deriveDirection(ctx context.Context, pool string, target decimal.Decimal) (engine.Direction, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.Config.Engine.PerCallTimeout)
	defer cancel()

	current, _, err := a.newPriceSource().FetchPoolPrice(fetchCtx, pool)
	if err != nil {
		return "", fmt.Errorf("cannot derive direction, pass --direction explicitly: %w", err)
	}
	if target.GreaterThan(current) {
		return engine.DirectionAbove, nil
	}
	return engine.DirectionBelow, nil
}

// RemoveAlert deletes an alert by id.
func (a *App) RemoveAlert(ctx context.Context, id string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot remove alerts")
	}
	defer closeStore()

	if err := store.DeleteAlert(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "removed alert %s\n", id)
	return nil
}

// ListAlerts prints active alerts, optionally restricted to one chat.
func (a *App) ListAlerts(ctx context.Context, chatID int64) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot list alerts")
	}
	defer closeStore()

	var alerts []engine.Alert
	if chatID != 0 {
		alerts, err = store.ListAlertsByChat(ctx, chatID)
	} else {
		alerts, err = store.ListActiveAlerts(ctx)
	}
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no active alerts")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tChat\tPool\tLabel\tDirection\tTarget\tCreated (UTC)")
	for _, alert := range alerts {
		fmt.Fprintf(writer, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			alert.ID,
			alert.ChatID,
			alert.Pool,
			alert.Label,
			alert.Direction,
			alert.Target.String(),
			alert.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	return writer.Flush()
}
