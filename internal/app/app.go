package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dev-bhaskar8/kekterminal/internal/alerting"
	"github.com/dev-bhaskar8/kekterminal/internal/config"
	"github.com/dev-bhaskar8/kekterminal/internal/engine"
	"github.com/dev-bhaskar8/kekterminal/internal/fetcher"
	"github.com/dev-bhaskar8/kekterminal/internal/scheduler"
	"github.com/dev-bhaskar8/kekterminal/internal/service"
	"github.com/dev-bhaskar8/kekterminal/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newPriceSource() engine.PriceSource {
	if a.Config.PriceSource.Provider == config.ProviderOnchain {
		cfg := a.Config.PriceSource.Onchain
		return fetcher.NewOnchain(fetcher.OnchainOptions{
			RPCURL:             cfg.RPCURL,
			Timeout:            cfg.RequestTimeout,
			BaseTokenDecimals:  cfg.BaseTokenDecimals,
			QuoteTokenDecimals: cfg.QuoteTokenDecimals,
		}, a.Logger)
	}

	cfg := a.Config.PriceSource.Gecko
	return fetcher.NewGecko(fetcher.GeckoOptions{
		BaseURL:   cfg.BaseURL,
		Network:   cfg.Network,
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() engine.NotificationSink {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.APIBase, cfg.RequestTimeout, a.Logger)
	}
	return nil
}

func (a *App) newSampler(source engine.PriceSource) *engine.Sampler {
	cfg := a.Config.Engine
	return engine.NewSampler(source, cfg.PerCallTimeout, cfg.MaxConcurrentFetches, a.Logger)
}

func (a *App) newDispatcher(sink engine.NotificationSink, store engine.AlertStore) *engine.Dispatcher {
	cfg := a.Config.Engine
	return engine.NewDispatcher(sink, store, alerting.RenderTrigger, engine.DispatcherOptions{
		MaxRetries:    cfg.MaxRetries,
		CallTimeout:   cfg.PerCallTimeout,
		MaxConcurrent: cfg.MaxConcurrentDispatches,
		BackoffMin:    cfg.BackoffMin,
		BackoffMax:    cfg.BackoffMax,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running monitoring engine until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; the engine needs an alert store")
	}
	if closeStore != nil {
		defer closeStore()
	}

	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("telegram not configured; notifications will fail until it is enabled")
		notifier = noopSink{logger: a.Logger}
	}

	sched := scheduler.New(a.Config.Engine.PollInterval, a.Logger)
	sampler := a.newSampler(a.newPriceSource())
	dispatcher := a.newDispatcher(notifier, store)

	svc := service.New(sched, store, sampler, dispatcher, store, store, service.Options{
		UnhealthyAfter:  a.Config.Engine.UnhealthyAfter,
		AdvisoryLockKey: a.Config.Engine.AdvisoryLockKey,
		PollInterval:    a.Config.Engine.PollInterval,
	}, a.Logger)

	a.Logger.Info().Dur("poll_interval", a.Config.Engine.PollInterval).Msg("starting alert engine")
	if err := svc.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info().Msg("shutdown requested, draining in-flight cycle")
	svc.Stop()
	a.Logger.Info().Msg("alert engine stopped")
	return nil
}

// noopSink logs instead of delivering; used when no sink is configured so a
// misconfigured deployment degrades loudly rather than crashing.
type noopSink struct {
	logger zerolog.Logger
}

func (n noopSink) Send(_ context.Context, chatID int64, message string) error {
	n.logger.Warn().Int64("chat_id", chatID).Str("message", message).Msg("no notification sink configured; dropping message")
	return errors.New("no notification sink configured")
}

// ExportOptions hold parameters for exporting sample history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	Pool      string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// AddAlertOptions configure alert creation.
type AddAlertOptions struct {
	ChatID    int64
	Pool      string
	Label     string
	Target    string
	Direction string
}
