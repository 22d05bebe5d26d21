package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/dev-bhaskar8/kekterminal/internal/logging"
)

// Price source providers.
const (
	ProviderGecko   = "gecko"
	ProviderOnchain = "onchain"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Engine      EngineConfig      `mapstructure:"engine"`
	PriceSource PriceSourceConfig `mapstructure:"pricesource"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// EngineConfig governs the monitoring cycle.
type EngineConfig struct {
	PollInterval            time.Duration `mapstructure:"poll_interval"`
	MaxRetries              int           `mapstructure:"max_retries"`
	PerCallTimeout          time.Duration `mapstructure:"per_call_timeout"`
	MaxConcurrentFetches    int           `mapstructure:"max_concurrent_fetches"`
	MaxConcurrentDispatches int           `mapstructure:"max_concurrent_dispatches"`
	BackoffMin              time.Duration `mapstructure:"backoff_min"`
	BackoffMax              time.Duration `mapstructure:"backoff_max"`
	UnhealthyAfter          int           `mapstructure:"unhealthy_after"`
	AdvisoryLockKey         int64         `mapstructure:"advisory_lock_key"`
}

// PriceSourceConfig selects and parameterises the upstream price provider.
type PriceSourceConfig struct {
	Provider string        `mapstructure:"provider"`
	Gecko    GeckoConfig   `mapstructure:"gecko"`
	Onchain  OnchainConfig `mapstructure:"onchain"`
}

// GeckoConfig captures GeckoTerminal API connectivity.
type GeckoConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Network        string        `mapstructure:"network"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// OnchainConfig covers reading pool reserves over RPC.
type OnchainConfig struct {
	RPCURL             string        `mapstructure:"rpc_url"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	BaseTokenDecimals  int32         `mapstructure:"base_token_decimals"`
	QuoteTokenDecimals int32         `mapstructure:"quote_token_decimals"`
}

// TelegramConfig describes the notification sink.
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KEKTERMINAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "kekterminal")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("engine.poll_interval", "60s")
	v.SetDefault("engine.max_retries", 3)
	v.SetDefault("engine.per_call_timeout", "10s")
	v.SetDefault("engine.max_concurrent_fetches", 4)
	v.SetDefault("engine.max_concurrent_dispatches", 4)
	v.SetDefault("engine.backoff_min", "500ms")
	v.SetDefault("engine.backoff_max", "5s")
	v.SetDefault("engine.unhealthy_after", 3)
	v.SetDefault("engine.advisory_lock_key", int64(0x6b656b74))

	v.SetDefault("pricesource.provider", ProviderGecko)
	v.SetDefault("pricesource.gecko.base_url", "https://api.geckoterminal.com/api/v2")
	v.SetDefault("pricesource.gecko.network", "ronin")
	v.SetDefault("pricesource.gecko.request_timeout", "10s")
	v.SetDefault("pricesource.gecko.user_agent", "kekterminal/1.0")
	v.SetDefault("pricesource.onchain.request_timeout", "10s")
	v.SetDefault("pricesource.onchain.base_token_decimals", 18)
	v.SetDefault("pricesource.onchain.quote_token_decimals", 6)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.request_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
// Invalid engine settings are fatal at startup and nowhere else.
func (c *Config) Validate() error {
	if c.Engine.PollInterval <= 0 {
		return fmt.Errorf("engine.poll_interval must be greater than zero")
	}
	if c.Engine.MaxRetries < 1 {
		return fmt.Errorf("engine.max_retries must be at least 1")
	}
	if c.Engine.PerCallTimeout <= 0 {
		return fmt.Errorf("engine.per_call_timeout must be greater than zero")
	}
	if c.Engine.MaxConcurrentFetches < 1 {
		return fmt.Errorf("engine.max_concurrent_fetches must be at least 1")
	}
	if c.Engine.MaxConcurrentDispatches < 1 {
		return fmt.Errorf("engine.max_concurrent_dispatches must be at least 1")
	}
	if c.Engine.UnhealthyAfter < 1 {
		return fmt.Errorf("engine.unhealthy_after must be at least 1")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}

	switch c.PriceSource.Provider {
	case ProviderGecko:
		if c.PriceSource.Gecko.Network == "" {
			return fmt.Errorf("pricesource.gecko.network is required")
		}
	case ProviderOnchain:
		if c.PriceSource.Onchain.RPCURL == "" {
			return fmt.Errorf("pricesource.onchain.rpc_url is required")
		}
	default:
		return fmt.Errorf("pricesource.provider must be %q or %q", ProviderGecko, ProviderOnchain)
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
