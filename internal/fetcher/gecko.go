package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dev-bhaskar8/kekterminal/internal/engine"
)

// GeckoOptions parameterise the GeckoTerminal fetcher.
type GeckoOptions struct {
	BaseURL   string
	Network   string
	Timeout   time.Duration
	UserAgent string
}

// Gecko fetches pool prices from the GeckoTerminal public API.
type Gecko struct {
	opts    GeckoOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewGecko constructs a GeckoTerminal pool price fetcher.
func NewGecko(opts GeckoOptions, logger zerolog.Logger) *Gecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.geckoterminal.com/api/v2"
	}
	if opts.Network == "" {
		opts.Network = "ronin"
	}

	return &Gecko{
		opts:    opts,
		logger:  logger.With().Str("component", "gecko_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchPoolPrice retrieves the base token price in USD for a pool address.
func (g *Gecko) FetchPoolPrice(ctx context.Context, pool string) (decimal.Decimal, time.Time, error) {
	if pool == "" {
		return decimal.Decimal{}, time.Time{}, fmt.Errorf("pool address required")
	}

	endpoint := fmt.Sprintf("%s/networks/%s/pools/%s", g.baseURL, g.opts.Network, pool)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(g.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "kekterminal/1.0")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, time.Time{}, parseAPIError(resp.StatusCode, payload)
	}

	var poolRes poolResponse
	if err := json.Unmarshal(payload, &poolRes); err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}

	raw := poolRes.Data.Attributes.BaseTokenPriceUSD
	if raw == "" {
		return decimal.Decimal{}, time.Time{}, fmt.Errorf("pool %s has no base token price", pool)
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, fmt.Errorf("parse base token price: %w", err)
	}

	return price, time.Now().UTC(), nil
}

type poolResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Name              string `json:"name"`
			BaseTokenPriceUSD string `json:"base_token_price_usd"`
			PoolCreatedAt     string `json:"pool_created_at"`
		} `json:"attributes"`
	} `json:"data"`
}

type apiErrorResponse struct {
	Errors []struct {
		Status string `json:"status"`
		Title  string `json:"title"`
	} `json:"errors"`
}

func parseAPIError(status int, payload []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && len(apiErr.Errors) > 0 {
		if title := apiErr.Errors[0].Title; title != "" {
			return fmt.Errorf("geckoterminal api error (%d): %s", status, title)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("geckoterminal api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("geckoterminal api error (%d)", status)
}

var _ engine.PriceSource = (*Gecko)(nil)
