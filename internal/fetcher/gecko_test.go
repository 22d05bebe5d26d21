package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestGeckoFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/networks/ronin/pools/0xabc") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id": "ronin_0xabc",
				"attributes": map[string]any{
					"name":                 "RON / USDC",
					"base_token_price_usd": "2.0512345",
				},
			},
		})
	}))
	defer srv.Close()

	g := NewGecko(GeckoOptions{
		BaseURL:   srv.URL,
		Network:   "ronin",
		Timeout:   time.Second,
		UserAgent: "test",
	}, noopLogger())

	price, at, err := g.FetchPoolPrice(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("2.0512345")) {
		t.Fatalf("unexpected price: %s", price)
	}
	if at.IsZero() {
		t.Fatal("sample timestamp should be set")
	}
}

func TestGeckoFetchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]string{{"status": "404", "title": "Specified pool not found"}},
		})
	}))
	defer srv.Close()

	g := NewGecko(GeckoOptions{BaseURL: srv.URL, Network: "ronin", Timeout: time.Second}, noopLogger())

	_, _, err := g.FetchPoolPrice(context.Background(), "0xmissing")
	if err == nil {
		t.Fatal("HTTP 404 should return an error")
	}
	if !strings.Contains(err.Error(), "Specified pool not found") {
		t.Fatalf("error should carry the API title, got: %v", err)
	}
}

func TestGeckoFetchMissingPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"attributes": map[string]any{"name": "RON / USDC"}},
		})
	}))
	defer srv.Close()

	g := NewGecko(GeckoOptions{BaseURL: srv.URL, Network: "ronin", Timeout: time.Second}, noopLogger())

	if _, _, err := g.FetchPoolPrice(context.Background(), "0xabc"); err == nil {
		t.Fatal("missing base token price should return an error")
	}
}

func TestGeckoFetchEmptyPool(t *testing.T) {
	g := NewGecko(GeckoOptions{Network: "ronin"}, noopLogger())
	if _, _, err := g.FetchPoolPrice(context.Background(), ""); err == nil {
		t.Fatal("empty pool address should return an error")
	}
}
