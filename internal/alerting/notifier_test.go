package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())

	if err := notifier.Send(context.Background(), 12345, "price alert"); err != nil {
		t.Fatalf("Send should succeed: %v", err)
	}
	if received["chat_id"] != "12345" {
		t.Fatalf("wrong chat_id: %#v", received)
	}
	if received["text"] != "price alert" {
		t.Fatalf("wrong text: %#v", received)
	}
}

func TestTelegramNotifierRejectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())

	if err := notifier.Send(context.Background(), 12345, "price alert"); err == nil {
		t.Fatal("ok=false should return an error")
	}
}

func TestTelegramNotifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())

	if err := notifier.Send(context.Background(), 12345, "price alert"); err == nil {
		t.Fatal("HTTP 429 should return an error")
	}
}
