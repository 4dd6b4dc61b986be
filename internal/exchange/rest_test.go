package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBitstampUpdatePrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/ticker/btceur/" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"ask": "101.5", "bid": "100.25", "last": "100.9"})
	}))
	defer srv.Close()

	src := NewBitstamp(RESTOptions{Pair: BTCEUR, BaseURL: srv.URL, Timeout: time.Second})
	if err := src.UpdatePrices(context.Background()); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	q := src.Quote()
	if q.Name != "bitstamp" {
		t.Fatalf("default name expected, got %s", q.Name)
	}
	if !q.Ask.Decimal.Equal(decimal.RequireFromString("101.5")) || !q.Bid.Decimal.Equal(decimal.RequireFromString("100.25")) {
		t.Fatalf("unexpected quote %s/%s", q.Ask.Decimal, q.Bid.Decimal)
	}
}

func TestBitstampHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := NewBitstamp(RESTOptions{Name: "bs", Pair: BTCUSD, BaseURL: srv.URL, Timeout: time.Second})
	err := src.UpdatePrices(context.Background())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if src.Quote().HasPrices() {
		t.Fatal("failed update must not populate prices")
	}
}

func TestKrakenUpdatePrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pair"); got != "XBTUSD" {
			t.Fatalf("unexpected pair %s", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": []string{},
			"result": map[string]any{
				"XXBTZUSD": map[string]any{
					"a": []string{"64000.1", "1", "1.000"},
					"b": []string{"63999.9", "2", "2.000"},
				},
			},
		})
	}))
	defer srv.Close()

	src := NewKraken(RESTOptions{Pair: BTCUSD, BaseURL: srv.URL, Timeout: time.Second})
	if err := src.UpdatePrices(context.Background()); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	q := src.Quote()
	if !q.Ask.Decimal.Equal(decimal.RequireFromString("64000.1")) || !q.Bid.Decimal.Equal(decimal.RequireFromString("63999.9")) {
		t.Fatalf("unexpected quote %s/%s", q.Ask.Decimal, q.Bid.Decimal)
	}
}

func TestKrakenAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": []string{"EQuery:Unknown asset pair"}})
	}))
	defer srv.Close()

	src := NewKraken(RESTOptions{Pair: BTCUSD, BaseURL: srv.URL, Timeout: time.Second})
	if err := src.UpdatePrices(context.Background()); err == nil {
		t.Fatal("kraken error array should fail the update")
	}
}
