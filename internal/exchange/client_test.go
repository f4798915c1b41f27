package exchange

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"polyclob/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewClientFromConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Config{API: config.APIConfig{CLOBBaseURL: "http://localhost"}}
	c := NewClient(cfg, testLogger())
	if c.http == nil {
		t.Fatal("expected a configured http client")
	}
}

func TestGetOrderBook(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token_id"); got != "tok1" {
			t.Errorf("token_id = %q, want tok1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"market":"m1","asset_id":"tok1","bids":[{"price":"0.50","size":"100"}],"asks":[{"price":"0.52","size":"80"}],"tick_size":"0.01"}`))
	}))
	defer srv.Close()

	cfg := config.Config{API: config.APIConfig{CLOBBaseURL: srv.URL}}
	c := NewClient(cfg, testLogger())

	book, err := c.GetOrderBook(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("GetOrderBook: %v", err)
	}
	if book.AssetID != "tok1" {
		t.Errorf("AssetID = %q, want tok1", book.AssetID)
	}
	if len(book.Bids) != 1 || book.Bids[0].Price != "0.50" {
		t.Errorf("Bids = %+v, want one level at 0.50", book.Bids)
	}
}

func TestGetOrderBookServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Config{API: config.APIConfig{CLOBBaseURL: srv.URL}}
	c := NewClient(cfg, testLogger())
	c.http.SetRetryCount(0)

	if _, err := c.GetOrderBook(context.Background(), "tok1"); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
