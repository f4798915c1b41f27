package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polyclob/internal/book"
	"polyclob/internal/config"
	"polyclob/pkg/fixedpoint"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testDomain() fixedpoint.TickDomain {
	return fixedpoint.TickDomain{
		TickSize:  decimal.RequireFromString("0.01"),
		SizeScale: 1_000_000,
		MinTick:   0,
		MaxTick:   100,
	}
}

func tick(v uint32) fixedpoint.PriceTick { return fixedpoint.PriceTick(v) }
func sz(v int64) fixedpoint.SizeFixed    { return fixedpoint.SizeFixed(v * 1_000_000) }

type fakeProvider struct {
	books map[string]*book.Book
}

func (p fakeProvider) Get(id string) (*book.Book, bool) { b, ok := p.books[id]; return b, ok }
func (p fakeProvider) Len() int                         { return len(p.books) }

func newFakeProvider() fakeProvider {
	b := book.NewBook("tok1", testDomain(), book.DefaultMaxDepth)
	b.Bids.Apply(tick(50), sz(100))
	b.Asks.Apply(tick(52), sz(80))
	b.ApplySequence(1, time.Now())
	return fakeProvider{books: map[string]*book.Book{"tok1": b}}
}

func TestHandleGetBook(t *testing.T) {
	t.Parallel()

	h := NewHandlers(newFakeProvider(), config.DashboardConfig{}, NewHub(testLogger()), testLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/book?instrument=tok1", nil)
	w := httptest.NewRecorder()
	h.HandleGetBook(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var view BookView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.BestBid != "0.5" || view.BestAsk != "0.52" {
		t.Errorf("BestBid/BestAsk = %s/%s, want 0.5/0.52", view.BestBid, view.BestAsk)
	}
}

func TestHandleGetBookUnknownInstrument(t *testing.T) {
	t.Parallel()

	h := NewHandlers(newFakeProvider(), config.DashboardConfig{}, NewHub(testLogger()), testLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/book?instrument=missing", nil)
	w := httptest.NewRecorder()
	h.HandleGetBook(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleSimulateSizeIn(t *testing.T) {
	t.Parallel()

	h := NewHandlers(newFakeProvider(), config.DashboardConfig{}, NewHub(testLogger()), testLogger())
	body := `{"instrument_id":"tok1","side":"buy","size":"50"}`
	req := httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleSimulate(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SimulateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.FilledSize != "50" {
		t.Errorf("FilledSize = %s, want 50", resp.FilledSize)
	}
	if resp.AvgPrice != "0.52" {
		t.Errorf("AvgPrice = %s, want 0.52", resp.AvgPrice)
	}
}

func TestHandleRecommend(t *testing.T) {
	t.Parallel()

	h := NewHandlers(newFakeProvider(), config.DashboardConfig{}, NewHub(testLogger()), testLogger())
	body := `{"instrument_id":"tok1","side":"buy","target_notional":"40","max_size":"1000"}`
	req := httptest.NewRequest(http.MethodPost, "/api/recommend", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleRecommend(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp RecommendResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AvgPrice != "0.52" {
		t.Errorf("AvgPrice = %s, want 0.52", resp.AvgPrice)
	}
}

func TestHandleRecommendUnknownInstrument(t *testing.T) {
	t.Parallel()

	h := NewHandlers(newFakeProvider(), config.DashboardConfig{}, NewHub(testLogger()), testLogger())
	body := `{"instrument_id":"missing","side":"buy","target_notional":"40"}`
	req := httptest.NewRequest(http.MethodPost, "/api/recommend", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleRecommend(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleSimulateMissingTarget(t *testing.T) {
	t.Parallel()

	h := NewHandlers(newFakeProvider(), config.DashboardConfig{}, NewHub(testLogger()), testLogger())
	body := `{"instrument_id":"tok1","side":"buy"}`
	req := httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleSimulate(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
