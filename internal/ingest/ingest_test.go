package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"polyclob/internal/exchange"
	"polyclob/internal/feed"
	"polyclob/internal/registry"
	"polyclob/pkg/fixedpoint"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixedResolver struct{ dom fixedpoint.TickDomain }

func (r fixedResolver) Domain(string) (fixedpoint.TickDomain, bool) { return r.dom, true }

func testDomain() fixedpoint.TickDomain {
	return fixedpoint.TickDomain{
		TickSize:  decimal.RequireFromString("0.01"),
		SizeScale: 1_000_000,
		MinTick:   0,
		MaxTick:   100,
	}
}

// echoServer upgrades to a websocket and replays whatever server-side
// pushes are sent on pushCh, while discarding client frames (pings,
// subscribe messages).
func echoServer(t *testing.T, pushCh <-chan []byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for msg := range pushCh {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}))
	return srv
}

func TestIngestorAppliesSnapshotThenDelta(t *testing.T) {
	t.Parallel()

	pushCh := make(chan []byte, 4)
	srv := echoServer(t, pushCh)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	mf := exchange.NewMarketFeed(wsURL, testLogger())
	reg := registry.New(registry.InstrumentDescriptor{Domain: testDomain(), MaxDepth: 10}, testLogger())
	decoder := feed.NewPolymarketDecoder(fixedResolver{dom: testDomain()})
	ing := New(mf, decoder, reg, nil, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mf.Run(ctx)
	go ing.Run(ctx)

	snapshot, _ := json.Marshal(map[string]any{
		"event_type": "book",
		"asset_id":   "tok1",
		"timestamp":  "1000",
		"buys":       []map[string]string{{"price": "0.50", "size": "100"}},
		"sells":      []map[string]string{{"price": "0.52", "size": "80"}},
	})
	pushCh <- snapshot

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b, ok := reg.Get("tok1"); ok && b.Initialized() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	b, ok := reg.Get("tok1")
	if !ok || !b.Initialized() {
		t.Fatal("expected tok1's book to be initialized after the snapshot")
	}
	bid, ask, bidOK, askOK := b.BestBidAsk()
	if !bidOK || !askOK || bid != 50 || ask != 52 {
		t.Fatalf("best bid/ask = %d/%d (%v/%v), want 50/52", bid, ask, bidOK, askOK)
	}

	delta, _ := json.Marshal(map[string]any{
		"event_type": "price_change",
		"asset_id":   "tok1",
		"timestamp":  "2000",
		"price_changes": []map[string]string{
			{"price": "0.50", "size": "0", "side": "BUY"},
		},
	})
	pushCh <- delta

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if bid, _, ok, _ := b.BestBidAsk(); ok && bid != 50 {
			break
		}
		if _, _, ok, _ := b.BestBidAsk(); !ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, _, bidOK, _ := b.BestBidAsk(); bidOK {
		t.Fatal("expected the 0.50 bid level to be removed")
	}

	close(pushCh)
}
