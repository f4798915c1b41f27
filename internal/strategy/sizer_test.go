package strategy

import (
	"testing"

	"github.com/shopspring/decimal"

	"polyclob/internal/book"
	"polyclob/internal/execsim"
	"polyclob/pkg/fixedpoint"
)

func testDomain() fixedpoint.TickDomain {
	return fixedpoint.TickDomain{
		TickSize:  decimal.NewFromFloat(0.01),
		SizeScale: 1_000_000,
		MinTick:   0,
		MaxTick:   10_000,
	}
}

func tick(v uint32) fixedpoint.PriceTick { return fixedpoint.PriceTick(v) }
func sz(v int64) fixedpoint.SizeFixed    { return fixedpoint.SizeFixed(v * 1_000_000) }

func scenario1Book() *book.Book {
	b := book.NewBook("T1", testDomain(), book.DefaultMaxDepth)
	b.Bids.Apply(tick(50), sz(100))
	b.Bids.Apply(tick(49), sz(50))
	b.Asks.Apply(tick(52), sz(80))
	return b
}

func TestRecommendWithinLiquidity(t *testing.T) {
	t.Parallel()
	b := scenario1Book()
	s := NewSizer()

	rec, err := s.Recommend(b, SizeRequest{
		Side:           execsim.Buy,
		TargetNotional: decimal.NewFromFloat(20.8), // 40 units @ 0.52
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if rec.Size != sz(40) {
		t.Errorf("Size = %d, want %d", rec.Size, sz(40))
	}
	if rec.Capped {
		t.Error("expected no cap within available liquidity")
	}
	if rec.Aborted != execsim.None {
		t.Errorf("Aborted = %v, want None", rec.Aborted)
	}
}

func TestRecommendCappedByMaxSize(t *testing.T) {
	t.Parallel()
	b := scenario1Book()
	s := NewSizer()

	rec, err := s.Recommend(b, SizeRequest{
		Side:           execsim.Buy,
		TargetNotional: decimal.NewFromFloat(41.6), // would fill all 80 units
		MaxSize:        sz(30),
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !rec.Capped {
		t.Error("expected Capped = true")
	}
	if rec.Size != sz(30) {
		t.Errorf("Size = %d, want %d", rec.Size, sz(30))
	}
	wantNotional := decimal.NewFromFloat(0.52).Mul(decimal.NewFromInt(30))
	if !rec.Notional.Equal(wantNotional) {
		t.Errorf("Notional = %s, want %s", rec.Notional, wantNotional)
	}
}

func TestRecommendRejectsNonPositiveTarget(t *testing.T) {
	t.Parallel()
	b := scenario1Book()
	s := NewSizer()

	if _, err := s.Recommend(b, SizeRequest{Side: execsim.Buy, TargetNotional: decimal.Zero}); err == nil {
		t.Fatal("expected an error for a zero target notional")
	}
}
