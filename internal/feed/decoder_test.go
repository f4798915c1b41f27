package feed

import (
	"testing"

	"github.com/shopspring/decimal"

	"polyclob/internal/book"
	"polyclob/pkg/fixedpoint"
	"polyclob/pkg/types"
)

type staticResolver struct {
	dom fixedpoint.TickDomain
	ok  bool
}

func (r staticResolver) Domain(instrumentID string) (fixedpoint.TickDomain, bool) {
	return r.dom, r.ok
}

func testDomain() fixedpoint.TickDomain {
	return fixedpoint.TickDomain{
		TickSize:  decimal.RequireFromString("0.01"),
		SizeScale: 1_000_000,
		MinTick:   0,
		MaxTick:   100,
	}
}

func TestDecodeBookSnapshot(t *testing.T) {
	t.Parallel()

	d := NewPolymarketDecoder(staticResolver{dom: testDomain(), ok: true})
	evt := types.WSBookEvent{
		AssetID:   "tok1",
		Timestamp: "1000",
		Buys:      []types.PriceLevel{{Price: "0.50", Size: "100"}},
		Sells:     []types.PriceLevel{{Price: "0.52", Size: "80"}},
	}

	rec, err := d.DecodeBook(evt)
	if err != nil {
		t.Fatalf("DecodeBook: %v", err)
	}
	if rec.Kind != Snapshot {
		t.Errorf("Kind = %v, want Snapshot", rec.Kind)
	}
	if rec.Sequence != 1 {
		t.Errorf("Sequence = %d, want 1 for first snapshot", rec.Sequence)
	}
	if len(rec.Changes) != 2 {
		t.Fatalf("Changes = %d, want 2", len(rec.Changes))
	}
	if rec.Changes[0].Side != book.Bid || rec.Changes[0].Price != 50 {
		t.Errorf("Changes[0] = %+v, want bid@50", rec.Changes[0])
	}
	if rec.Changes[1].Side != book.Ask || rec.Changes[1].Price != 52 {
		t.Errorf("Changes[1] = %+v, want ask@52", rec.Changes[1])
	}
}

func TestDecodePriceChangeIncrementsSequence(t *testing.T) {
	t.Parallel()

	d := NewPolymarketDecoder(staticResolver{dom: testDomain(), ok: true})
	snap := types.WSBookEvent{AssetID: "tok1", Timestamp: "1000"}
	if _, err := d.DecodeBook(snap); err != nil {
		t.Fatalf("DecodeBook: %v", err)
	}

	evt := types.WSPriceChangeEvent{
		AssetID:   "tok1",
		Timestamp: "2000",
		PriceChanges: []types.WSPriceChange{
			{Price: "0.49", Size: "0", Side: "BUY"},
		},
	}
	rec, err := d.DecodePriceChange(evt)
	if err != nil {
		t.Fatalf("DecodePriceChange: %v", err)
	}
	if rec.Kind != Delta {
		t.Errorf("Kind = %v, want Delta", rec.Kind)
	}
	if rec.Sequence != 2 {
		t.Errorf("Sequence = %d, want 2 (snapshot was 1)", rec.Sequence)
	}
	if rec.Changes[0].Size != 0 {
		t.Errorf("Changes[0].Size = %d, want 0 (removal)", rec.Changes[0].Size)
	}
}

func TestDecodeMissingDomainErrors(t *testing.T) {
	t.Parallel()

	d := NewPolymarketDecoder(staticResolver{ok: false})
	_, err := d.DecodeBook(types.WSBookEvent{AssetID: "unknown"})
	if err == nil {
		t.Fatal("expected an error for an unregistered instrument")
	}
}

func TestDecodeTickMisalignmentErrors(t *testing.T) {
	t.Parallel()

	d := NewPolymarketDecoder(staticResolver{dom: testDomain(), ok: true})
	evt := types.WSBookEvent{
		AssetID:   "tok1",
		Timestamp: "1000",
		Buys:      []types.PriceLevel{{Price: "0.505", Size: "100"}},
	}
	if _, err := d.DecodeBook(evt); err == nil {
		t.Fatal("expected a tick misalignment error")
	}
}

func TestDecodeUnknownSideErrors(t *testing.T) {
	t.Parallel()

	d := NewPolymarketDecoder(staticResolver{dom: testDomain(), ok: true})
	snap := types.WSBookEvent{AssetID: "tok1", Timestamp: "1000"}
	if _, err := d.DecodeBook(snap); err != nil {
		t.Fatalf("DecodeBook: %v", err)
	}

	evt := types.WSPriceChangeEvent{
		AssetID:   "tok1",
		Timestamp: "2000",
		PriceChanges: []types.WSPriceChange{
			{Price: "0.49", Size: "10", Side: "HOLD"},
		},
	}
	if _, err := d.DecodePriceChange(evt); err == nil {
		t.Fatal("expected an unknown side error")
	}
}
