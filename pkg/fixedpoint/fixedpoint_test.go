package fixedpoint

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dom() TickDomain {
	return TickDomain{
		TickSize:  decimal.NewFromFloat(0.01),
		SizeScale: 1_000_000,
		MinTick:   0,
		MaxTick:   10_000,
	}
}

func TestQuantizePriceExact(t *testing.T) {
	t.Parallel()
	tick, err := QuantizePrice(decimal.NewFromFloat(0.52), dom())
	if err != nil {
		t.Fatalf("QuantizePrice: %v", err)
	}
	if tick != 52 {
		t.Errorf("tick = %d, want 52", tick)
	}
}

func TestQuantizePriceMisaligned(t *testing.T) {
	t.Parallel()
	_, err := QuantizePrice(decimal.NewFromFloat(0.505), dom())
	if !errors.Is(err, ErrTickMisalignment) {
		t.Fatalf("err = %v, want ErrTickMisalignment", err)
	}
}

func TestQuantizePriceOutOfDomain(t *testing.T) {
	t.Parallel()
	_, err := QuantizePrice(decimal.NewFromFloat(101), dom())
	if !errors.Is(err, ErrOutOfDomain) {
		t.Fatalf("err = %v, want ErrOutOfDomain", err)
	}
}

func TestQuantizeSize(t *testing.T) {
	t.Parallel()
	sz, err := QuantizeSize(decimal.NewFromInt(100), 1_000_000)
	if err != nil {
		t.Fatalf("QuantizeSize: %v", err)
	}
	if sz != 100_000_000 {
		t.Errorf("size = %d, want 100000000", sz)
	}
}

func TestQuantizeSizeZeroAllowed(t *testing.T) {
	t.Parallel()
	sz, err := QuantizeSize(decimal.Zero, 1_000_000)
	if err != nil {
		t.Fatalf("QuantizeSize(0): %v", err)
	}
	if sz != 0 {
		t.Errorf("size = %d, want 0", sz)
	}
}

func TestQuantizeSizeNegative(t *testing.T) {
	t.Parallel()
	_, err := QuantizeSize(decimal.NewFromInt(-1), 1_000_000)
	if !errors.Is(err, ErrNegativeSize) {
		t.Fatalf("err = %v, want ErrNegativeSize", err)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	d := dom()
	for tick := d.MinTick; tick <= 200; tick++ {
		price := DequantizePrice(tick, d)
		got, err := QuantizePrice(price, d)
		if err != nil {
			t.Fatalf("tick %d: QuantizePrice(%s): %v", tick, price, err)
		}
		if got != tick {
			t.Errorf("round-trip tick %d -> %s -> %d", tick, price, got)
		}
	}
}

func TestSizeRoundTrip(t *testing.T) {
	t.Parallel()
	sizes := []SizeFixed{0, 1, 100_000_000, 999_999}
	for _, sz := range sizes {
		d := DequantizeSize(sz, 1_000_000)
		got, err := QuantizeSize(d, 1_000_000)
		if err != nil {
			t.Fatalf("size %d: QuantizeSize(%s): %v", sz, d, err)
		}
		if got != sz {
			t.Errorf("round-trip size %d -> %s -> %d", sz, d, got)
		}
	}
}
