package types

import (
	"testing"
	"time"
)

func TestTickSizeDecimals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tick TickSize
		want int
	}{
		{Tick01, 1},
		{Tick001, 2},
		{Tick0001, 3},
		{Tick00001, 4},
		{TickSize("unknown"), 2}, // default
	}

	for _, tt := range tests {
		if got := tt.tick.Decimals(); got != tt.want {
			t.Errorf("TickSize(%q).Decimals() = %d, want %d", tt.tick, got, tt.want)
		}
	}
}

func TestMarketTimestamp(t *testing.T) {
	t.Parallel()

	got, err := MarketTimestamp("1700000000000")
	if err != nil {
		t.Fatalf("MarketTimestamp error: %v", err)
	}
	want := time.UnixMilli(1700000000000)
	if !got.Equal(want) {
		t.Errorf("MarketTimestamp = %v, want %v", got, want)
	}
}

func TestMarketTimestampInvalid(t *testing.T) {
	t.Parallel()

	if _, err := MarketTimestamp("not-a-number"); err == nil {
		t.Error("expected an error for a non-numeric timestamp")
	}
}
