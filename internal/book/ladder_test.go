package book

import (
	"testing"

	"polyclob/pkg/fixedpoint"
)

func tick(v uint32) fixedpoint.PriceTick { return fixedpoint.PriceTick(v) }
func size(v int64) fixedpoint.SizeFixed  { return fixedpoint.SizeFixed(v) }

func TestLadderBestBidDescending(t *testing.T) {
	t.Parallel()
	l := NewLadder(Bid, DefaultMaxDepth)
	l.Apply(tick(50), size(100))
	l.Apply(tick(49), size(50))

	bestTick, bestSize, ok := l.Best()
	if !ok || bestTick != 50 || bestSize != 100 {
		t.Fatalf("Best() = (%d, %d, %v), want (50, 100, true)", bestTick, bestSize, ok)
	}
}

func TestLadderBestAskAscending(t *testing.T) {
	t.Parallel()
	l := NewLadder(Ask, DefaultMaxDepth)
	l.Apply(tick(52), size(80))
	l.Apply(tick(53), size(50))

	bestTick, bestSize, ok := l.Best()
	if !ok || bestTick != 52 || bestSize != 80 {
		t.Fatalf("Best() = (%d, %d, %v), want (52, 80, true)", bestTick, bestSize, ok)
	}
}

func TestLadderRemoveNonExistentIsNoOp(t *testing.T) {
	t.Parallel()
	l := NewLadder(Bid, DefaultMaxDepth)
	kind, err := l.Apply(tick(50), size(0))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if kind != NoOp {
		t.Errorf("kind = %v, want NoOp", kind)
	}
}

func TestLadderRemoveExisting(t *testing.T) {
	t.Parallel()
	l := NewLadder(Bid, DefaultMaxDepth)
	l.Apply(tick(50), size(100))
	l.Apply(tick(49), size(50))

	kind, err := l.Apply(tick(49), size(0))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if kind != DepthChanged {
		t.Errorf("kind = %v, want DepthChanged", kind)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
	if l.TotalSize() != 100 {
		t.Errorf("TotalSize() = %d, want 100", l.TotalSize())
	}
}

func TestLadderRemoveBestRecomputesTouch(t *testing.T) {
	t.Parallel()
	l := NewLadder(Bid, DefaultMaxDepth)
	l.Apply(tick(50), size(100))
	l.Apply(tick(49), size(50))

	kind, err := l.Apply(tick(50), size(0))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if kind != BestChanged {
		t.Errorf("kind = %v, want BestChanged", kind)
	}
	bestTick, _, ok := l.Best()
	if !ok || bestTick != 49 {
		t.Fatalf("Best() tick = %d, ok=%v, want 49", bestTick, ok)
	}
}

func TestLadderDepthCapEvictsWorst(t *testing.T) {
	t.Parallel()
	l := NewLadder(Bid, 2)
	l.Apply(tick(50), size(100))
	l.Apply(tick(49), size(100))
	// Third level: nearer than current worst (49) must evict 49, not be dropped.
	kind, _ := l.Apply(tick(51), size(100))
	if kind != BestChanged {
		t.Errorf("kind = %v, want BestChanged", kind)
	}
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
	if _, _, ok := func() (fixedpoint.PriceTick, fixedpoint.SizeFixed, bool) {
		levels := l.BestN(10)
		for _, lv := range levels {
			if lv.Tick == 49 {
				return lv.Tick, lv.Size, true
			}
		}
		return 0, 0, false
	}(); ok {
		t.Error("tick 49 should have been evicted")
	}
}

func TestLadderDepthCapDropsFarInsert(t *testing.T) {
	t.Parallel()
	l := NewLadder(Bid, 2)
	l.Apply(tick(50), size(100))
	l.Apply(tick(49), size(100))
	// Insert farther from touch than both existing levels: becomes worst
	// and is immediately evicted (net no-op on contents).
	l.Apply(tick(1), size(1))
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
	levels := l.BestN(10)
	for _, lv := range levels {
		if lv.Tick == 1 {
			t.Error("far insert should have been evicted, not retained")
		}
	}
}

func TestLadderBestNFromTouchOutward(t *testing.T) {
	t.Parallel()
	l := NewLadder(Ask, DefaultMaxDepth)
	l.Apply(tick(54), size(200))
	l.Apply(tick(52), size(80))
	l.Apply(tick(53), size(50))

	got := l.BestN(2)
	if len(got) != 2 {
		t.Fatalf("len(BestN(2)) = %d, want 2", len(got))
	}
	if got[0].Tick != 52 || got[1].Tick != 53 {
		t.Errorf("BestN order = %+v, want [52, 53]", got)
	}
}

func TestLadderNegativeSizeRejected(t *testing.T) {
	t.Parallel()
	l := NewLadder(Bid, DefaultMaxDepth)
	_, err := l.Apply(tick(50), size(-1))
	if err == nil {
		t.Fatal("expected error for negative size")
	}
}

func TestLadderClear(t *testing.T) {
	t.Parallel()
	l := NewLadder(Bid, DefaultMaxDepth)
	l.Apply(tick(50), size(100))
	l.Clear()
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after Clear", l.Len())
	}
	if _, _, ok := l.Best(); ok {
		t.Error("Best() should report false after Clear")
	}
	if l.TotalSize() != 0 {
		t.Errorf("TotalSize() = %d, want 0 after Clear", l.TotalSize())
	}
}

func TestLadderTouchVersionBumpsOnBestChange(t *testing.T) {
	t.Parallel()
	l := NewLadder(Bid, DefaultMaxDepth)
	v0 := l.TouchVersion()
	l.Apply(tick(50), size(100))
	v1 := l.TouchVersion()
	if v1 == v0 {
		t.Error("touch version should change on first insert")
	}
	// Updating size at the same best tick should not bump the version.
	l.Apply(tick(50), size(200))
	v2 := l.TouchVersion()
	if v2 != v1 {
		t.Error("touch version should not change when best tick is unchanged")
	}
}
