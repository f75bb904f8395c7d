package flann

import "testing"

func TestDenseBitsetSetGetClear(t *testing.T) {
	b := newDenseBitset(130) // spans more than two 64-bit words
	if b.get(0) || b.get(129) {
		t.Fatalf("fresh bitset must read all-zero")
	}
	b.set(0)
	b.set(64)
	b.set(129)
	if !b.get(0) || !b.get(64) || !b.get(129) {
		t.Fatalf("set bits did not read back set")
	}
	if b.count() != 3 {
		t.Fatalf("count() = %d, want 3", b.count())
	}
	b.clearBit(64)
	if b.get(64) {
		t.Fatalf("clearBit(64) did not clear the bit")
	}
	if b.count() != 2 {
		t.Fatalf("count() after clearBit = %d, want 2", b.count())
	}
	b.clear()
	if b.count() != 0 {
		t.Fatalf("count() after clear() = %d, want 0", b.count())
	}
}

func TestDenseBitsetOutOfRangeGetIsFalse(t *testing.T) {
	b := newDenseBitset(10)
	if b.get(-1) || b.get(10) || b.get(1000) {
		t.Fatalf("out-of-range get() must report false, never panic or report true")
	}
}

func TestDenseBitsetGrowPreservesBits(t *testing.T) {
	b := newDenseBitset(10)
	b.set(3)
	b.grow(200)
	if !b.get(3) {
		t.Fatalf("grow() must preserve previously-set bits")
	}
	b.set(150)
	if !b.get(150) {
		t.Fatalf("grow() must make newly in-range bits settable")
	}
	if b.n != 200 {
		t.Fatalf("grow() did not update n, got %d want 200", b.n)
	}
}

func TestDenseBitsetGrowIsNoOpWhenSmaller(t *testing.T) {
	b := newDenseBitset(100)
	before := len(b.words)
	b.grow(10)
	if len(b.words) != before {
		t.Fatalf("grow() to a smaller size must not shrink the backing storage")
	}
}
