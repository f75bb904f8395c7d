package flann

import (
	"math"
	"testing"
)

func TestTopKResultSetKeepsKSmallestAscending(t *testing.T) {
	rs := newTopKResultSet(3)
	candidates := []struct {
		d  float64
		id int
	}{{5, 0}, {1, 1}, {9, 2}, {3, 3}, {7, 4}}
	for _, c := range candidates {
		rs.add(c.d, c.id)
	}
	ns := rs.neighbors()
	if len(ns) != 3 {
		t.Fatalf("neighbors() len = %d, want 3", len(ns))
	}
	wantDist := []float64{1, 3, 5}
	wantID := []int{1, 3, 0}
	for i := range wantDist {
		if ns[i].dist != wantDist[i] || ns[i].id != wantID[i] {
			t.Fatalf("neighbors()[%d] = %+v, want dist=%v id=%v", i, ns[i], wantDist[i], wantID[i])
		}
	}
}

func TestTopKResultSetTieBreaksByID(t *testing.T) {
	rs := newTopKResultSet(2)
	rs.add(1, 5)
	rs.add(1, 2)
	ns := rs.neighbors()
	if ns[0].id != 2 || ns[1].id != 5 {
		t.Fatalf("equal-distance neighbors not ordered by id ascending: %+v", ns)
	}
}

func TestTopKResultSetRejectsDuplicateID(t *testing.T) {
	rs := newTopKResultSet(2)
	rs.add(1, 0)
	accepted := rs.add(0.5, 0)
	if accepted {
		t.Fatalf("add() must reject an id already present, even with a smaller distance")
	}
	if len(rs.neighbors()) != 1 {
		t.Fatalf("duplicate add must not grow the result set")
	}
}

func TestTopKResultSetWorstAndFull(t *testing.T) {
	rs := newTopKResultSet(2)
	if rs.full() {
		t.Fatalf("empty result set must not report full")
	}
	if !math.IsInf(rs.worst(), 1) {
		t.Fatalf("worst() on a non-full set must be +Inf")
	}
	rs.add(5, 0)
	rs.add(2, 1)
	if !rs.full() {
		t.Fatalf("result set at capacity must report full")
	}
	if rs.worst() != 5 {
		t.Fatalf("worst() = %v, want 5", rs.worst())
	}
	if rs.add(10, 2) {
		t.Fatalf("add() of a worse candidate than worst() must be rejected once full")
	}
}

func TestRadiusResultSetBoundedAndSorted(t *testing.T) {
	rs := newRadiusResultSet(5, 2)
	rs.add(3, 0)
	rs.add(1, 1)
	rs.add(10, 2) // outside radius
	if rs.add(2, 3) {
		t.Fatalf("add() beyond max neighbors must be rejected")
	}
	ns := rs.neighbors()
	if len(ns) != 2 {
		t.Fatalf("neighbors() len = %d, want 2", len(ns))
	}
	if ns[0].dist > ns[1].dist {
		t.Fatalf("radius neighbors not sorted ascending: %+v", ns)
	}
}

func TestRadiusResultSetUnbounded(t *testing.T) {
	rs := newRadiusResultSet(100, 0)
	for i := 0; i < 50; i++ {
		rs.add(float64(i), i)
	}
	if rs.full() {
		t.Fatalf("maxNeighbor<=0 must mean unbounded, never full")
	}
	if len(rs.neighbors()) != 50 {
		t.Fatalf("expected all 50 candidates accepted")
	}
}
