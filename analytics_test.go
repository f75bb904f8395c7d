package flann

import (
	"math"
	"testing"
	"time"
)

func TestOperationalStatsRecordQuery(t *testing.T) {
	s := NewOperationalStats()
	s.RecordQuery(10 * time.Millisecond)
	s.RecordQuery(30 * time.Millisecond)
	s.RecordQuery(20 * time.Millisecond)
	snap := s.Snapshot()
	if snap.QueryCount != 3 {
		t.Fatalf("QueryCount = %d, want 3", snap.QueryCount)
	}
	if snap.MinQueryTimeNs != (10 * time.Millisecond).Nanoseconds() {
		t.Fatalf("MinQueryTimeNs = %d, want %d", snap.MinQueryTimeNs, (10 * time.Millisecond).Nanoseconds())
	}
	if snap.MaxQueryTimeNs != (30 * time.Millisecond).Nanoseconds() {
		t.Fatalf("MaxQueryTimeNs = %d, want %d", snap.MaxQueryTimeNs, (30 * time.Millisecond).Nanoseconds())
	}
	wantAvg := (10 + 30 + 20) * time.Millisecond.Nanoseconds() / 3
	if snap.AvgQueryTimeNs != wantAvg {
		t.Fatalf("AvgQueryTimeNs = %d, want %d", snap.AvgQueryTimeNs, wantAvg)
	}
}

func TestOperationalStatsEmptySnapshot(t *testing.T) {
	s := NewOperationalStats()
	snap := s.Snapshot()
	if snap.QueryCount != 0 || snap.MinQueryTimeNs != 0 || snap.AvgQueryTimeNs != 0 {
		t.Fatalf("fresh Snapshot should be all-zero: %+v", snap)
	}
}

func TestOperationalStatsInsertRemoveRebuild(t *testing.T) {
	s := NewOperationalStats()
	s.RecordInsert(5)
	s.RecordInsert(3)
	s.RecordRemove()
	s.RecordRebuild()
	snap := s.Snapshot()
	if snap.InsertCount != 8 {
		t.Fatalf("InsertCount = %d, want 8", snap.InsertCount)
	}
	if snap.RemoveCount != 1 {
		t.Fatalf("RemoveCount = %d, want 1", snap.RemoveCount)
	}
	if snap.RebuildCount != 1 {
		t.Fatalf("RebuildCount = %d, want 1", snap.RebuildCount)
	}
}

func TestComputeDistanceDistribution(t *testing.T) {
	d := ComputeDistanceDistribution([]float64{1, 2, 3, 4, 5})
	if d.Count != 5 {
		t.Fatalf("Count = %d, want 5", d.Count)
	}
	if d.Min != 1 || d.Max != 5 {
		t.Fatalf("Min/Max = %v/%v, want 1/5", d.Min, d.Max)
	}
	if math.Abs(d.Mean-3) > 1e-9 {
		t.Fatalf("Mean = %v, want 3", d.Mean)
	}
	if math.Abs(d.Median-3) > 1e-9 {
		t.Fatalf("Median = %v, want 3", d.Median)
	}
}

func TestComputeDistanceDistributionEmpty(t *testing.T) {
	d := ComputeDistanceDistribution(nil)
	if d.Count != 0 {
		t.Fatalf("Count for empty input = %d, want 0", d.Count)
	}
}
