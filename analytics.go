package flann

import (
	"math"
	"sort"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

// OperationalStats tracks running operational counters for an index,
// adapted from the teacher's TreeAnalytics (kdtree_analytics.go) down to
// the counters every FLANN index variant shares: queries, inserts, removals,
// and query timing. All fields are safe for concurrent use.
type OperationalStats struct {
	QueryCount  atomic.Int64
	InsertCount atomic.Int64
	RemoveCount atomic.Int64
	RebuildCount atomic.Int64

	TotalQueryTimeNs atomic.Int64
	LastQueryTimeNs  atomic.Int64
	MinQueryTimeNs   atomic.Int64
	MaxQueryTimeNs   atomic.Int64
	LastQueryAt      atomic.Int64 // Unix nanoseconds

	CreatedAt time.Time
}

// NewOperationalStats returns a zeroed tracker with CreatedAt set to now.
func NewOperationalStats() *OperationalStats {
	s := &OperationalStats{CreatedAt: time.Now()}
	s.MinQueryTimeNs.Store(math.MaxInt64)
	return s
}

// RecordQuery records one query's duration.
func (s *OperationalStats) RecordQuery(d time.Duration) {
	ns := d.Nanoseconds()
	s.QueryCount.Add(1)
	s.TotalQueryTimeNs.Add(ns)
	s.LastQueryTimeNs.Store(ns)
	s.LastQueryAt.Store(time.Now().UnixNano())
	for {
		cur := s.MinQueryTimeNs.Load()
		if ns >= cur || s.MinQueryTimeNs.CompareAndSwap(cur, ns) {
			break
		}
	}
	for {
		cur := s.MaxQueryTimeNs.Load()
		if ns <= cur || s.MaxQueryTimeNs.CompareAndSwap(cur, ns) {
			break
		}
	}
}

func (s *OperationalStats) RecordInsert(n int)  { s.InsertCount.Add(int64(n)) }
func (s *OperationalStats) RecordRemove()       { s.RemoveCount.Add(1) }
func (s *OperationalStats) RecordRebuild()      { s.RebuildCount.Add(1) }

// Snapshot is a point-in-time, immutable view of OperationalStats.
type Snapshot struct {
	QueryCount     int64
	InsertCount    int64
	RemoveCount    int64
	RebuildCount   int64
	AvgQueryTimeNs int64
	MinQueryTimeNs int64
	MaxQueryTimeNs int64
	CreatedAt      time.Time
}

// Snapshot takes a consistent-enough read of every counter.
func (s *OperationalStats) Snapshot() Snapshot {
	qc := s.QueryCount.Load()
	var avg int64
	if qc > 0 {
		avg = s.TotalQueryTimeNs.Load() / qc
	}
	minNs := s.MinQueryTimeNs.Load()
	if minNs == math.MaxInt64 {
		minNs = 0
	}
	return Snapshot{
		QueryCount:     qc,
		InsertCount:    s.InsertCount.Load(),
		RemoveCount:    s.RemoveCount.Load(),
		RebuildCount:   s.RebuildCount.Load(),
		AvgQueryTimeNs: avg,
		MinQueryTimeNs: minNs,
		MaxQueryTimeNs: s.MaxQueryTimeNs.Load(),
		CreatedAt:      s.CreatedAt,
	}
}

// DistanceDistribution summarizes the distances a single query's result
// set returned, adapted from the teacher's DistributionStats
// (kdtree_analytics.go ComputeDistributionStats). It is a caller-facing
// helper; the autotuner does not use it.
type DistanceDistribution struct {
	Count    int
	Min, Max float64
	Mean     float64
	Median   float64
	StdDev   float64
	P90, P99 float64
}

// ComputeDistanceDistribution summarizes distances, using gonum's quantile
// and standard-deviation estimators rather than hand-rolled percentile math.
func ComputeDistanceDistribution(distances []float64) DistanceDistribution {
	n := len(distances)
	if n == 0 {
		return DistanceDistribution{}
	}
	sorted := append([]float64(nil), distances...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	return DistanceDistribution{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   mean,
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		StdDev: std,
		P90:    stat.Quantile(0.90, stat.Empirical, sorted, nil),
		P99:    stat.Quantile(0.99, stat.Empirical, sorted, nil),
	}
}
