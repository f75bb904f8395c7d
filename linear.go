package flann

import (
	"sync"
	"time"
)

// linearIndex is the brute-force baseline/ground-truth oracle, per spec §1
// ("included only as a baseline and ground-truth oracle") and §4.7 (the
// autotuner's ground truth comes from a linear scan over the sampled
// dataset). It always returns the exact K nearest neighbors; Checks/Eps in
// SearchParams are accepted but ignored since there is no traversal to
// bound.
type linearIndex struct {
	mu   sync.RWMutex
	base baseIndex
}

func newLinearIndex(ds *Dataset, dist Distance) *linearIndex {
	return &linearIndex{base: newBaseIndex(ds, dist)}
}

func (l *linearIndex) algorithm() Algorithm { return AlgorithmLinear }

func (l *linearIndex) Dim() int { l.mu.RLock(); defer l.mu.RUnlock(); return l.base.dim() }
func (l *linearIndex) Len() int { l.mu.RLock(); defer l.mu.RUnlock(); return l.base.live() }
func (l *linearIndex) UsedMemory() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.base.usedMemory()
}

func (l *linearIndex) FindNeighbors(query []float64, rs resultSet, sp SearchParams) error {
	start := time.Now()
	l.mu.RLock()
	defer l.mu.RUnlock()
	defer func() { l.base.recordQuery(time.Since(start)) }()
	if len(query) != l.base.dim() {
		return dimensionMismatchf("FindNeighbors", "query has %d dims, want %d", len(query), l.base.dim())
	}
	for id := 0; id < l.base.dataset.Rows(); id++ {
		if l.base.isRemoved(id) {
			continue
		}
		d := l.base.distance.Full(query, l.base.dataset.Row(id), rs.worst())
		rs.add(d, id)
	}
	return nil
}

// Stats returns a snapshot of this index's operational counters.
func (l *linearIndex) Stats() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.base.stats.Snapshot()
}

func (l *linearIndex) KNNSearch(queries [][]float64, k int, sp SearchParams) ([][]int, [][]float64, error) {
	if k <= 0 {
		return nil, nil, invalidParamf("KNNSearch", "k must be positive, got %d", k)
	}
	idsOut := make([][]int, len(queries))
	distOut := make([][]float64, len(queries))
	for qi, q := range queries {
		rs := newTopKResultSet(k)
		if err := l.FindNeighbors(q, rs, sp); err != nil {
			return nil, nil, err
		}
		idsOut[qi], distOut[qi] = splitNeighbors(rs.neighbors())
	}
	return idsOut, distOut, nil
}

func (l *linearIndex) RadiusSearch(query []float64, r float64, sp SearchParams) ([]int, []float64, int, error) {
	if r < 0 {
		return nil, nil, 0, invalidParamf("RadiusSearch", "radius must be >= 0, got %f", r)
	}
	if sp.MaxNeighbors < 0 {
		return nil, nil, 0, capacityExceededf("RadiusSearch", "max_neighbors must be >= 0, got %d", sp.MaxNeighbors)
	}
	rs := newRadiusResultSet(r, sp.MaxNeighbors)
	if err := l.FindNeighbors(query, rs, sp); err != nil {
		return nil, nil, 0, err
	}
	ns := rs.neighbors()
	if sp.MaxNeighbors == 0 {
		return nil, nil, len(ns), nil
	}
	ids, dists := splitNeighbors(ns)
	return ids, dists, len(ids), nil
}

func (l *linearIndex) AddPoints(points [][]float64, rebuildThreshold float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.base.addPointsAndMaybeRebuild("AddPoints", points, rebuildThreshold, func() error { return nil })
}

func (l *linearIndex) RemovePoint(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.base.removePoint("RemovePoint", id)
}
