package flann

import (
	"sync"
	"time"
)

// compositeIndex holds one k-d forest and one k-means tree over the same
// dataset (spec §4.6). FindNeighbors runs both against the same result
// set — a union, not a race; the result set's own duplicate rejection
// handles points either sub-index would have found on its own.
type compositeIndex struct {
	mu     sync.RWMutex
	base   baseIndex
	forest *kdForestIndex
	tree   *kmeansTreeIndex
}

func newCompositeIndex(ds *Dataset, dist Distance, p Params) (*compositeIndex, error) {
	forest, err := newKDForestIndex(ds, dist, p.Trees, p.Seed)
	if err != nil {
		return nil, err
	}
	tree, err := newKMeansTreeIndex(ds, dist, p.Branching, p.Iterations, p.CentersInit, p.CBIndex, p.Seed)
	if err != nil {
		return nil, err
	}
	return &compositeIndex{
		base:   newBaseIndex(ds, dist),
		forest: forest,
		tree:   tree,
	}, nil
}

func (c *compositeIndex) algorithm() Algorithm { return AlgorithmComposite }

func (c *compositeIndex) Dim() int { c.mu.RLock(); defer c.mu.RUnlock(); return c.base.dim() }
func (c *compositeIndex) Len() int { c.mu.RLock(); defer c.mu.RUnlock(); return c.base.live() }
func (c *compositeIndex) UsedMemory() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.forest.UsedMemory() + c.tree.UsedMemory()
}

func (c *compositeIndex) FindNeighbors(query []float64, rs resultSet, sp SearchParams) error {
	start := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	defer func() { c.base.recordQuery(time.Since(start)) }()
	if err := c.forest.FindNeighbors(query, rs, sp); err != nil {
		return err
	}
	return c.tree.FindNeighbors(query, rs, sp)
}

func (c *compositeIndex) Stats() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.base.stats.Snapshot()
}

func (c *compositeIndex) KNNSearch(queries [][]float64, k int, sp SearchParams) ([][]int, [][]float64, error) {
	if k <= 0 {
		return nil, nil, invalidParamf("KNNSearch", "k must be positive, got %d", k)
	}
	idsOut := make([][]int, len(queries))
	distOut := make([][]float64, len(queries))
	for qi, q := range queries {
		rs := newTopKResultSet(k)
		if err := c.FindNeighbors(q, rs, sp); err != nil {
			return nil, nil, err
		}
		idsOut[qi], distOut[qi] = splitNeighbors(rs.neighbors())
	}
	return idsOut, distOut, nil
}

func (c *compositeIndex) RadiusSearch(query []float64, r float64, sp SearchParams) ([]int, []float64, int, error) {
	if r < 0 {
		return nil, nil, 0, invalidParamf("RadiusSearch", "radius must be >= 0, got %f", r)
	}
	if sp.MaxNeighbors < 0 {
		return nil, nil, 0, capacityExceededf("RadiusSearch", "max_neighbors must be >= 0, got %d", sp.MaxNeighbors)
	}
	rs := newRadiusResultSet(r, sp.MaxNeighbors)
	if err := c.FindNeighbors(query, rs, sp); err != nil {
		return nil, nil, 0, err
	}
	ns := rs.neighbors()
	if sp.MaxNeighbors == 0 {
		return nil, nil, len(ns), nil
	}
	ids, dists := splitNeighbors(ns)
	return ids, dists, len(ids), nil
}

// AddPoints extends the one dataset shared by both sub-indices, then
// rebuilds both unconditionally once past rebuildThreshold (spec
// "Supplemented features": the original's CompositeIndex has no per-child
// divergence logic). The append happens exactly once here rather than via
// each sub-index's own AddPoints, since forest and tree alias the same
// underlying Dataset and a second append would duplicate every row.
func (c *compositeIndex) AddPoints(points [][]float64, rebuildThreshold float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rebuildBoth := func() error {
		if err := c.forest.build(); err != nil {
			return err
		}
		return c.tree.build()
	}
	if err := c.base.addPointsAndMaybeRebuild("AddPoints", points, rebuildThreshold, rebuildBoth); err != nil {
		return err
	}
	rows := c.base.dataset.Rows()
	c.forest.base.tombstones.grow(rows)
	c.forest.base.originalSize = c.base.originalSize
	c.tree.base.tombstones.grow(rows)
	c.tree.base.originalSize = c.base.originalSize
	return nil
}

func (c *compositeIndex) RemovePoint(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.forest.RemovePoint(id); err != nil {
		return err
	}
	if err := c.tree.RemovePoint(id); err != nil {
		return err
	}
	return c.base.removePoint("RemovePoint", id)
}
