package flann

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Constants from spec §4.4's build algorithm.
const (
	sampleMeanCount = 100 // SAMPLE_MEAN: max points sampled per dimension when choosing a split
	randDimCount    = 5   // RAND_DIM: top-variance dimensions a split dimension is chosen from
	varianceEps     = 1e-12
)

// kdNode is one node of a randomized k-d tree (spec §3 "KD tree node").
// Internal nodes carry (cutDim, cutVal, left, right); leaves carry a
// single point id (spec §4.4 "One point per leaf"). Nodes are allocated
// out of the forest's arena and referenced only by pointer, never by a
// parent back-reference (spec §9).
type kdNode struct {
	leaf    bool
	pointID int
	cutDim  int
	cutVal  float64
	left    *kdNode
	right   *kdNode
}

// kdForestIndex is the randomized k-d forest of spec §4.4: multiple
// randomized k-d trees searched in parallel via one shared best-bin-first
// heap.
type kdForestIndex struct {
	mu    sync.RWMutex
	base  baseIndex
	nodes *arena[kdNode]
	roots []*kdNode
	trees int
	rng   *randomSource
	seed  int64
}

func newKDForestIndex(ds *Dataset, dist Distance, trees int, seed int64) (*kdForestIndex, error) {
	if !dist.Additive() {
		return nil, invalidParamf("BuildIndex", "kdtree requires an additive distance")
	}
	k := &kdForestIndex{
		base:  newBaseIndex(ds, dist),
		nodes: newArena[kdNode](defaultArenaBlockSize),
		trees: trees,
		seed:  seed,
	}
	if err := k.build(); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *kdForestIndex) algorithm() Algorithm { return AlgorithmKDTree }

func (k *kdForestIndex) build() error {
	k.nodes.reset()
	k.rng = newRandomSource(k.seed)
	n := k.base.dataset.Rows()
	k.roots = make([]*kdNode, 0, k.trees)
	if n == 0 {
		return nil
	}
	for t := 0; t < k.trees; t++ {
		ids := k.rng.permutation(n)
		root := k.buildNode(ids)
		k.roots = append(k.roots, root)
	}
	return nil
}

func (k *kdForestIndex) newLeaf(pointID int) *kdNode {
	n := &k.nodes.allocate(1)[0]
	n.leaf = true
	n.pointID = pointID
	return n
}

// buildNode recursively partitions ids (spec §4.4 steps 2-4). ids is
// mutated in place (swap-partitioned); the backing array is never shared
// with another tree's build.
func (k *kdForestIndex) buildNode(ids []int) *kdNode {
	if len(ids) == 1 {
		return k.newLeaf(ids[0])
	}
	dim, cutVal := k.chooseSplit(ids)
	mid := partitionByDim(ids, k.base.dataset, dim, cutVal)
	if mid == 0 || mid == len(ids) {
		// every point fell on one side (duplicates along this axis);
		// fall back to a median-index split (spec §4.4 step 3).
		sort.Slice(ids, func(i, j int) bool {
			return k.base.dataset.Row(ids[i])[dim] < k.base.dataset.Row(ids[j])[dim]
		})
		mid = len(ids) / 2
	}
	n := &k.nodes.allocate(1)[0]
	n.cutDim = dim
	n.cutVal = cutVal
	n.left = k.buildNode(ids[:mid])
	n.right = k.buildNode(ids[mid:])
	return n
}

// partitionByDim reorders ids in place so that every id with
// coord[dim] < cutVal precedes every id with coord[dim] >= cutVal,
// returning the split index.
func partitionByDim(ids []int, ds *Dataset, dim int, cutVal float64) int {
	i, j := 0, len(ids)-1
	for i <= j {
		for i <= j && ds.Row(ids[i])[dim] < cutVal {
			i++
		}
		for i <= j && ds.Row(ids[j])[dim] >= cutVal {
			j--
		}
		if i < j {
			ids[i], ids[j] = ids[j], ids[i]
			i++
			j--
		}
	}
	return i
}

// chooseSplit implements spec §4.4 step 2: sample up to sampleMeanCount
// points, compute mean/variance per dimension, pick the split dimension
// uniformly at random among the top randDimCount dimensions by variance,
// and use the sample mean along that dimension as the split value.
func (k *kdForestIndex) chooseSplit(ids []int) (dim int, cutVal float64) {
	d := k.base.dim()
	sampleN := len(ids)
	if sampleN > sampleMeanCount {
		sampleN = sampleMeanCount
	}
	sample := ids[:sampleN]

	means := make([]float64, d)
	variances := make([]float64, d)
	vals := make([]float64, len(sample))
	for axis := 0; axis < d; axis++ {
		for i, id := range sample {
			vals[i] = k.base.dataset.Row(id)[axis]
		}
		means[axis], variances[axis] = stat.MeanVariance(vals, nil)
	}

	order := make([]int, d)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return variances[order[i]] > variances[order[j]] })

	if variances[order[0]] < varianceEps {
		// Tie in split dim (spec §4.4 policy): fall back to the first
		// dimension when all sampled variances are effectively zero.
		return 0, means[0]
	}
	top := randDimCount
	if top > d {
		top = d
	}
	pick := order[k.rng.intn(top)]
	return pick, means[pick]
}

func (k *kdForestIndex) Dim() int { k.mu.RLock(); defer k.mu.RUnlock(); return k.base.dim() }
func (k *kdForestIndex) Len() int { k.mu.RLock(); defer k.mu.RUnlock(); return k.base.live() }
func (k *kdForestIndex) UsedMemory() int64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	used, _ := k.nodes.stats()
	return k.base.usedMemory() + used*int64(nodeSizeEstimate)
}

func (k *kdForestIndex) Stats() Snapshot {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.base.stats.Snapshot()
}

// nodeSizeEstimate approximates sizeof(kdNode) in bytes for memory
// accounting purposes (two pointers, an int, a float64, a bool, an int).
const nodeSizeEstimate = 48

// FindNeighbors runs the best-bin-first search of spec §4.4: descend every
// tree to a leaf, deferring unvisited siblings onto one shared heap, then
// drain the heap until the check budget is exhausted and the result set
// is full.
func (k *kdForestIndex) FindNeighbors(query []float64, rs resultSet, sp SearchParams) error {
	start := time.Now()
	k.mu.RLock()
	defer k.mu.RUnlock()
	defer func() { k.base.recordQuery(time.Since(start)) }()
	if len(query) != k.base.dim() {
		return dimensionMismatchf("FindNeighbors", "query has %d dims, want %d", len(query), k.base.dim())
	}
	checked := newDenseBitset(k.base.dataset.Rows())
	heap := newBranchHeap(0)
	checks := 0

	for _, root := range k.roots {
		k.descendFrom(root, query, rs, checked, heap, &checks, 0)
	}

	for {
		if sp.Checks != UnlimitedChecks && checks >= sp.Checks && rs.full() {
			break
		}
		br, ok := heap.popMin()
		if !ok {
			break
		}
		if sp.epsScale(br.lb) >= rs.worst() {
			continue
		}
		k.descendFrom(br.node.(*kdNode), query, rs, checked, heap, &checks, br.lb)
	}
	return nil
}

// descendFrom walks from node toward a leaf, choosing the near child by
// query[cutDim] < cutVal and pushing the far child onto heap with an
// accumulated lower bound, per spec §4.4's "Search" algorithm.
func (k *kdForestIndex) descendFrom(node *kdNode, query []float64, rs resultSet, checked *denseBitset, heap *branchHeap, checks *int, lb float64) {
	for {
		if node.leaf {
			id := node.pointID
			if !checked.get(id) {
				checked.set(id)
				*checks++
				if !k.base.isRemoved(id) {
					d := k.base.distance.Full(query, k.base.dataset.Row(id), rs.worst())
					rs.add(d, id)
				}
			}
			return
		}
		qv := query[node.cutDim]
		var near, far *kdNode
		if qv < node.cutVal {
			near, far = node.left, node.right
		} else {
			near, far = node.right, node.left
		}
		farLB := lb + k.base.distance.Accum(qv, node.cutVal)
		if far != nil {
			heap.insert(branch{node: far, lb: farLB})
		}
		if near == nil {
			return
		}
		node = near
	}
}

func (k *kdForestIndex) KNNSearch(queries [][]float64, kk int, sp SearchParams) ([][]int, [][]float64, error) {
	if kk <= 0 {
		return nil, nil, invalidParamf("KNNSearch", "k must be positive, got %d", kk)
	}
	idsOut := make([][]int, len(queries))
	distOut := make([][]float64, len(queries))
	for qi, q := range queries {
		rs := newTopKResultSet(kk)
		if err := k.FindNeighbors(q, rs, sp); err != nil {
			return nil, nil, err
		}
		idsOut[qi], distOut[qi] = splitNeighbors(rs.neighbors())
	}
	return idsOut, distOut, nil
}

func (k *kdForestIndex) RadiusSearch(query []float64, r float64, sp SearchParams) ([]int, []float64, int, error) {
	if r < 0 {
		return nil, nil, 0, invalidParamf("RadiusSearch", "radius must be >= 0, got %f", r)
	}
	if sp.MaxNeighbors < 0 {
		return nil, nil, 0, capacityExceededf("RadiusSearch", "max_neighbors must be >= 0, got %d", sp.MaxNeighbors)
	}
	rs := newRadiusResultSet(r, sp.MaxNeighbors)
	if err := k.FindNeighbors(query, rs, sp); err != nil {
		return nil, nil, 0, err
	}
	ns := rs.neighbors()
	if sp.MaxNeighbors == 0 {
		return nil, nil, len(ns), nil
	}
	ids, dists := splitNeighbors(ns)
	return ids, dists, len(ids), nil
}

func (k *kdForestIndex) AddPoints(points [][]float64, rebuildThreshold float64) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.base.addPointsAndMaybeRebuild("AddPoints", points, rebuildThreshold, k.build)
}

func (k *kdForestIndex) RemovePoint(id int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.base.removePoint("RemovePoint", id)
}
