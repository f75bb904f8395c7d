package flann

import (
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
)

// kmeansNode is one node of the hierarchical k-means tree (spec §4.5).
// Leaves store their member ids sorted; internal nodes store one child
// per cluster discovered by the Lloyd iteration that built them.
type kmeansNode struct {
	leaf     bool
	ids      []int // leaf only, sorted
	pivot    []float64
	variance float64 // mean squared distance to pivot
	radius   float64 // max squared distance to pivot (a child's value doubles as its ball-pruning radius)
	size     int      // number of points under this node, leaf or internal
	children []*kmeansNode
}

// kmeansTreeIndex is the hierarchical k-means tree of spec §4.5: built by
// recursive clustering, searched either approximately (best-bin-first,
// cluster-boundary-biased) or exactly (sorted-by-pivot-distance with
// triangle-inequality ball pruning).
type kmeansTreeIndex struct {
	mu          sync.RWMutex
	base        baseIndex
	nodes       *arena[kmeansNode]
	root        *kmeansNode
	branching   int
	maxIter     int
	centersInit CentersInit
	cbIndex     float64
	rng         *randomSource
	seed        int64
}

func newKMeansTreeIndex(ds *Dataset, dist Distance, branching, maxIter int, centersInit CentersInit, cbIndex float64, seed int64) (*kmeansTreeIndex, error) {
	if ds.Rows() >= branching && !hasDistinctPoints(ds, dist, 2) {
		return nil, buildFailuref("BuildIndex", "k-means tree requires at least 2 distinct points, dataset has fewer")
	}
	t := &kmeansTreeIndex{
		base:        newBaseIndex(ds, dist),
		nodes:       newArena[kmeansNode](defaultArenaBlockSize),
		branching:   branching,
		maxIter:     maxIter,
		centersInit: centersInit,
		cbIndex:     cbIndex,
		seed:        seed,
	}
	if err := t.build(); err != nil {
		return nil, err
	}
	return t, nil
}

// hasDistinctPoints reports whether ds contains at least want distinct
// points under dist (spec §7 BuildFailure: "all candidate k-means centers
// collapse (fewer than 2 distinct input points)").
func hasDistinctPoints(ds *Dataset, dist Distance, want int) bool {
	if ds.Rows() == 0 {
		return want == 0
	}
	distinct := make([][]float64, 0, want)
	distinct = append(distinct, ds.Row(0))
	for i := 1; i < ds.Rows() && len(distinct) < want; i++ {
		row := ds.Row(i)
		isNew := true
		for _, d := range distinct {
			if dist.Full(row, d, math.Inf(1)) == 0 {
				isNew = false
				break
			}
		}
		if isNew {
			distinct = append(distinct, row)
		}
	}
	return len(distinct) >= want
}

func (t *kmeansTreeIndex) algorithm() Algorithm { return AlgorithmKMeans }

func (t *kmeansTreeIndex) build() error {
	t.nodes.reset()
	t.rng = newRandomSource(t.seed)
	n := t.base.dataset.Rows()
	if n == 0 {
		t.root = nil
		return nil
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	t.root = t.buildNode(ids)
	return nil
}

func (t *kmeansTreeIndex) newNode() *kmeansNode {
	return &t.nodes.allocate(1)[0]
}

// buildNode implements spec §4.5's build algorithm steps 1-5.
func (t *kmeansTreeIndex) buildNode(ids []int) *kmeansNode {
	pivot, variance, radius := t.computeStats(ids)
	n := t.newNode()
	n.pivot, n.variance, n.radius, n.size = pivot, variance, radius, len(ids)

	if len(ids) < t.branching {
		n.leaf = true
		n.ids = append([]int(nil), ids...)
		sort.Ints(n.ids)
		return n
	}

	centers := t.initCenters(ids)
	if len(centers) < t.branching {
		// Degenerate point configuration (spec §4.5 step 3): collapse to a leaf.
		n.leaf = true
		n.ids = append([]int(nil), ids...)
		sort.Ints(n.ids)
		return n
	}

	assign := t.lloyd(ids, centers)

	childIDs := make([][]int, t.branching)
	for i, id := range ids {
		childIDs[assign[i]] = append(childIDs[assign[i]], id)
	}
	var children []*kmeansNode
	for _, sub := range childIDs {
		if len(sub) == 0 {
			continue
		}
		children = append(children, t.buildNode(sub))
	}
	if len(children) < 2 {
		// Lloyd collapsed everything into one cluster: treat as a leaf
		// rather than recursing on an unchanged id set forever.
		n.leaf = true
		n.ids = append([]int(nil), ids...)
		sort.Ints(n.ids)
		n.children = nil
		return n
	}
	n.children = children
	return n
}

// computeStats implements spec §4.5 step 1: pivot is the arithmetic mean,
// variance the mean squared distance to pivot, radius the max squared
// distance to pivot.
func (t *kmeansTreeIndex) computeStats(ids []int) (pivot []float64, variance, radius float64) {
	dim := t.base.dim()
	pivot = make([]float64, dim)
	for _, id := range ids {
		floats.Add(pivot, t.base.dataset.Row(id))
	}
	floats.Scale(1/float64(len(ids)), pivot)

	for _, id := range ids {
		d := t.base.distance.Full(t.base.dataset.Row(id), pivot, math.Inf(1))
		variance += d
		if d > radius {
			radius = d
		}
	}
	variance /= float64(len(ids))
	return pivot, variance, radius
}

// initCenters dispatches to the configured seeding strategy (spec §4.5
// step 3). It may return fewer than t.branching centers when the point
// configuration is too degenerate to find that many distinct ones.
func (t *kmeansTreeIndex) initCenters(ids []int) [][]float64 {
	switch t.centersInit {
	case CentersGonzales:
		return t.initGonzales(ids)
	case CentersKMeansPP:
		return t.initKMeansPP(ids)
	default:
		return t.initRandom(ids)
	}
}

func (t *kmeansTreeIndex) isDuplicateCenter(centers [][]float64, cand []float64) bool {
	for _, c := range centers {
		if t.base.distance.Full(cand, c, math.Inf(1)) == 0 {
			return true
		}
	}
	return false
}

// initRandom picks distinct points uniformly, rejecting duplicates of an
// already-picked center (spec §4.5 step 3 "random").
func (t *kmeansTreeIndex) initRandom(ids []int) [][]float64 {
	perm := t.rng.permutation(len(ids))
	centers := make([][]float64, 0, t.branching)
	for _, pi := range perm {
		if len(centers) == t.branching {
			break
		}
		cand := t.base.dataset.Row(ids[pi])
		if !t.isDuplicateCenter(centers, cand) {
			centers = append(centers, append([]float64(nil), cand...))
		}
	}
	return centers
}

// initGonzales seeds a random first center, then repeatedly adds the
// point farthest (in min-distance-to-any-center) from the current set
// (spec §4.5 step 3 "gonzales").
func (t *kmeansTreeIndex) initGonzales(ids []int) [][]float64 {
	first := ids[t.rng.intn(len(ids))]
	centers := [][]float64{append([]float64(nil), t.base.dataset.Row(first)...)}
	for len(centers) < t.branching && len(centers) < len(ids) {
		bestID := -1
		bestDist := 0.0
		for _, id := range ids {
			minD := t.minDistToCenters(id, centers)
			if minD > bestDist {
				bestDist = minD
				bestID = id
			}
		}
		if bestID < 0 {
			break
		}
		centers = append(centers, append([]float64(nil), t.base.dataset.Row(bestID)...))
	}
	return centers
}

// initKMeansPP seeds a random first center, then picks each subsequent
// center with probability proportional to its squared distance to the
// nearest existing center (spec §4.5 step 3 "kmeans++"). Distance here is
// the configured Distance functor's value, which for the default squared
// L2 distance already is d(p,c)^2.
func (t *kmeansTreeIndex) initKMeansPP(ids []int) [][]float64 {
	first := ids[t.rng.intn(len(ids))]
	centers := [][]float64{append([]float64(nil), t.base.dataset.Row(first)...)}
	for len(centers) < t.branching && len(centers) < len(ids) {
		weights := make([]float64, len(ids))
		anyPositive := false
		for i, id := range ids {
			weights[i] = t.minDistToCenters(id, centers)
			if weights[i] > 0 {
				anyPositive = true
			}
		}
		pick := ids[t.rng.weightedPick(weights)]
		if !t.isDuplicateCenter(centers, t.base.dataset.Row(pick)) {
			centers = append(centers, append([]float64(nil), t.base.dataset.Row(pick)...))
		} else if len(centers) >= len(ids) || !anyPositive {
			// every remaining point duplicates an existing center
			break
		}
	}
	return centers
}

func (t *kmeansTreeIndex) minDistToCenters(id int, centers [][]float64) float64 {
	row := t.base.dataset.Row(id)
	min := math.Inf(1)
	for _, c := range centers {
		d := t.base.distance.Full(row, c, math.Inf(1))
		if d < min {
			min = d
		}
	}
	return min
}

// lloyd runs Lloyd's algorithm to convergence or maxIter iterations (0
// means until convergence), stealing one point for any cluster that goes
// empty (spec §4.5 step 4). centers are mutated in place; the returned
// slice maps each ids[i] to its final cluster index.
func (t *kmeansTreeIndex) lloyd(ids []int, centers [][]float64) []int {
	dim := t.base.dim()
	assign := make([]int, len(ids))
	for i := range assign {
		assign[i] = -1
	}
	unlimited := t.maxIter <= 0
	for iter := 0; unlimited || iter < t.maxIter; iter++ {
		changed := false
		for i, id := range ids {
			row := t.base.dataset.Row(id)
			best, bestD := 0, math.Inf(1)
			for c, center := range centers {
				d := t.base.distance.Full(row, center, math.Inf(1))
				if d < bestD {
					bestD, best = d, c
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}

		sums := make([][]float64, t.branching)
		counts := make([]int, t.branching)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, id := range ids {
			c := assign[i]
			counts[c]++
			floats.Add(sums[c], t.base.dataset.Row(id))
		}

		for c := 0; c < t.branching; c++ {
			if counts[c] > 0 {
				continue
			}
			donor := 0
			for cc := 1; cc < t.branching; cc++ {
				if counts[cc] > counts[donor] {
					donor = cc
				}
			}
			stolenIdx, worstD := -1, -1.0
			for i := range ids {
				if assign[i] != donor {
					continue
				}
				d := t.base.distance.Full(t.base.dataset.Row(ids[i]), centers[donor], math.Inf(1))
				if d > worstD {
					worstD, stolenIdx = d, i
				}
			}
			if stolenIdx < 0 {
				continue
			}
			counts[donor]--
			floats.Sub(sums[donor], t.base.dataset.Row(ids[stolenIdx]))
			assign[stolenIdx] = c
			counts[c] = 1
			copy(sums[c], t.base.dataset.Row(ids[stolenIdx]))
			changed = true
		}

		for c := 0; c < t.branching; c++ {
			if counts[c] > 0 {
				floats.ScaleTo(centers[c], 1/float64(counts[c]), sums[c])
			}
		}
		if !changed {
			break
		}
	}
	return assign
}

func (t *kmeansTreeIndex) Dim() int { t.mu.RLock(); defer t.mu.RUnlock(); return t.base.dim() }
func (t *kmeansTreeIndex) Len() int { t.mu.RLock(); defer t.mu.RUnlock(); return t.base.live() }
func (t *kmeansTreeIndex) UsedMemory() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	used, _ := t.nodes.stats()
	return t.base.usedMemory() + used*int64(nodeSizeEstimate+t.base.dim()*8)
}

func (t *kmeansTreeIndex) Stats() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.base.stats.Snapshot()
}

// FindNeighbors dispatches to the exact triangle-inequality traversal when
// the caller requests an unlimited check budget, and to the approximate
// cluster-boundary-biased best-bin-first traversal otherwise (spec §4.5
// "Search" / "Exact traversal").
func (t *kmeansTreeIndex) FindNeighbors(query []float64, rs resultSet, sp SearchParams) error {
	start := time.Now()
	t.mu.RLock()
	defer t.mu.RUnlock()
	defer func() { t.base.recordQuery(time.Since(start)) }()
	if len(query) != t.base.dim() {
		return dimensionMismatchf("FindNeighbors", "query has %d dims, want %d", len(query), t.base.dim())
	}
	if t.root == nil {
		return nil
	}
	checked := newDenseBitset(t.base.dataset.Rows())
	checks := 0

	if sp.Checks == UnlimitedChecks {
		t.searchExact(t.root, query, rs, checked, &checks)
		return nil
	}

	heap := newBranchHeap(0)
	t.descendFrom(t.root, query, rs, checked, heap, &checks, 0)
	for {
		if checks >= sp.Checks && rs.full() {
			break
		}
		br, ok := heap.popMin()
		if !ok {
			break
		}
		t.descendFrom(br.node.(*kmeansNode), query, rs, checked, heap, &checks, br.lb)
	}
	return nil
}

// descendFrom implements the approximate search of spec §4.5: at an
// internal node, descend directly into the nearest child and defer every
// other child with a cluster-boundary-biased priority; at a leaf, offer
// every member to the result set.
func (t *kmeansTreeIndex) descendFrom(node *kmeansNode, query []float64, rs resultSet, checked *denseBitset, heap *branchHeap, checks *int, lb float64) {
	for {
		if node.leaf {
			for _, id := range node.ids {
				if checked.get(id) {
					continue
				}
				checked.set(id)
				*checks++
				if !t.base.isRemoved(id) {
					d := t.base.distance.Full(query, t.base.dataset.Row(id), rs.worst())
					rs.add(d, id)
				}
			}
			return
		}
		dists := make([]float64, len(node.children))
		bestIdx, bestDist := 0, math.Inf(1)
		for i, c := range node.children {
			d := t.base.distance.Full(query, c.pivot, math.Inf(1))
			dists[i] = d
			if d < bestDist {
				bestDist, bestIdx = d, i
			}
		}
		for i, c := range node.children {
			if i == bestIdx {
				continue
			}
			priority := dists[i] - t.cbIndex*c.variance
			heap.insert(branch{node: c, lb: lb + priority})
		}
		node = node.children[bestIdx]
	}
}

// searchExact implements spec §4.5's "Exact traversal": visit children in
// ascending pivot-distance order, pruning a subtree when
// |q-pivot| - radius >= worst() (the sign-aware squared-distance test).
func (t *kmeansTreeIndex) searchExact(node *kmeansNode, query []float64, rs resultSet, checked *denseBitset, checks *int) {
	if node.leaf {
		for _, id := range node.ids {
			if checked.get(id) {
				continue
			}
			checked.set(id)
			*checks++
			if !t.base.isRemoved(id) {
				d := t.base.distance.Full(query, t.base.dataset.Row(id), rs.worst())
				rs.add(d, id)
			}
		}
		return
	}
	type childDist struct {
		node *kmeansNode
		dist float64
	}
	cds := make([]childDist, len(node.children))
	for i, c := range node.children {
		cds[i] = childDist{c, t.base.distance.Full(query, c.pivot, math.Inf(1))}
	}
	sort.Slice(cds, func(i, j int) bool { return cds[i].dist < cds[j].dist })
	for _, e := range cds {
		w := rs.worst()
		if t.base.distance.Metric() && !math.IsInf(w, 1) {
			b, r := e.dist, e.node.radius
			d := b - r - w
			if d > 0 && d*d-4*r*w > 0 {
				continue
			}
		}
		t.searchExact(e.node, query, rs, checked, checks)
	}
}

func (t *kmeansTreeIndex) KNNSearch(queries [][]float64, k int, sp SearchParams) ([][]int, [][]float64, error) {
	if k <= 0 {
		return nil, nil, invalidParamf("KNNSearch", "k must be positive, got %d", k)
	}
	idsOut := make([][]int, len(queries))
	distOut := make([][]float64, len(queries))
	for qi, q := range queries {
		rs := newTopKResultSet(k)
		if err := t.FindNeighbors(q, rs, sp); err != nil {
			return nil, nil, err
		}
		idsOut[qi], distOut[qi] = splitNeighbors(rs.neighbors())
	}
	return idsOut, distOut, nil
}

func (t *kmeansTreeIndex) RadiusSearch(query []float64, r float64, sp SearchParams) ([]int, []float64, int, error) {
	if r < 0 {
		return nil, nil, 0, invalidParamf("RadiusSearch", "radius must be >= 0, got %f", r)
	}
	if sp.MaxNeighbors < 0 {
		return nil, nil, 0, capacityExceededf("RadiusSearch", "max_neighbors must be >= 0, got %d", sp.MaxNeighbors)
	}
	rs := newRadiusResultSet(r, sp.MaxNeighbors)
	if err := t.FindNeighbors(query, rs, sp); err != nil {
		return nil, nil, 0, err
	}
	ns := rs.neighbors()
	if sp.MaxNeighbors == 0 {
		return nil, nil, len(ns), nil
	}
	ids, dists := splitNeighbors(ns)
	return ids, dists, len(ids), nil
}

func (t *kmeansTreeIndex) AddPoints(points [][]float64, rebuildThreshold float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.base.addPointsAndMaybeRebuild("AddPoints", points, rebuildThreshold, t.build)
}

func (t *kmeansTreeIndex) RemovePoint(id int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.base.removePoint("RemovePoint", id)
}

// ClusterCenters implements spec §4.5's "Additional operation":
// get_cluster_centers(k) greedily splits the node with the largest
// sum-of-variance (variance * size) until k clusters are reached or no
// internal node remains to split.
func (t *kmeansTreeIndex) ClusterCenters(k int) ([][]float64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if k <= 0 {
		return nil, invalidParamf("ClusterCenters", "k must be positive, got %d", k)
	}
	if t.root == nil {
		return nil, nil
	}
	active := []*kmeansNode{t.root}
	for len(active) < k {
		bestIdx, bestScore := -1, -1.0
		for i, n := range active {
			if n.leaf {
				continue
			}
			score := n.variance * float64(n.size)
			if score > bestScore {
				bestScore, bestIdx = score, i
			}
		}
		if bestIdx < 0 {
			break
		}
		node := active[bestIdx]
		active = append(active[:bestIdx], active[bestIdx+1:]...)
		active = append(active, node.children...)
	}
	centers := make([][]float64, len(active))
	for i, n := range active {
		centers[i] = append([]float64(nil), n.pivot...)
	}
	return centers, nil
}
