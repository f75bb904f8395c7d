package flann

import "math"

// neighbor is one accepted (distance, id) pair.
type neighbor struct {
	dist float64
	id   int
}

// resultSet is the shared bounded/unbounded accumulator searches offer
// candidates to, per spec §3/§4.3. Implementations never hold duplicate
// ids (an add of an id already present is rejected), and Worst reports the
// pruning threshold traversal code uses to skip hopeless branches.
type resultSet interface {
	// add offers a candidate. It returns true if the candidate was
	// accepted into the set.
	add(dist float64, id int) bool
	// worst is the pruning threshold: for top-K, the largest distance
	// currently accepted, or +Inf if the set is not yet full; for radius,
	// always the caller-supplied radius.
	worst() float64
	// full reports whether the set has reached capacity and further
	// candidates can only displace the current worst.
	full() bool
	// neighbors returns the accepted (distance, id) pairs in ascending
	// distance order.
	neighbors() []neighbor
	// seen reports whether id is currently held in the set. The tree
	// searches do not call it; they suppress duplicates across trees with
	// their own per-query checked bitset.
	seen(id int) bool
}

// topKResultSet holds at most K (distance, id) pairs, sorted ascending by
// distance, break ties by id (spec §4.3).
type topKResultSet struct {
	k     int
	items []neighbor
	ids   map[int]bool
}

func newTopKResultSet(k int) *topKResultSet {
	return &topKResultSet{k: k, items: make([]neighbor, 0, k), ids: make(map[int]bool, k)}
}

func (r *topKResultSet) worst() float64 {
	if len(r.items) < r.k {
		return math.Inf(1)
	}
	return r.items[len(r.items)-1].dist
}

func (r *topKResultSet) full() bool { return len(r.items) >= r.k }

func (r *topKResultSet) seen(id int) bool { return r.ids[id] }

func (r *topKResultSet) add(dist float64, id int) bool {
	if r.ids[id] {
		return false
	}
	if r.full() && dist >= r.worst() {
		return false
	}
	// insertion sort into the (small, K-bounded) sorted slice
	pos := len(r.items)
	for pos > 0 && (r.items[pos-1].dist > dist || (r.items[pos-1].dist == dist && r.items[pos-1].id > id)) {
		pos--
	}
	r.items = append(r.items, neighbor{})
	copy(r.items[pos+1:], r.items[pos:])
	r.items[pos] = neighbor{dist: dist, id: id}
	r.ids[id] = true
	if len(r.items) > r.k {
		dropped := r.items[len(r.items)-1]
		r.items = r.items[:r.k]
		delete(r.ids, dropped.id)
	}
	return true
}

func (r *topKResultSet) neighbors() []neighbor {
	out := make([]neighbor, len(r.items))
	copy(out, r.items)
	return out
}

// radiusResultSet accepts every candidate within a fixed radius r, per
// spec §3's radius variant. It grows without bound when maxNeighbor <= 0;
// otherwise it stops accepting once it holds maxNeighbor candidates. Its
// neighbors are always returned sorted ascending by distance.
type radiusResultSet struct {
	radius      float64
	maxNeighbor int // <=0 means unbounded
	items       []neighbor
	ids         map[int]bool
}

func newRadiusResultSet(radius float64, maxNeighbors int) *radiusResultSet {
	return &radiusResultSet{radius: radius, maxNeighbor: maxNeighbors, ids: make(map[int]bool)}
}

func (r *radiusResultSet) worst() float64 { return r.radius }

func (r *radiusResultSet) full() bool {
	return r.maxNeighbor > 0 && len(r.items) >= r.maxNeighbor
}

func (r *radiusResultSet) seen(id int) bool { return r.ids[id] }

func (r *radiusResultSet) add(dist float64, id int) bool {
	if dist > r.radius || r.ids[id] {
		return false
	}
	if r.full() {
		return false
	}
	r.items = append(r.items, neighbor{dist: dist, id: id})
	r.ids[id] = true
	return true
}

func (r *radiusResultSet) neighbors() []neighbor {
	out := make([]neighbor, len(r.items))
	copy(out, r.items)
	sortNeighbors(out)
	return out
}
