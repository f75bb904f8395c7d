package flann

// branch is a deferred subtree paired with a lower-bound distance to the
// query, per spec §3. node is an opaque handle into whichever tree owns
// it (a *kdNode or a *kmeansNode); callers type-assert it back.
type branch struct {
	node any
	lb   float64
}

// branchHeap is a min-heap over branch.lb, ordered so Pop always returns
// the most promising (smallest lower bound) deferred subtree, per spec
// §4.2's "best-bin-first" contract. It uses 1-based indexing internally
// (index 0 is unused) as spec'd, and silently drops insertions past its
// capacity: branches that deep in the heap would never surface within the
// check budget anyway (spec §4.2 rationale).
type branchHeap struct {
	items []branch // items[0] is unused; the root lives at items[1]
	cap   int      // 0 means unbounded
}

// newBranchHeap creates a heap. capacity <= 0 means unbounded.
func newBranchHeap(capacity int) *branchHeap {
	return &branchHeap{items: make([]branch, 1, 64), cap: capacity}
}

// insert pushes a branch, maintaining the min-heap property. If the heap
// is at capacity, the insertion is silently dropped.
func (h *branchHeap) insert(b branch) {
	if h.cap > 0 && len(h.items)-1 >= h.cap {
		return
	}
	h.items = append(h.items, b)
	h.siftUp(len(h.items) - 1)
}

// popMin removes and returns the branch with the smallest lb, or ok=false
// if the heap is empty.
func (h *branchHeap) popMin() (branch, bool) {
	n := len(h.items) - 1
	if n == 0 {
		return branch{}, false
	}
	top := h.items[1]
	h.items[1] = h.items[n]
	h.items = h.items[:n]
	if n > 1 {
		h.siftDown(1)
	}
	return top, true
}

func (h *branchHeap) len() int { return len(h.items) - 1 }

func (h *branchHeap) clear() {
	h.items = h.items[:1]
}

func (h *branchHeap) siftUp(i int) {
	for i > 1 {
		parent := i / 2
		if h.items[parent].lb <= h.items[i].lb {
			break
		}
		h.items[parent], h.items[i] = h.items[i], h.items[parent]
		i = parent
	}
}

func (h *branchHeap) siftDown(i int) {
	n := len(h.items) - 1
	for {
		left := 2 * i
		right := left + 1
		smallest := i
		if left <= n && h.items[left].lb < h.items[smallest].lb {
			smallest = left
		}
		if right <= n && h.items[right].lb < h.items[smallest].lb {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[smallest], h.items[i] = h.items[i], h.items[smallest]
		i = smallest
	}
}
