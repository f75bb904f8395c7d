package flann

// Index is the closed variant of index families spec §9 describes: linear,
// k-d forest, k-means tree, composite, and (transparently, via Params)
// autotuned or loaded-from-disk. Every concrete index type implements it;
// buildFromParams (registry.go) dispatches on Params.Algorithm to pick a
// constructor.
type Index interface {
	// Dim returns the dataset dimensionality D.
	Dim() int
	// Len returns the number of live (non-removed) points.
	Len() int
	// UsedMemory estimates the index's resident memory in bytes,
	// consumed by the autotuner's memory_weight cost term.
	UsedMemory() int64

	// FindNeighbors runs a single query against a caller-provided result
	// set, honoring sp's check budget and epsilon slack (spec §2 data
	// flow, §4.4/§4.5 search algorithms).
	FindNeighbors(query []float64, rs resultSet, sp SearchParams) error

	// KNNSearch runs M independent queries, each looking for the K
	// nearest neighbors. Per query, len(results) == min(K, Len()) (spec
	// §8 invariant 2).
	KNNSearch(queries [][]float64, k int, sp SearchParams) ([][]int, [][]float64, error)

	// RadiusSearch finds every point within r of query, subject to
	// sp.MaxNeighbors (spec §8 invariant 3, §9 Open Question 1 for the
	// MaxNeighbors==0 count-only mode). Results are always sorted by
	// distance, whatever sp.Sorted says.
	RadiusSearch(query []float64, r float64, sp SearchParams) (ids []int, dists []float64, count int, err error)

	// AddPoints extends the dataset, triggering a full rebuild once the
	// new size exceeds rebuildThreshold * original size (spec §6).
	AddPoints(points [][]float64, rebuildThreshold float64) error

	// RemovePoint tombstones id; it is filtered out of all subsequent
	// query results but the underlying storage is not compacted (spec
	// §6).
	RemovePoint(id int) error

	// Stats returns a snapshot of this index's operational counters
	// (queries, inserts, removals, rebuilds, and query timing).
	Stats() Snapshot

	// algorithm reports which Algorithm tag built this index, used by
	// persistence and the composite index.
	algorithm() Algorithm
}

// splitNeighbors converts a result set's accepted neighbors into the
// parallel (ids, dists) slices KNNSearch/RadiusSearch return.
func splitNeighbors(ns []neighbor) (ids []int, dists []float64) {
	ids = make([]int, len(ns))
	dists = make([]float64, len(ns))
	for i, n := range ns {
		ids[i] = n.id
		dists[i] = n.dist
	}
	return ids, dists
}
