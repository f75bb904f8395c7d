// Package flann implements approximate and exact nearest-neighbor search
// over fixed-dimensionality point sets, following the randomized k-d
// forest, hierarchical k-means tree, composite, and autotuned index
// families of FLANN (spec §1-2).
package flann

// BuildIndex constructs an index over dataset according to params (spec §6
// build_index). AlgorithmAutotuned runs the autotuner first and builds
// using its recommended parameters.
func BuildIndex(dataset *Dataset, params Params) (Index, error) {
	return buildFromParams(dataset, params)
}

// KNNSearch runs len(queries) independent top-K searches against idx (spec
// §6 knn_search). Each result row has min(K, idx.Len()) entries (spec §8
// invariant 2).
func KNNSearch(idx Index, queries [][]float64, k int, sp SearchParams) ([][]int, [][]float64, error) {
	return idx.KNNSearch(queries, k, sp)
}

// RadiusSearch finds every point within r of query (spec §6 radius_search).
// sp.MaxNeighbors == 0 requests count-only mode (spec §9 Open Question 1):
// ids and dists are nil, only count is meaningful.
func RadiusSearch(idx Index, query []float64, r float64, sp SearchParams) (ids []int, dists []float64, count int, err error) {
	return idx.RadiusSearch(query, r, sp)
}

// AddPoints extends idx's dataset, rebuilding once the new size exceeds
// rebuildThreshold * original size (spec §6 add_points).
func AddPoints(idx Index, points [][]float64, rebuildThreshold float64) error {
	return idx.AddPoints(points, rebuildThreshold)
}

// RemovePoint tombstones id in idx (spec §6 remove_point).
func RemovePoint(idx Index, id int) error {
	return idx.RemovePoint(id)
}

// ComputeClusterCenters returns a k-way clustering of dataset (spec §6
// compute_cluster_centers), built via a throwaway k-means tree over the
// given params. params.Algorithm is overridden to AlgorithmKMeans whatever
// it was, so only the branching/iterations/centers_init/cb_index fields
// (validated as for a k-means index) affect the result.
func ComputeClusterCenters(dataset *Dataset, k int, params Params) ([][]float64, error) {
	params.Algorithm = AlgorithmKMeans
	if err := params.Validate("ComputeClusterCenters"); err != nil {
		return nil, err
	}
	tree, err := newKMeansTreeIndex(dataset, params.Distance, params.Branching, params.Iterations, params.CentersInit, params.CBIndex, params.Seed)
	if err != nil {
		return nil, err
	}
	return tree.ClusterCenters(k)
}
