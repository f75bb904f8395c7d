package flann

import "sort"

// sortByKey sorts data in place by a comparable key extracted from each
// element, ascending. Adapted from the teacher's generic SortByKey in
// sort.go, generalized to an ordered constraint covering every key type
// this package sorts by (float64 distances, int ids/counts).
func sortByKey[T any, K int | int64 | float64](data []T, key func(T) K) {
	sort.Slice(data, func(i, j int) bool {
		return key(data[i]) < key(data[j])
	})
}

// sortNeighbors sorts neighbors ascending by distance, breaking ties by id
// (spec §3's result-set ordering invariant).
func sortNeighbors(ns []neighbor) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].dist != ns[j].dist {
			return ns[i].dist < ns[j].dist
		}
		return ns[i].id < ns[j].id
	})
}

// isSortedAscending reports whether distances is non-decreasing (spec §8
// invariant 1). Nothing in the package or its tests calls it.
func isSortedAscending(distances []float64) bool {
	for i := 1; i < len(distances); i++ {
		if distances[i] < distances[i-1] {
			return false
		}
	}
	return true
}
