package flann_test

import (
	"fmt"

	"github.com/flannsearch/flann"
)

// Example demonstrates building a k-d forest over a handful of 2D points
// and running a single nearest-neighbor query against it.
func Example() {
	dataset, err := flann.NewDataset([][]float64{
		{0, 0}, {1, 0}, {0, 1}, {1, 1}, {0.5, 0.5},
	})
	if err != nil {
		panic(err)
	}

	params := flann.DefaultParams()
	params.Algorithm = flann.AlgorithmKDTree
	params.Trees = 4

	idx, err := flann.BuildIndex(dataset, params)
	if err != nil {
		panic(err)
	}

	sp := flann.DefaultSearchParams()
	sp.Checks = flann.UnlimitedChecks
	ids, _, err := flann.KNNSearch(idx, [][]float64{{0.5, 0.5}}, 1, sp)
	if err != nil {
		panic(err)
	}

	fmt.Println(ids[0][0])
	// Output: 4
}
