package flann_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flannsearch/flann"
)

func buildComposite(t *testing.T, ds *flann.Dataset, seed int64) flann.Index {
	t.Helper()
	p := flann.DefaultParams()
	p.Algorithm = flann.AlgorithmComposite
	p.Trees = 4
	p.Branching = 8
	p.Iterations = 10
	p.Seed = seed
	idx, err := flann.BuildIndex(ds, p)
	require.NoError(t, err)
	return idx
}

func TestCompositeUnionOfForestAndTree(t *testing.T) {
	ds := uniform2D(800, 13)
	composite := buildComposite(t, ds, 13)

	forestParams := flann.DefaultParams()
	forestParams.Algorithm = flann.AlgorithmKDTree
	forestParams.Trees = 4
	forestParams.Seed = 13
	forest, err := flann.BuildIndex(ds, forestParams)
	require.NoError(t, err)

	treeParams := flann.DefaultParams()
	treeParams.Algorithm = flann.AlgorithmKMeans
	treeParams.Branching = 8
	treeParams.Iterations = 10
	treeParams.Seed = 13
	tree, err := flann.BuildIndex(ds, treeParams)
	require.NoError(t, err)

	sp := flann.DefaultSearchParams()
	sp.Checks = 64
	query := [][]float64{{0.5, 0.5}}
	k := 5

	compositeIDs, _, err := composite.KNNSearch(query, k, sp)
	require.NoError(t, err)
	forestIDs, _, err := forest.KNNSearch(query, k, sp)
	require.NoError(t, err)
	treeIDs, _, err := tree.KNNSearch(query, k, sp)
	require.NoError(t, err)

	forestSet := map[int]bool{}
	for _, id := range forestIDs[0] {
		forestSet[id] = true
	}
	treeSet := map[int]bool{}
	for _, id := range treeIDs[0] {
		treeSet[id] = true
	}
	compositeSet := map[int]bool{}
	for _, id := range compositeIDs[0] {
		compositeSet[id] = true
	}

	union := 0
	for id := range forestSet {
		if compositeSet[id] {
			union++
		}
	}
	for id := range treeSet {
		if compositeSet[id] {
			union++
		}
	}
	assert.Greater(t, union, 0, "composite must contain at least some of each sub-index's results")
	assert.LessOrEqual(t, len(compositeIDs[0]), k)
}

func TestCompositeAddPointsDoesNotDuplicateRows(t *testing.T) {
	ds := uniform2D(50, 17)
	idx := buildComposite(t, ds, 17)
	before := idx.Len()
	require.NoError(t, idx.AddPoints([][]float64{{0.1, 0.1}, {0.2, 0.2}}, 0))
	assert.Equal(t, before+2, idx.Len(), "AddPoints must append each row exactly once across forest+tree")
}

func TestCompositeRemovePointAppliesToBothSubIndices(t *testing.T) {
	ds := uniform2D(100, 19)
	idx := buildComposite(t, ds, 19)
	require.NoError(t, idx.RemovePoint(0))

	sp := flann.DefaultSearchParams()
	sp.Checks = flann.UnlimitedChecks
	ids, _, err := idx.KNNSearch([][]float64{ds.Row(0)}, 20, sp)
	require.NoError(t, err)
	assert.NotContains(t, ids[0], 0)
}

func TestCompositeUsedMemoryIsSumOfSubIndices(t *testing.T) {
	ds := uniform2D(100, 23)
	idx := buildComposite(t, ds, 23)
	assert.Greater(t, idx.UsedMemory(), int64(0))

	forest := buildKDForest(t, ds, 4, 23)
	treeParams := flann.DefaultParams()
	treeParams.Algorithm = flann.AlgorithmKMeans
	treeParams.Branching = 8
	treeParams.Iterations = 10
	treeParams.Seed = 23
	tree, err := flann.BuildIndex(ds, treeParams)
	require.NoError(t, err)
	assert.Equal(t, forest.UsedMemory()+tree.UsedMemory(), idx.UsedMemory())
}
