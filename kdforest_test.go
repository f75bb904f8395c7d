package flann_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flannsearch/flann"
)

// uniform2D generates n points uniform in [0,1)^2 with a fixed seed, the
// fixture shape used by the 2D uniform scenario this index family targets.
func uniform2D(n int, seed int64) *flann.Dataset {
	r := rand.New(rand.NewSource(seed))
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = []float64{r.Float64(), r.Float64()}
	}
	ds, err := flann.NewDataset(rows)
	if err != nil {
		panic(err)
	}
	return ds
}

func buildKDForest(t *testing.T, ds *flann.Dataset, trees int, seed int64) flann.Index {
	t.Helper()
	p := flann.DefaultParams()
	p.Algorithm = flann.AlgorithmKDTree
	p.Trees = trees
	p.Seed = seed
	idx, err := flann.BuildIndex(ds, p)
	require.NoError(t, err)
	return idx
}

func TestKDForestUnlimitedChecksMatchesExactNN(t *testing.T) {
	ds := uniform2D(1000, 1)
	idx := buildKDForest(t, ds, 4, 1)

	linearParams := flann.DefaultParams()
	linearParams.Algorithm = flann.AlgorithmLinear
	linear, err := flann.BuildIndex(ds, linearParams)
	require.NoError(t, err)

	query := [][]float64{{0.5, 0.5}}
	sp := flann.DefaultSearchParams()
	sp.Checks = flann.UnlimitedChecks

	gotIDs, gotDists, err := idx.KNNSearch(query, 5, sp)
	require.NoError(t, err)
	wantIDs, _, err := linear.KNNSearch(query, 5, sp)
	require.NoError(t, err)

	assert.Len(t, gotIDs[0], 5)
	assert.ElementsMatch(t, wantIDs[0], gotIDs[0], "exact-mode kd-forest must match the linear-scan ground truth")
	assert.True(t, isNonDecreasing(gotDists[0]))
}

func TestKDForestBuildIsDeterministicForFixedSeed(t *testing.T) {
	ds := uniform2D(200, 5)
	idxA := buildKDForest(t, ds, 4, 99)
	idxB := buildKDForest(t, ds, 4, 99)

	sp := flann.DefaultSearchParams()
	query := [][]float64{{0.2, 0.8}, {0.9, 0.1}}
	idsA, distA, err := idxA.KNNSearch(query, 5, sp)
	require.NoError(t, err)
	idsB, distB, err := idxB.KNNSearch(query, 5, sp)
	require.NoError(t, err)

	assert.Equal(t, idsA, idsB, "same seed must produce byte-identical results")
	assert.Equal(t, distA, distB)
}

func TestKDForestRejectsNonAdditiveDistance(t *testing.T) {
	ds := uniform2D(10, 1)
	p := flann.DefaultParams()
	p.Algorithm = flann.AlgorithmKDTree
	p.Distance = flann.LInfDistance{}
	_, err := flann.BuildIndex(ds, p)
	assert.Error(t, err, "kd-forest requires an additive distance")
}

func TestKDForestRadiusSearchBound(t *testing.T) {
	ds := uniform2D(500, 2)
	idx := buildKDForest(t, ds, 4, 2)
	ids, dists, count, err := idx.RadiusSearch([]float64{0.5, 0.5}, 0.1, flann.DefaultSearchParams())
	require.NoError(t, err)
	assert.Equal(t, len(ids), count)
	for _, d := range dists {
		assert.LessOrEqual(t, d, 0.1+1e-9)
	}
}

func isNonDecreasing(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i]+1e-12 < v[i-1] {
			return false
		}
	}
	return true
}

func TestKDForestRemovedIDsNeverReturned(t *testing.T) {
	ds := uniform2D(50, 3)
	idx := buildKDForest(t, ds, 4, 3)
	require.NoError(t, idx.RemovePoint(3))
	require.NoError(t, idx.RemovePoint(17))

	sp := flann.DefaultSearchParams()
	sp.Checks = flann.UnlimitedChecks
	ids, _, err := idx.KNNSearch([][]float64{{0.5, 0.5}}, 40, sp)
	require.NoError(t, err)
	for _, id := range ids[0] {
		assert.NotEqual(t, 3, id)
		assert.NotEqual(t, 17, id)
	}
}

func TestKDForestUsedMemoryPositive(t *testing.T) {
	ds := uniform2D(100, 4)
	idx := buildKDForest(t, ds, 4, 4)
	assert.Greater(t, idx.UsedMemory(), int64(0))
}

func TestKDForestQueryDimensionMismatch(t *testing.T) {
	ds := uniform2D(10, 1)
	idx := buildKDForest(t, ds, 4, 1)
	_, _, err := idx.KNNSearch([][]float64{{0.1, 0.1, 0.1}}, 1, flann.DefaultSearchParams())
	assert.Error(t, err)
}

func TestKDForestKNNNonPositive(t *testing.T) {
	ds := uniform2D(10, 1)
	idx := buildKDForest(t, ds, 4, 1)
	_, _, err := idx.KNNSearch([][]float64{{0.1, 0.1}}, 0, flann.DefaultSearchParams())
	assert.Error(t, err)
}

func TestKDForestRadiusNegative(t *testing.T) {
	ds := uniform2D(10, 1)
	idx := buildKDForest(t, ds, 4, 1)
	_, _, _, err := idx.RadiusSearch([]float64{0, 0}, -1, flann.DefaultSearchParams())
	assert.Error(t, err)
}

func TestKDForestPrecisionApproachesOneWithMoreChecks(t *testing.T) {
	ds := uniform2D(2000, 11)
	idx := buildKDForest(t, ds, 4, 11)
	linearParams := flann.DefaultParams()
	linearParams.Algorithm = flann.AlgorithmLinear
	linear, err := flann.BuildIndex(ds, linearParams)
	require.NoError(t, err)

	query := [][]float64{{0.5, 0.5}}
	exactSp := flann.DefaultSearchParams()
	exactSp.Checks = flann.UnlimitedChecks
	want, _, err := linear.KNNSearch(query, 5, exactSp)
	require.NoError(t, err)

	sp := flann.DefaultSearchParams()
	sp.Checks = 1000
	got, _, err := idx.KNNSearch(query, 5, sp)
	require.NoError(t, err)

	hits := 0
	wantSet := map[int]bool{}
	for _, id := range want[0] {
		wantSet[id] = true
	}
	for _, id := range got[0] {
		if wantSet[id] {
			hits++
		}
	}
	assert.GreaterOrEqual(t, hits, 3, "a generous check budget should recover most of the exact top-5")
}
