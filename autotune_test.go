package flann_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flannsearch/flann"
)

func randomDataset(n, dim int, seed int64) *flann.Dataset {
	r := rand.New(rand.NewSource(seed))
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, dim)
		for d := range row {
			row[d] = r.Float64()
		}
		rows[i] = row
	}
	ds, err := flann.NewDataset(rows)
	if err != nil {
		panic(err)
	}
	return ds
}

func TestAutotuneProducesAWinner(t *testing.T) {
	ds := randomDataset(2000, 16, 31)
	p := flann.DefaultParams()
	p.Algorithm = flann.AlgorithmAutotuned
	p.TargetPrecision = 0.8
	p.SampleFraction = 0.2
	p.BuildWeight = 0.01
	p.MemoryWeight = 0
	p.Seed = 31

	result, err := flann.Autotune(ds, p)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Params.Algorithm)
	assert.GreaterOrEqual(t, result.Precision, 0.0)
	assert.GreaterOrEqual(t, result.Speedup, 0.0)
}

func TestAutotuneBuildIndexDispatchesWinner(t *testing.T) {
	ds := randomDataset(1500, 8, 41)
	p := flann.DefaultParams()
	p.Algorithm = flann.AlgorithmAutotuned
	p.TargetPrecision = 0.7
	p.SampleFraction = 0.2
	p.Seed = 41

	idx, err := flann.BuildIndex(ds, p)
	require.NoError(t, err)
	ids, _, err := idx.KNNSearch([][]float64{ds.Row(0)}, 1, flann.DefaultSearchParams())
	require.NoError(t, err)
	assert.Len(t, ids[0], 1)
}

func TestAutotuneTooFewTestPointsFallsBackToLinear(t *testing.T) {
	ds := randomDataset(50, 4, 1)
	p := flann.DefaultParams()
	p.Algorithm = flann.AlgorithmAutotuned
	p.SampleFraction = 0.05 // sampledN ~ 2, testCount ~ 0
	p.TargetPrecision = 0.9
	p.Seed = 1

	result, err := flann.Autotune(ds, p)
	require.NoError(t, err)
	assert.Equal(t, flann.AlgorithmLinear, result.Params.Algorithm)
	assert.Equal(t, flann.UnlimitedChecks, result.Checks)
	assert.Equal(t, 1.0, result.Precision)
}

func TestAutotuneRejectsInvalidParams(t *testing.T) {
	ds := randomDataset(100, 4, 1)
	p := flann.DefaultParams()
	p.Algorithm = flann.AlgorithmAutotuned
	p.TargetPrecision = 0 // out of (0,1]
	_, err := flann.Autotune(ds, p)
	assert.Error(t, err)
}
