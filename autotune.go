package flann

import "time"

// candidateTreeCounts and candidateKMeansGrid are the grid-search spaces
// from spec §4.7 step 4.
var (
	candidateTreeCounts  = []int{1, 4, 8, 16, 32}
	candidateIterations  = []int{1, 5, 10, 15}
	candidateBranchings  = []int{16, 32, 64, 128, 256}
	candidateCBIndexGrid = []float64{0.0, 0.2, 0.4, 0.6, 0.8, 1.0}
)

// CandidateResult records one grid point's measured cost, kept on the
// returned AutotuneResult so callers can inspect the build/search-time
// breakdown the original source tracks separately before combining them
// into a single score (spec "Supplemented features").
type CandidateResult struct {
	Algorithm  Algorithm
	Trees      int
	Iterations int
	Branching  int
	CBIndex    float64
	Checks     int
	Precision  float64
	BuildTime  time.Duration
	SearchTime time.Duration
	MemoryCost float64
	TimeCost   float64
	Score      float64
}

// CandidateFailure records a grid point the autotuner discarded rather
// than surfacing as an error (spec §7: "the autotuner never surfaces
// intermediate candidate failures ... only erroring if all candidates
// failed").
type CandidateFailure struct {
	Algorithm Algorithm
	Detail    string
	Err       error
}

// AutotuneResult is the autotuner's output (spec §4.7): the winning
// parameter set, the checks budget that achieves the target precision
// with it, the measured speedup over linear search, and the full grid
// trace for diagnostics.
type AutotuneResult struct {
	Params     Params
	Checks     int
	Precision  float64
	Speedup    float64
	Candidates []CandidateResult
	Failures   []CandidateFailure
}

// Autotune implements spec §4.7's procedure: sample the dataset, compute
// ground truth via linear scan, grid-search k-d forest and k-means tree
// parameterizations for the cheapest one that reaches p.TargetPrecision,
// refine k-means' cb_index, and report the speedup over linear search.
func Autotune(ds *Dataset, p Params) (*AutotuneResult, error) {
	p.Algorithm = AlgorithmAutotuned
	if err := p.Validate("Autotune"); err != nil {
		return nil, err
	}

	rng := newRandomSource(p.Seed)
	n := ds.Rows()
	sampledN := int(p.SampleFraction * float64(n))
	if sampledN < 1 {
		sampledN = 1
	}
	if sampledN > n {
		sampledN = n
	}
	sampledIDs := rng.uniqueSample(n, sampledN)
	sampled, err := buildSubsetDataset(ds, sampledIDs)
	if err != nil {
		return nil, err
	}

	testCount := sampledN / 10
	if testCount > 1000 {
		testCount = 1000
	}

	linear := newLinearIndex(sampled, p.Distance)

	if testCount < 10 {
		// Spec §4.7 step 2: too few test points to measure precision
		// meaningfully; fall back to exact linear search.
		return &AutotuneResult{
			Params:    Params{Algorithm: AlgorithmLinear, Distance: p.Distance, Seed: p.Seed},
			Checks:    UnlimitedChecks,
			Precision: 1,
			Speedup:   1,
		}, nil
	}

	testIDs := rng.uniqueSample(sampledN, testCount)
	queries := make([][]float64, testCount)
	for i, id := range testIDs {
		queries[i] = append([]float64(nil), sampled.Row(id)...)
	}

	k := p.AutotuneK
	groundTruth, _, err := linear.KNNSearch(queries, k, DefaultSearchParams())
	if err != nil {
		return nil, err
	}
	_, linearSearchTime, err := measurePrecision(linear, queries, groundTruth, k, UnlimitedChecks, 0)
	if err != nil {
		return nil, err
	}

	var candidates []CandidateResult
	var failures []CandidateFailure

	for _, trees := range candidateTreeCounts {
		cr, fail := evaluateKDCandidate(sampled, p, trees, queries, groundTruth, k)
		if fail != nil {
			failures = append(failures, *fail)
			continue
		}
		candidates = append(candidates, *cr)
	}
	for _, iters := range candidateIterations {
		for _, branching := range candidateBranchings {
			cr, fail := evaluateKMeansCandidate(sampled, p, iters, branching, 0, queries, groundTruth, k)
			if fail != nil {
				failures = append(failures, *fail)
				continue
			}
			candidates = append(candidates, *cr)
		}
	}

	if len(candidates) == 0 {
		return nil, buildFailuref("Autotune", "every candidate failed (%d failures)", len(failures))
	}

	minTimeCost := candidates[0].BuildTime.Seconds()*p.BuildWeight + candidates[0].SearchTime.Seconds()
	for _, c := range candidates {
		tc := c.BuildTime.Seconds()*p.BuildWeight + c.SearchTime.Seconds()
		if tc < minTimeCost {
			minTimeCost = tc
		}
	}
	if minTimeCost <= 0 {
		minTimeCost = 1
	}
	bestIdx := 0
	bestScore := -1.0
	for i := range candidates {
		c := &candidates[i]
		c.TimeCost = (c.BuildTime.Seconds()*p.BuildWeight + c.SearchTime.Seconds()) / minTimeCost
		c.Score = c.TimeCost + p.MemoryWeight*c.MemoryCost
		if bestScore < 0 || c.Score < bestScore {
			bestScore, bestIdx = c.Score, i
		}
	}
	winner := candidates[bestIdx]

	// Spec §4.7 step 6: refine cb_index for a k-means winner only.
	if winner.Algorithm == AlgorithmKMeans {
		bestSearch := winner.SearchTime
		for _, cb := range candidateCBIndexGrid {
			cr, fail := evaluateKMeansCandidate(sampled, p, winner.Iterations, winner.Branching, cb, queries, groundTruth, k)
			if fail != nil {
				failures = append(failures, *fail)
				continue
			}
			candidates = append(candidates, *cr)
			if cr.SearchTime < bestSearch {
				bestSearch = cr.SearchTime
				winner = *cr
			}
		}
	}

	resultParams := Params{
		Algorithm:   winner.Algorithm,
		Trees:       winner.Trees,
		Branching:   winner.Branching,
		Iterations:  winner.Iterations,
		CentersInit: p.CentersInit,
		CBIndex:     winner.CBIndex,
		Distance:    p.Distance,
		Seed:        p.Seed,
	}

	speedup := 1.0
	if winner.SearchTime > 0 {
		speedup = linearSearchTime.Seconds() / winner.SearchTime.Seconds()
	}

	sortByKey(candidates, func(c CandidateResult) float64 { return c.Score })

	return &AutotuneResult{
		Params:     resultParams,
		Checks:     winner.Checks,
		Precision:  winner.Precision,
		Speedup:    speedup,
		Candidates: candidates,
		Failures:   failures,
	}, nil
}

func evaluateKDCandidate(sampled *Dataset, p Params, trees int, queries [][]float64, groundTruth [][]int, k int) (*CandidateResult, *CandidateFailure) {
	start := time.Now()
	idx, err := newKDForestIndex(sampled, p.Distance, trees, p.Seed)
	buildTime := time.Since(start)
	if err != nil {
		return nil, &CandidateFailure{Algorithm: AlgorithmKDTree, Detail: "build", Err: err}
	}
	checks, prec, searchTime, err := checksAtPrecision(idx, queries, groundTruth, k, p.TargetPrecision, 0)
	if err != nil {
		return nil, &CandidateFailure{Algorithm: AlgorithmKDTree, Detail: "search", Err: err}
	}
	return &CandidateResult{
		Algorithm:  AlgorithmKDTree,
		Trees:      trees,
		Checks:     checks,
		Precision:  prec,
		BuildTime:  buildTime,
		SearchTime: searchTime,
		MemoryCost: float64(idx.UsedMemory()) / float64(sampled.bytes()),
	}, nil
}

func evaluateKMeansCandidate(sampled *Dataset, p Params, iterations, branching int, cbIndex float64, queries [][]float64, groundTruth [][]int, k int) (*CandidateResult, *CandidateFailure) {
	start := time.Now()
	idx, err := newKMeansTreeIndex(sampled, p.Distance, branching, iterations, p.CentersInit, cbIndex, p.Seed)
	buildTime := time.Since(start)
	if err != nil {
		return nil, &CandidateFailure{Algorithm: AlgorithmKMeans, Detail: "build", Err: err}
	}
	checks, prec, searchTime, err := checksAtPrecision(idx, queries, groundTruth, k, p.TargetPrecision, 0)
	if err != nil {
		return nil, &CandidateFailure{Algorithm: AlgorithmKMeans, Detail: "search", Err: err}
	}
	return &CandidateResult{
		Algorithm:  AlgorithmKMeans,
		Iterations: iterations,
		Branching:  branching,
		CBIndex:    cbIndex,
		Checks:     checks,
		Precision:  prec,
		BuildTime:  buildTime,
		SearchTime: searchTime,
		MemoryCost: float64(idx.UsedMemory()) / float64(sampled.bytes()),
	}, nil
}

// buildSubsetDataset copies the rows at ids into a new owned Dataset, used
// to build the autotuner's sampled working set (spec §4.7 step 1).
func buildSubsetDataset(ds *Dataset, ids []int) (*Dataset, error) {
	rows := make([][]float64, len(ids))
	for i, id := range ids {
		rows[i] = ds.Row(id)
	}
	return NewDataset(rows)
}
