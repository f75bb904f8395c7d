package flann

import "math"

// Algorithm selects an index family, per spec §6.
type Algorithm string

const (
	AlgorithmLinear    Algorithm = "linear"
	AlgorithmKDTree    Algorithm = "kdtree"
	AlgorithmKMeans    Algorithm = "kmeans"
	AlgorithmComposite Algorithm = "composite"
	AlgorithmAutotuned Algorithm = "autotuned"
	AlgorithmSaved     Algorithm = "saved"
)

// CentersInit selects the k-means seeding strategy, per spec §4.5 step 3.
type CentersInit string

const (
	CentersRandom   CentersInit = "random"
	CentersGonzales CentersInit = "gonzales"
	CentersKMeansPP CentersInit = "kmeans++"
)

// UnlimitedChecks is the sentinel for an unbounded check budget (spec §4,
// "Exact mode"). Passed as SearchParams.Checks to force an exhaustive,
// pruned traversal.
const UnlimitedChecks = -1

// Params is the typed parameter bag from spec §6: a plain struct with one
// field per recognized key, set directly by callers (start from
// DefaultParams). Validate rejects out-of-domain values, including an
// unrecognized Algorithm or CentersInit, as a build-time InvalidParam
// error.
type Params struct {
	Algorithm Algorithm

	// Trees is the k-d forest size (spec §4.4), default 4.
	Trees int

	// Branching is the number of children per k-means node (spec §4.5).
	Branching int

	// Iterations caps Lloyd iterations; 0 means until convergence.
	Iterations int

	// CentersInit selects k-means seeding.
	CentersInit CentersInit

	// CBIndex biases cluster-boundary traversal priority (spec §4.5).
	CBIndex float64

	// TargetPrecision is the autotuner's precision goal in (0,1].
	TargetPrecision float64

	// BuildWeight and MemoryWeight are autotuner cost-function terms.
	BuildWeight  float64
	MemoryWeight float64

	// SampleFraction is the autotuner's dataset sampling fraction in (0,1].
	SampleFraction float64

	// AutotuneK is the number of nearest neighbors the autotuner measures
	// precision against (the original source's fixed nn_ autotune target).
	AutotuneK int

	// Distance is the distance functor searches and builds use. Required.
	Distance Distance

	// Seed controls all construction/traversal randomness (spec §5).
	Seed int64
}

// DefaultParams returns a Params populated with spec-documented defaults:
// trees=4 (§4.4), branching=32, iterations=5, centers_init=random (§4.5
// mentions no default explicitly; random is the simplest and the original
// source's default), cb_index=0, distance=squared L2, seed=0.
func DefaultParams() Params {
	return Params{
		Algorithm:       AlgorithmKDTree,
		Trees:           4,
		Branching:       32,
		Iterations:      5,
		CentersInit:     CentersRandom,
		CBIndex:         0,
		TargetPrecision: 0.9,
		BuildWeight:     0.01,
		MemoryWeight:    0,
		SampleFraction:  0.1,
		AutotuneK:       1,
		Distance:        SquaredL2Distance{},
		Seed:            0,
	}
}

// Validate checks that Params is internally consistent for the selected
// Algorithm, returning an InvalidParam error describing the first problem
// found (spec §7 taxonomy).
func (p Params) Validate(op string) error {
	if p.Distance == nil {
		return invalidParamf(op, "distance is required")
	}
	switch p.Algorithm {
	case AlgorithmLinear, AlgorithmKDTree, AlgorithmKMeans, AlgorithmComposite, AlgorithmAutotuned, AlgorithmSaved:
	default:
		return invalidParamf(op, "unrecognized algorithm %q", p.Algorithm)
	}
	if p.Algorithm == AlgorithmKDTree || p.Algorithm == AlgorithmComposite {
		if p.Trees < 1 {
			return invalidParamf(op, "trees must be >= 1, got %d", p.Trees)
		}
		if !p.Distance.Additive() {
			return invalidParamf(op, "kdtree requires an additive distance, %T is not additive", p.Distance)
		}
	}
	if p.Algorithm == AlgorithmKMeans || p.Algorithm == AlgorithmComposite {
		if p.Branching < 2 {
			return invalidParamf(op, "branching must be >= 2, got %d", p.Branching)
		}
		if p.Iterations < 0 {
			return invalidParamf(op, "iterations must be >= 0, got %d", p.Iterations)
		}
		switch p.CentersInit {
		case CentersRandom, CentersGonzales, CentersKMeansPP:
		default:
			return invalidParamf(op, "unrecognized centers_init %q", p.CentersInit)
		}
		if p.CBIndex < 0 {
			return invalidParamf(op, "cb_index must be >= 0, got %f", p.CBIndex)
		}
	}
	if p.Algorithm == AlgorithmAutotuned {
		if p.TargetPrecision <= 0 || p.TargetPrecision > 1 {
			return invalidParamf(op, "target_precision must be in (0,1], got %f", p.TargetPrecision)
		}
		if p.BuildWeight < 0 || p.MemoryWeight < 0 {
			return invalidParamf(op, "build_weight/memory_weight must be >= 0")
		}
		if p.SampleFraction <= 0 || p.SampleFraction > 1 {
			return invalidParamf(op, "sample_fraction must be in (0,1], got %f", p.SampleFraction)
		}
		if p.AutotuneK < 1 {
			return invalidParamf(op, "autotune_k must be >= 1, got %d", p.AutotuneK)
		}
	}
	return nil
}

// SearchParams controls an individual query, per spec §6.
type SearchParams struct {
	// Checks is the per-query check-count budget (spec "Checks budget").
	// UnlimitedChecks requests exact, pruned traversal.
	Checks int

	// Eps is the relative slack applied to branch pruning (spec §4.4
	// "Precision approximation"). 0 means exact-for-this-traversal.
	Eps float64

	// Sorted is carried for the spec §6 `sorted` key. No search reads it:
	// radius-search and top-K results are always returned sorted by
	// distance, and Sorted=false does not disable that sorting.
	Sorted bool

	// MaxNeighbors bounds radius-search result count. 0 means
	// count-only (spec §9 Open Question 1): indices/distances are not
	// written, only the count is returned. A negative value is an error
	// (spec §7 CapacityExceeded). math.MaxInt or any value <0 treated as
	// unbounded is not supported; use a large positive bound instead.
	MaxNeighbors int
}

// DefaultSearchParams returns Checks=32, Eps=0, Sorted=true, unbounded
// radius results.
func DefaultSearchParams() SearchParams {
	return SearchParams{Checks: 32, Eps: 0, Sorted: true, MaxNeighbors: math.MaxInt32}
}

func (sp SearchParams) epsScale(lb float64) float64 {
	return (1 + sp.Eps) * lb
}
