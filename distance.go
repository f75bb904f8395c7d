package flann

import (
	"math"
	"math/bits"

	"gonum.org/v1/gonum/floats"
)

// Distance is a value type capturing a distance function over two D-long
// sequences, per spec §3/§9. Full computes the accumulated distance between
// a and b, early-exiting once the partial sum exceeds worstSoFar (pass
// +Inf to disable early exit). Accum computes the per-dimension
// contribution used by k-d-tree partial-distance pruning; it is only
// meaningful when Additive reports true.
//
// Two capability flags gate algorithmic choices: Additive (required for
// k-d-tree branch lower bounds) and Metric (triangle inequality, required
// for k-means ball pruning).
type Distance interface {
	Full(a, b []float64, worstSoFar float64) float64
	Accum(ai, bi float64) float64
	Additive() bool
	Metric() bool
}

// SquaredL2Distance is squared Euclidean distance. It is additive and a
// (squared) metric; FLANN's trees are built and searched in squared space
// throughout, taking the square root only at presentation time if the
// caller wants it.
type SquaredL2Distance struct{}

func (SquaredL2Distance) Additive() bool { return true }
func (SquaredL2Distance) Metric() bool   { return true }

func (SquaredL2Distance) Accum(ai, bi float64) float64 {
	d := ai - bi
	return d * d
}

func (d SquaredL2Distance) Full(a, b []float64, worstSoFar float64) float64 {
	var sum float64
	for i := range a {
		sum += d.Accum(a[i], b[i])
		if sum >= worstSoFar {
			return sum
		}
	}
	return sum
}

// L1Distance is the Manhattan (taxicab) metric. Additive and a metric.
type L1Distance struct{}

func (L1Distance) Additive() bool { return true }
func (L1Distance) Metric() bool   { return true }

func (L1Distance) Accum(ai, bi float64) float64 {
	return math.Abs(ai - bi)
}

func (d L1Distance) Full(a, b []float64, worstSoFar float64) float64 {
	var sum float64
	for i := range a {
		sum += d.Accum(a[i], b[i])
		if sum >= worstSoFar {
			return sum
		}
	}
	return sum
}

// MinkowskiDistance is the general Lp metric, p = Order. Additive (the
// per-axis contribution is |ai-bi|^p, summed) and a metric for Order >= 1.
// Like SquaredL2Distance, Full returns the sum without taking the p-th
// root, so it stays comparable with branch lower bounds built from Accum.
type MinkowskiDistance struct{ Order float64 }

func (MinkowskiDistance) Additive() bool { return true }
func (m MinkowskiDistance) Metric() bool { return m.Order >= 1 }

func (m MinkowskiDistance) Accum(ai, bi float64) float64 {
	return math.Pow(math.Abs(ai-bi), m.Order)
}

func (m MinkowskiDistance) Full(a, b []float64, worstSoFar float64) float64 {
	var sum float64
	for i := range a {
		sum += m.Accum(a[i], b[i])
		if sum >= worstSoFar {
			return sum
		}
	}
	return sum
}

// LInfDistance is the Chebyshev (max-coordinate) metric. Not additive (the
// combining operator is max, not sum), so it disables k-d-tree partial-sum
// pruning per spec §3: building a k-d forest (or composite index) over this
// metric is an InvalidParam error (Accum still reports the per-axis term so
// a caller that ignores Additive can still call it, but branch lower bounds
// built from Accum alone would not be valid lower bounds under
// max-combination, hence Additive() = false).
type LInfDistance struct{}

func (LInfDistance) Additive() bool { return false }
func (LInfDistance) Metric() bool   { return true }

func (LInfDistance) Accum(ai, bi float64) float64 {
	return math.Abs(ai - bi)
}

func (d LInfDistance) Full(a, b []float64, worstSoFar float64) float64 {
	return floats.Distance(a, b, math.Inf(1))
}

// HistIntersectionDistance computes the negated (min-based) histogram
// intersection similarity, -Σ min(ai, bi), making smaller values indicate
// more similar histograms. Additive; not a metric (no triangle inequality
// guarantee).
type HistIntersectionDistance struct{}

func (HistIntersectionDistance) Additive() bool { return true }
func (HistIntersectionDistance) Metric() bool   { return false }

func (HistIntersectionDistance) Accum(ai, bi float64) float64 {
	return -math.Min(ai, bi)
}

func (d HistIntersectionDistance) Full(a, b []float64, worstSoFar float64) float64 {
	var sum float64
	for i := range a {
		sum += d.Accum(a[i], b[i])
		if sum >= worstSoFar {
			return sum
		}
	}
	return sum
}

// HellingerDistance is the (squared) Hellinger distance between two
// non-negative, typically-normalized vectors (e.g. probability histograms).
// Additive; a metric up to a constant factor, treated as non-metric here
// to be conservative about k-means ball pruning.
type HellingerDistance struct{}

func (HellingerDistance) Additive() bool { return true }
func (HellingerDistance) Metric() bool   { return false }

func (HellingerDistance) Accum(ai, bi float64) float64 {
	d := math.Sqrt(ai) - math.Sqrt(bi)
	return d * d
}

func (d HellingerDistance) Full(a, b []float64, worstSoFar float64) float64 {
	var sum float64
	for i := range a {
		sum += d.Accum(a[i], b[i])
		if sum >= worstSoFar {
			return sum
		}
	}
	return sum
}

// ChiSquareDistance is the chi-squared distance, commonly used over
// histograms. Additive; not a metric.
type ChiSquareDistance struct{}

func (ChiSquareDistance) Additive() bool { return true }
func (ChiSquareDistance) Metric() bool   { return false }

func (ChiSquareDistance) Accum(ai, bi float64) float64 {
	denom := ai + bi
	if denom == 0 {
		return 0
	}
	d := ai - bi
	return (d * d) / denom
}

func (d ChiSquareDistance) Full(a, b []float64, worstSoFar float64) float64 {
	var sum float64
	for i := range a {
		sum += d.Accum(a[i], b[i])
		if sum >= worstSoFar {
			return sum
		}
	}
	return sum
}

// KLDivergenceDistance is the (non-metric) Kullback-Leibler divergence,
// Σ ai*log(ai/bi), over non-negative, normalized vectors.
// Additive; not a metric, and not symmetric in general — callers are
// expected to pass (query, candidate) consistently.
type KLDivergenceDistance struct{}

func (KLDivergenceDistance) Additive() bool { return true }
func (KLDivergenceDistance) Metric() bool   { return false }

func (KLDivergenceDistance) Accum(ai, bi float64) float64 {
	if ai <= 0 || bi <= 0 {
		return 0
	}
	return ai * math.Log(ai/bi)
}

func (d KLDivergenceDistance) Full(a, b []float64, worstSoFar float64) float64 {
	var sum float64
	for i := range a {
		sum += d.Accum(a[i], b[i])
		if sum >= worstSoFar {
			return sum
		}
	}
	return sum
}

// HammingDistance computes the Hamming distance between two vectors packed
// as bits into float64-valued words (each element holds a non-negative
// integer value, converted with uint64(); 0/1 coordinates also work
// element-wise). Additive; a metric.
type HammingDistance struct{}

func (HammingDistance) Additive() bool { return true }
func (HammingDistance) Metric() bool   { return true }

func (HammingDistance) Accum(ai, bi float64) float64 {
	wa := uint64(ai)
	wb := uint64(bi)
	return float64(bits.OnesCount64(wa ^ wb))
}

func (d HammingDistance) Full(a, b []float64, worstSoFar float64) float64 {
	var sum float64
	for i := range a {
		sum += d.Accum(a[i], b[i])
		if sum >= worstSoFar {
			return sum
		}
	}
	return sum
}

