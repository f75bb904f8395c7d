package flann

import (
	"math"
	"time"
)

// precision computes, per query, the number of returned ids also present
// in groundTruth divided by the number of ground-truth ids, averaged over
// every query (spec §4.7's "precision on the test set against ground
// truth").
func precision(got, groundTruth [][]int) float64 {
	if len(got) == 0 {
		return 1
	}
	var sum float64
	for qi := range got {
		truth := make(map[int]bool, len(groundTruth[qi]))
		for _, id := range groundTruth[qi] {
			truth[id] = true
		}
		if len(truth) == 0 {
			sum++
			continue
		}
		hits := 0
		for _, id := range got[qi] {
			if truth[id] {
				hits++
			}
		}
		sum += float64(hits) / float64(len(truth))
	}
	return sum / float64(len(got))
}

// measurePrecision runs idx.KNNSearch at the given checks budget and
// returns (precision, elapsed wall time for the whole query batch).
func measurePrecision(idx Index, queries [][]float64, groundTruth [][]int, k, checks int, eps float64) (float64, time.Duration, error) {
	sp := SearchParams{Checks: checks, Eps: eps, Sorted: true, MaxNeighbors: math.MaxInt32}
	start := time.Now()
	got, _, err := idx.KNNSearch(queries, k, sp)
	elapsed := time.Since(start)
	if err != nil {
		return 0, elapsed, err
	}
	return precision(got, groundTruth), elapsed, nil
}

// maxAutotuneChecks bounds the doubling phase of checksAtPrecision: once
// checks reaches it, the doubling stops and the capped budget is returned
// with whatever precision it reached, even if that is below the target
// (no error is reported).
const maxAutotuneChecks = 1 << 20

// checksAtPrecision implements spec §4.7's "Checks binary search": measure
// precision at checks=1; if already >= target, return it. Otherwise double
// checks until precision >= target (bracketing [c1,c2]), then bisect until
// |observed-target| < 0.001 or the bracket collapses.
func checksAtPrecision(idx Index, queries [][]float64, groundTruth [][]int, k int, target, eps float64) (checks int, observed float64, elapsed time.Duration, err error) {
	const tol = 0.001

	c1 := 1
	p1, t1, err := measurePrecision(idx, queries, groundTruth, k, c1, eps)
	if err != nil {
		return 0, 0, 0, err
	}
	if p1 >= target {
		return c1, p1, t1, nil
	}

	c2, p2, t2 := c1, p1, t1
	for p2 < target {
		c2 *= 2
		p2, t2, err = measurePrecision(idx, queries, groundTruth, k, c2, eps)
		if err != nil {
			return 0, 0, 0, err
		}
		if c2 >= maxAutotuneChecks {
			return c2, p2, t2, nil
		}
	}

	bestC, bestP, bestT := c2, p2, t2
	for {
		mid := (c1 + c2) / 2
		if mid == c1 {
			break
		}
		pm, tm, err := measurePrecision(idx, queries, groundTruth, k, mid, eps)
		if err != nil {
			return 0, 0, 0, err
		}
		if math.Abs(pm-target) < tol {
			return mid, pm, tm, nil
		}
		if pm < target {
			c1 = mid
		} else {
			c2, bestC, bestP, bestT = mid, mid, pm, tm
		}
	}
	return bestC, bestP, bestT, nil
}
