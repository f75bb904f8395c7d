package flann

import "math/rand/v2"

// randomSource is a seedable PRNG used for index construction randomness
// (k-d forest permutations and split-dimension choice, k-means center
// seeding) and the autotuner's sampling, per spec §5 "Randomness": a single
// seed controls all of it. Search traversal draws no random numbers.
//
// math/rand/v2's PCG source is the stdlib's modern, explicitly-seedable
// generator; nothing in the retrieval pack reaches for a third-party PRNG
// for this kind of deterministic build/traversal randomness, so this is a
// standard-library choice rather than a pack-grounded one.
type randomSource struct {
	r *rand.Rand
}

func newRandomSource(seed int64) *randomSource {
	s := uint64(seed)
	return &randomSource{r: rand.New(rand.NewPCG(s, s^0x9E3779B97F4A7C15))}
}

// intn returns a uniform random int in [0, n).
func (r *randomSource) intn(n int) int {
	return int(r.r.IntN(n))
}

// float64 returns a uniform random float64 in [0, 1).
func (r *randomSource) float64() float64 {
	return r.r.Float64()
}

// permutation returns a random permutation of [0, n), used by the k-d
// forest build (spec §4.4 step 1, "Randomly permute the indices").
func (r *randomSource) permutation(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	r.r.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	return perm
}

// uniqueSample draws k distinct indices from [0, n) without replacement,
// used by the autotuner to pick its sampled rows and test queries (spec
// §4.7 step 1).
func (r *randomSource) uniqueSample(n, k int) []int {
	if k > n {
		k = n
	}
	perm := r.permutation(n)
	return perm[:k]
}

// weightedPick draws a single index from [0, len(weights)) with
// probability proportional to weights[i], used by k-means++ seeding
// (spec §4.5 step 3). weights summing to 0 falls back to a uniform pick.
func (r *randomSource) weightedPick(weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return r.intn(len(weights))
	}
	target := r.float64() * total
	var acc float64
	for i, w := range weights {
		acc += w
		if acc >= target {
			return i
		}
	}
	return len(weights) - 1
}
