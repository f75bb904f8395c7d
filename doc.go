// Package flann implements approximate and exact nearest-neighbor search
// over fixed-dimensionality point sets: a randomized k-d forest, a
// hierarchical k-means tree, a composite of the two, and an autotuner that
// picks between them for a target precision.
//
// Distance metrics include squared Euclidean, Manhattan (L1), Chebyshev
// (L-infinity), general Minkowski, and a handful of histogram/distribution
// metrics (chi-square, Hellinger, KL divergence, histogram intersection)
// plus Hamming for bit-packed vectors.
package flann
