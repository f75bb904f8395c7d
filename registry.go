package flann

// buildFromParams dispatches p.Algorithm to the matching constructor (spec
// §6 build_index). AlgorithmAutotuned runs the autotuner and recurses with
// its winning Params; AlgorithmSaved has no constructor of its own since a
// saved index is reconstituted by LoadIndex, never built fresh.
func buildFromParams(ds *Dataset, p Params) (Index, error) {
	if err := p.Validate("BuildIndex"); err != nil {
		return nil, err
	}
	switch p.Algorithm {
	case AlgorithmLinear:
		return newLinearIndex(ds, p.Distance), nil
	case AlgorithmKDTree:
		return newKDForestIndex(ds, p.Distance, p.Trees, p.Seed)
	case AlgorithmKMeans:
		return newKMeansTreeIndex(ds, p.Distance, p.Branching, p.Iterations, p.CentersInit, p.CBIndex, p.Seed)
	case AlgorithmComposite:
		return newCompositeIndex(ds, p.Distance, p)
	case AlgorithmAutotuned:
		result, err := Autotune(ds, p)
		if err != nil {
			return nil, err
		}
		return buildFromParams(ds, result.Params)
	case AlgorithmSaved:
		return nil, notSupportedf("BuildIndex", "algorithm \"saved\" cannot be built directly; use LoadIndex")
	default:
		return nil, invalidParamf("BuildIndex", "unrecognized algorithm %q", p.Algorithm)
	}
}
