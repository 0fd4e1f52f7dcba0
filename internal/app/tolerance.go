package app

import "math"

// WithinTolerance reports whether a node's population P is within epsilon of
// a single or double ideal: |P - k*I| <= I*k*eps for k in {1, 2}. The bound is
// inclusive. Missing or non-finite inputs give false.
func WithinTolerance(node TreeNode, meta *TreeMetadata) bool {
	if node.Population == nil || meta == nil || meta.IdealPop == nil || meta.Epsilon == nil {
		return false
	}
	p, ideal, eps := *node.Population, *meta.IdealPop, *meta.Epsilon
	if !finite(p) || !finite(ideal) || !finite(eps) {
		return false
	}
	for k := 1.0; k <= 2; k++ {
		if math.Abs(p-k*ideal) <= ideal*k*eps {
			return true
		}
	}
	return false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
