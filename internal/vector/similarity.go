package vector

import (
	"math"

	"github.com/hyperjump/pageindex/pkg/utils"
)

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1]. Vectors of different
// length, empty vectors, and zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return cosineWithNorms(a, L2Norm(a), b, L2Norm(b))
}

// cosineWithNorms scores a against b using precomputed magnitudes.
func cosineWithNorms(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	s := InnerProduct(a, b) / (an * bn)
	// float rounding can push parallel vectors just past 1
	return math.Max(-1, math.Min(1, s))
}

// InnerProduct returns the inner product of two equal-length vectors.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	return utils.L2Norm(x)
}
