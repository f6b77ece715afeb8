package utils

import "math"

// L2Norm returns the Euclidean length of x, accumulated in float64.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// NormalizeL2 scales x in place to unit length and returns its original length.
// A zero vector is left unchanged.
func NormalizeL2(x []float32) float64 {
	n := L2Norm(x)
	if n == 0 {
		return 0
	}
	inv := 1 / n
	for i, v := range x {
		x[i] = float32(float64(v) * inv)
	}
	return n
}
