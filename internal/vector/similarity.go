package vector

import "math"

// InnerProduct returns the inner product of two vectors (for normalized
// vectors this equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v * v)
	}
	return math.Sqrt(sum)
}

// L2Distance returns the Euclidean distance between two vectors.
func L2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of x. A zero vector is returned unchanged.
func Normalize(x []float32) []float32 {
	out := make([]float32, len(x))
	copy(out, x)
	norm := L2Norm(out)
	if norm == 0 {
		return out
	}
	inv := float32(1.0 / norm)
	for i := range out {
		out[i] *= inv
	}
	return out
}

// CosineScore returns the inner product of two normalized vectors clamped to [0, 1].
func CosineScore(a, b []float32) float64 {
	return math.Max(0, math.Min(1, InnerProduct(a, b)))
}
