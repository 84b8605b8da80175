// Package vectormath implements pure, allocation-light operations over
// fixed-dimension real vectors: similarity metrics and basic vector algebra
// shared by the vector store adapter and the optimizer's near-duplicate
// fusion pass.
package vectormath

import (
	"math"

	"agentmemory/internal/memerr"
)

// Cosine returns the cosine similarity between a and b. It returns 0 when
// either vector has zero norm, and a DimensionMismatch error when the
// lengths differ.
func Cosine(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, memerr.Newf(memerr.DimensionMismatch, "cosine: len(a)=%d len(b)=%d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

// Euclidean returns the L2 distance between a and b.
func Euclidean(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, memerr.Newf(memerr.DimensionMismatch, "euclidean: len(a)=%d len(b)=%d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum)), nil
}

// Manhattan returns the L1 distance between a and b.
func Manhattan(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, memerr.Newf(memerr.DimensionMismatch, "manhattan: len(a)=%d len(b)=%d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float32(sum), nil
}

// Dot returns the dot product of a and b.
func Dot(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, memerr.Newf(memerr.DimensionMismatch, "dot: len(a)=%d len(b)=%d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum), nil
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// Normalize returns a unit-length copy of v. The zero vector is returned
// unchanged (norm 0 cannot be normalized).
func Normalize(v []float32) []float32 {
	n := Norm(v)
	out := make([]float32, len(v))
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

// Add returns the element-wise sum of a and b.
func Add(a, b []float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, memerr.Newf(memerr.DimensionMismatch, "add: len(a)=%d len(b)=%d", len(a), len(b))
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out, nil
}

// Sub returns the element-wise difference a - b.
func Sub(a, b []float32) ([]float32, error) {
	if len(a) != len(b) {
		return nil, memerr.Newf(memerr.DimensionMismatch, "sub: len(a)=%d len(b)=%d", len(a), len(b))
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out, nil
}

// Scale returns a copy of v with every element multiplied by s.
func Scale(v []float32, s float32) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * s
	}
	return out
}
