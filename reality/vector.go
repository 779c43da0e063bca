package reality

import (
	"fmt"
	"math"
)

// CheckVector validates vector against the established dimensionality dims.
// A dims of 0 means no dimensionality has been established yet.
func CheckVector(op string, vector []float32, dims int) error {
	if len(vector) == 0 {
		return &StorageError{Op: op, Err: ErrEmptyVector}
	}
	if dims > 0 && len(vector) != dims {
		return DimensionError(op, dims, len(vector))
	}
	for _, v := range vector {
		if v != 0 {
			return nil
		}
	}
	return &StorageError{Op: op, Err: fmt.Errorf("%w: zero vector has no direction", ErrEmptyVector)}
}

// CosineDistance returns 1 - cos(a, b). Vectors of different length or with
// zero norm are maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return clampDistance(1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}

// UnitVector returns a copy of v scaled to length 1. A zero vector is
// returned unchanged.
func UnitVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// SimilarityToDistance converts a cosine similarity into a distance.
func SimilarityToDistance(similarity float64) float64 {
	return clampDistance(1 - similarity)
}

// clampDistance removes floating point noise outside [0, 2].
func clampDistance(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}
