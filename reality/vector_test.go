package reality

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"45 degrees", []float32{1, 0}, []float32{1, 1}, 1 - 1/math.Sqrt2},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 1},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineDistance(tt.a, tt.b), 1e-6)
		})
	}
}

func TestSimilarityToDistance(t *testing.T) {
	assert.Equal(t, 0.0, SimilarityToDistance(1.0000001))
	assert.InDelta(t, 0.4, SimilarityToDistance(0.6), 1e-12)
	assert.Equal(t, 2.0, SimilarityToDistance(-1.5))
}

func TestCheckVector(t *testing.T) {
	assert.NoError(t, CheckVector("insert", []float32{0, 1}, 0))
	assert.NoError(t, CheckVector("insert", []float32{0, 1}, 2))

	err := CheckVector("insert", nil, 0)
	assert.ErrorIs(t, err, ErrEmptyVector)
	assert.True(t, IsStorageError(err))

	assert.ErrorIs(t, CheckVector("insert", []float32{0, 0}, 0), ErrEmptyVector)
	assert.ErrorIs(t, CheckVector("query", []float32{1}, 2), ErrDimensionMismatch)
}

func TestUnitVector(t *testing.T) {
	in := []float32{3, 4}
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, UnitVector(in), 1e-6)
	assert.Equal(t, []float32{3, 4}, in)
	assert.Equal(t, []float32{0, 0}, UnitVector([]float32{0, 0}))
}
