package onnx

import (
	"fmt"
	"math"
)

// meanPool averages hidden states over attended tokens.
// hidden is laid out as [seqLen][hiddenSize].
func meanPool(hidden []float32, mask []int64, seqLen, hiddenSize int) ([]float32, error) {
	if len(hidden) < seqLen*hiddenSize {
		return nil, fmt.Errorf("hidden state has %d values, want %d", len(hidden), seqLen*hiddenSize)
	}

	out := make([]float32, hiddenSize)
	var attended float32
	for i := 0; i < seqLen && i < len(mask); i++ {
		if mask[i] == 0 {
			continue
		}
		attended++
		row := hidden[i*hiddenSize : (i+1)*hiddenSize]
		for j, v := range row {
			out[j] += v
		}
	}
	if attended == 0 {
		return nil, fmt.Errorf("no attended tokens")
	}
	for j := range out {
		out[j] /= attended
	}
	return out, nil
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	n := float32(math.Sqrt(norm))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / n
	}
	return out
}
