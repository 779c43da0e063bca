// Package mock provides embedders for tests and offline runs.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/becomeliminal/nim-reality/reality"
)

// DefaultDimensions matches paraphrase-multilingual-MiniLM-L12-v2.
const DefaultDimensions = 384

// MockEmbedder generates deterministic embeddings based on a text hash.
// Equal texts get equal vectors; different texts are close to orthogonal.
type MockEmbedder struct {
	dimensions int
}

var _ reality.Embedder = (*MockEmbedder)(nil)

// New creates a mock embedder with DefaultDimensions.
func New() *MockEmbedder {
	return NewWithDimensions(DefaultDimensions)
}

// NewWithDimensions creates a mock embedder producing dims-sized vectors.
func NewWithDimensions(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &MockEmbedder{dimensions: dims}
}

// Embed creates a deterministic unit vector from text.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		// LCG step, mapped to [-1, 1]
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// EmbedBatch embeds each text in order.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, m, texts)
}

// Dimensions returns the embedding size.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

// StaticEmbedder returns fixed vectors from a table. Unknown texts are an
// error, which makes it handy for exercising embedding failures too.
type StaticEmbedder struct {
	vectors map[string][]float32
	dims    int
}

var _ reality.Embedder = (*StaticEmbedder)(nil)

// NewStatic creates an embedder over vectors. All vectors must share a length.
func NewStatic(vectors map[string][]float32) *StaticEmbedder {
	s := &StaticEmbedder{vectors: make(map[string][]float32, len(vectors))}
	for text, vec := range vectors {
		s.vectors[text] = append([]float32(nil), vec...)
		s.dims = len(vec)
	}
	return s
}

// Embed returns the table vector for text.
func (s *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return append([]float32(nil), vec...), nil
}

// EmbedBatch embeds each text in order.
func (s *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, s, texts)
}

// Dimensions returns the table's vector length.
func (s *StaticEmbedder) Dimensions() int {
	return s.dims
}

func embedEach(ctx context.Context, e reality.Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text #%d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}

	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}

	return normalized
}
