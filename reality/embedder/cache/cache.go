// Package cache memoizes embeddings in a ristretto cache.
//
// Embedding is the slowest step of a turn and the same utterances recur
// often (greetings, short confirmations), so repeated texts skip inference.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/nim-reality/reality"
)

// DefaultMaxEntries bounds the cache when Config.MaxEntries is zero.
const DefaultMaxEntries = 10_000

// Config configures a CachedEmbedder.
type Config struct {
	// MaxEntries is the approximate number of vectors kept.
	MaxEntries int64
}

// CachedEmbedder wraps an Embedder with a text -> vector cache.
type CachedEmbedder struct {
	next  reality.Embedder
	cache *ristretto.Cache
}

var _ reality.Embedder = (*CachedEmbedder)(nil)

// New wraps next.
func New(next reality.Embedder, cfg Config) (*CachedEmbedder, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	// Cost is one per entry, so MaxCost is an entry count.
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &CachedEmbedder{next: next, cache: c}, nil
}

// Embed returns a cached vector or computes and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return cloneVector(v.([]float32)), nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, cloneVector(vec), 1)
	return vec, nil
}

// EmbedBatch serves cached texts and sends only the misses downstream.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []string
		index   []int
	)
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = cloneVector(v.([]float32))
			continue
		}
		missing = append(missing, text)
		index = append(index, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missing))
	}
	for j, vec := range vecs {
		out[index[j]] = vec
		c.cache.Set(missing[j], cloneVector(vec), 1)
	}
	return out, nil
}

// Dimensions returns the wrapped embedder's vector size.
func (c *CachedEmbedder) Dimensions() int {
	return c.next.Dimensions()
}

// Wait blocks until buffered cache writes are applied.
func (c *CachedEmbedder) Wait() {
	c.cache.Wait()
}

// Hits returns the number of cache hits so far.
func (c *CachedEmbedder) Hits() uint64 {
	return c.cache.Metrics.Hits()
}

// Close releases the cache.
func (c *CachedEmbedder) Close() {
	c.cache.Close()
}

func cloneVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}
