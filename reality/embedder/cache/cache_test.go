package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-reality/reality/embedder/mock"
)

// countingEmbedder counts how many texts reach the wrapped embedder.
type countingEmbedder struct {
	*mock.MockEmbedder
	calls atomic.Int64
	fail  bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.fail {
		return nil, errors.New("model unavailable")
	}
	return c.MockEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newCounting() *countingEmbedder {
	return &countingEmbedder{MockEmbedder: mock.NewWithDimensions(16)}
}

func TestCachedEmbedder_HitsSkipInference(t *testing.T) {
	ctx := context.Background()
	inner := newCounting()
	c, err := New(inner, Config{MaxEntries: 100})
	require.NoError(t, err)
	defer c.Close()

	first, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	c.Wait()

	second, err := c.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, uint64(1), c.Hits())
	assert.Equal(t, 16, c.Dimensions())
}

func TestCachedEmbedder_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c, err := New(newCounting(), Config{})
	require.NoError(t, err)
	defer c.Close()

	v, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	c.Wait()

	v[0] = 42
	again, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), again[0])
}

func TestCachedEmbedder_BatchOnlyEmbedsMisses(t *testing.T) {
	ctx := context.Background()
	inner := newCounting()
	c, err := New(inner, Config{})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Embed(ctx, "a")
	require.NoError(t, err)
	c.Wait()

	vecs, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, int64(3), inner.calls.Load())

	want, _ := inner.MockEmbedder.Embed(ctx, "c")
	assert.Equal(t, want, vecs[2])
}

func TestCachedEmbedder_ErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := newCounting()
	inner.fail = true
	c, err := New(inner, Config{})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Embed(ctx, "hello")
	require.Error(t, err)
	c.Wait()
	_, err = c.Embed(ctx, "hello")
	require.Error(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
}
