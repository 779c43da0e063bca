package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/becomeliminal/nim-reality/core"
	"github.com/becomeliminal/nim-reality/reality"
	"github.com/becomeliminal/nim-reality/reality/embedder/mock"
	"github.com/becomeliminal/nim-reality/reality/store/chromem"
)

var vectors = map[string][]float32{
	"I feel good today":        {1, 0, 0},
	"I feel good again":        {0.9, 0.1, 0},
	"why is everything so sad": {0, 1, 0},
}

func newTestEngine(t *testing.T, embedder reality.Embedder, storeDims int, opts ...Option) *Engine {
	t.Helper()
	store, err := chromem.New(chromem.Config{Dimensions: storeDims})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := zaptest.NewLogger(t)
	memory := reality.NewMemory(store, embedder, reality.WithMemoryLogger(logger))
	opts = append([]Option{WithLogger(logger)}, opts...)
	return NewEngine(memory, reality.NewDefaultAnalyzer(), reality.NewTracker(reality.DefaultSimilarityThreshold),
		reality.NewDefaultResponder(), opts...)
}

func TestEngine_SessionFlow(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, mock.NewStatic(vectors), 3)
	session := reality.NewSession("user1")

	// First turn: nothing to compare against.
	out, err := e.Run(ctx, &Input{Text: "I feel good today", Session: session})
	require.NoError(t, err)
	assert.True(t, out.IsNewReality)
	assert.Empty(t, out.Neighbors)
	assert.NotEmpty(t, out.RecordID)
	assert.Equal(t, core.EmotionHappy, out.Attributes.EmotionalState)
	assert.Equal(t, core.NeedEmpathy, out.Attributes.CognitiveNeed)
	assert.Equal(t, reality.DefaultReplies()[core.EmotionHappy], out.Reply)
	assert.Equal(t, "first interaction", out.Shift)

	// Second turn: close to the first.
	out, err = e.Run(ctx, &Input{Text: "I feel good again", Session: session})
	require.NoError(t, err)
	assert.False(t, out.IsNewReality)
	require.Len(t, out.Neighbors, 1)
	assert.Equal(t, "I feel good today", out.Neighbors[0].Text)
	assert.Equal(t, "no detectable shift", out.Shift)

	// Third turn: orthogonal to both, and the mood changed.
	out, err = e.Run(ctx, &Input{Text: "why is everything so sad", Session: session})
	require.NoError(t, err)
	assert.True(t, out.IsNewReality)
	require.Len(t, out.Neighbors, 2)
	assert.Equal(t, "I feel good again", out.Neighbors[0].Text)
	assert.Equal(t, core.EmotionSad, out.Attributes.EmotionalState)
	assert.Equal(t,
		"emotional state changed from happy to sad | new beliefs: skeptic | dropped beliefs: unknown",
		out.Shift)

	assert.Equal(t, 3, session.Len())
	assert.Len(t, session.Turns(), 6)
	entries := session.Entries()
	assert.Equal(t, []bool{true, false, true},
		[]bool{entries[0].IsNewReality, entries[1].IsNewReality, entries[2].IsNewReality})

	history, err := e.Memory().History(ctx, "user1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestEngine_Response(t *testing.T) {
	out := &Output{
		Reply:        "hi",
		IsNewReality: false,
		Attributes:   core.DefaultAttributes(),
		Neighbors:    []reality.Neighbor{{ID: "a", Text: "x", Distance: 0.25}},
		RecordID:     "b",
	}
	resp := out.Response()
	assert.Equal(t, "hi", resp.ReplyText)
	require.Len(t, resp.Similar, 1)
	assert.InDelta(t, 0.75, resp.Similar[0].Similarity, 1e-12)
	assert.Equal(t, "b", resp.RecordID)
}

func TestEngine_StatelessTurn(t *testing.T) {
	e := newTestEngine(t, mock.NewStatic(vectors), 3)

	out, err := e.Run(context.Background(), &Input{UserID: "user1", Text: "I feel good today"})
	require.NoError(t, err)
	assert.True(t, out.IsNewReality)
	assert.Empty(t, out.Shift)
	assert.True(t, out.Elapsed > 0)
}

func TestEngine_InvalidInput(t *testing.T) {
	e := newTestEngine(t, mock.NewStatic(vectors), 3)
	ctx := context.Background()

	for _, in := range []*Input{
		nil,
		{UserID: "user1", Text: "   "},
		{Text: "I feel good today"},
	} {
		_, err := e.Run(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestEngine_EmbeddingFailureStoresNothing(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, mock.NewStatic(vectors), 3, WithMetrics(NewMetrics(reg)))
	ctx := context.Background()

	_, err := e.Run(ctx, &Input{UserID: "user1", Text: "not in the table"})
	require.Error(t, err)
	var ee *reality.EmbeddingError
	assert.True(t, errors.As(err, &ee))

	history, err := e.Memory().History(ctx, "user1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	m := e.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("embedding")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.turns))
}

func TestEngine_StorageFailurePropagates(t *testing.T) {
	// Store expects 4 dimensions, the embedder produces 3.
	e := newTestEngine(t, mock.NewStatic(vectors), 4)

	_, err := e.Run(context.Background(), &Input{UserID: "user1", Text: "I feel good today"})
	require.Error(t, err)
	var se *reality.StorageError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, reality.ErrDimensionMismatch)
	assert.Equal(t, "storage", errorKind(err))
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, mock.NewStatic(vectors), 3, WithMetrics(NewMetrics(reg)))
	ctx := context.Background()

	for _, text := range []string{"I feel good today", "I feel good again", "why is everything so sad"} {
		_, err := e.Run(ctx, &Input{UserID: "user1", Text: text})
		require.NoError(t, err)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(e.metrics.turns))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.newRealities))
	assert.Equal(t, 1, testutil.CollectAndCount(e.metrics.duration))
}

func TestEngine_ConcurrentTurnsSameOwner(t *testing.T) {
	e := newTestEngine(t, mock.NewWithDimensions(32), 32, WithTopK(5))
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Run(ctx, &Input{UserID: "user1", Text: fmt.Sprintf("message %d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := e.Memory().History(ctx, "user1", 0)
	require.NoError(t, err)
	assert.Len(t, history, n)
	assert.Empty(t, e.locks.locks)
}

// blockingEmbedder waits for the context to end.
type blockingEmbedder struct{}

func (blockingEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b blockingEmbedder) EmbedBatch(ctx context.Context, _ []string) ([][]float32, error) {
	_, err := b.Embed(ctx, "")
	return nil, err
}

func (blockingEmbedder) Dimensions() int { return 3 }

func TestEngine_Timeout(t *testing.T) {
	e := newTestEngine(t, blockingEmbedder{}, 3, WithTimeout(10*time.Millisecond))

	_, err := e.Run(context.Background(), &Input{UserID: "user1", Text: "slow"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "timeout", errorKind(err))
}

func TestOwnerLocks_Serialises(t *testing.T) {
	ctx := context.Background()
	l := ownerLocks{locks: make(map[string]*ownerLock)}
	unlock, err := l.lock(ctx, "a")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		release, err := l.lock(ctx, "a")
		if err != nil {
			return
		}
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}

	// Other owners are not blocked.
	release, err := l.lock(ctx, "b")
	require.NoError(t, err)
	release()

	unlock()
	<-acquired
}

func TestOwnerLocks_WaitHonoursContext(t *testing.T) {
	l := ownerLocks{locks: make(map[string]*ownerLock)}
	unlock, err := l.lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Empty(t, l.locks)
}

func TestEngine_QueuedTurnTimesOut(t *testing.T) {
	e := newTestEngine(t, mock.NewWithDimensions(3), 3, WithTimeout(20*time.Millisecond))

	// Hold the owner's lock as a running turn would.
	unlock, err := e.locks.lock(context.Background(), "user1")
	require.NoError(t, err)
	defer unlock()

	start := time.Now()
	_, err = e.Run(context.Background(), &Input{UserID: "user1", Text: "queued"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "timeout", errorKind(err))
	assert.Less(t, time.Since(start), 2*time.Second)

	// Nothing was stored for the abandoned turn.
	history, err := e.Memory().History(context.Background(), "user1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
