// Package storetest holds the behavioural suite every reality.Store must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-reality/core"
	"github.com/becomeliminal/nim-reality/reality"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) reality.Store

// Run executes the suite against stores created by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s reality.Store)
	}{
		{"RoundTrip", testRoundTrip},
		{"OwnerIsolation", testOwnerIsolation},
		{"AscendingDistance", testAscendingDistance},
		{"EmptyOwner", testEmptyOwner},
		{"KLargerThanStore", testKLargerThanStore},
		{"NonPositiveK", testNonPositiveK},
		{"DimensionMismatch", testDimensionMismatch},
		{"InvalidInput", testInvalidInput},
		{"AttributesPersisted", testAttributesPersisted},
		{"ListByOwner", testListByOwner},
		{"ListReturnsUnitVectors", testListUnitVectors},
		{"ConcurrentInsertsUniqueIDs", testConcurrentInserts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func attrs(emotion string) core.Attributes {
	a := core.DefaultAttributes()
	a.EmotionalState = emotion
	return a
}

func testRoundTrip(t *testing.T, s reality.Store) {
	ctx := context.Background()
	v := []float32{0.3, 0.5, 0.8}

	id, err := s.Insert(ctx, "owner", "X", v, attrs(core.EmotionHappy))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.QueryNearest(ctx, "owner", v, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "X", got[0].Text)
	assert.InDelta(t, 0, got[0].Distance, 1e-5)
	assert.InDelta(t, 1, got[0].Similarity(), 1e-5)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func testOwnerIsolation(t *testing.T, s reality.Store) {
	ctx := context.Background()
	v := []float32{1, 0, 0}

	_, err := s.Insert(ctx, "owner_a", "from a", v, attrs(core.EmotionSad))
	require.NoError(t, err)
	_, err = s.Insert(ctx, "owner_b", "from b", v, attrs(core.EmotionSad))
	require.NoError(t, err)
	_, err = s.Insert(ctx, "owner_b", "also from b", []float32{0.9, 0.1, 0}, attrs(core.EmotionSad))
	require.NoError(t, err)

	got, err := s.QueryNearest(ctx, "owner_a", v, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "from a", got[0].Text)

	listed, err := s.ListByOwner(ctx, "owner_a", 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "owner_a", listed[0].OwnerID)
}

func testAscendingDistance(t *testing.T, s reality.Store) {
	ctx := context.Background()
	probe := []float32{1, 0, 0}

	// Inserted out of order to make sure ranking, not insertion, decides.
	texts := []struct {
		text string
		vec  []float32
	}{
		{"far", []float32{0, 1, 0}},
		{"near", []float32{1, 0.1, 0}},
		{"middle", []float32{1, 1, 0}},
	}
	for _, tt := range texts {
		_, err := s.Insert(ctx, "u1", tt.text, tt.vec, attrs(core.EmotionNeutral))
		require.NoError(t, err)
	}

	got, err := s.QueryNearest(ctx, "u1", probe, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"near", "middle", "far"}, []string{got[0].Text, got[1].Text, got[2].Text})
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
	}

	// near: cos = 1/sqrt(1.01) -> distance ~0.005; far is orthogonal.
	assert.InDelta(t, 1-1/1.0049875621, got[0].Distance, 1e-4)
	assert.InDelta(t, 1, got[2].Distance, 1e-4)

	for _, threshold := range []float64{0, 0.5, 0.6, 0.999, 1} {
		want := got[0].Distance > 1-threshold
		assert.Equal(t, want, reality.IsNew(got, threshold), "threshold %v", threshold)
	}
}

func testEmptyOwner(t *testing.T, s reality.Store) {
	ctx := context.Background()

	got, err := s.QueryNearest(ctx, "nobody", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.Insert(ctx, "somebody", "hello", []float32{1, 0, 0}, attrs(core.EmotionNeutral))
	require.NoError(t, err)

	got, err = s.QueryNearest(ctx, "nobody", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)

	listed, err := s.ListByOwner(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func testKLargerThanStore(t *testing.T, s reality.Store) {
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := s.Insert(ctx, "owner", fmt.Sprintf("text %d", i), []float32{1, float32(i), 0}, attrs(core.EmotionNeutral))
		require.NoError(t, err)
	}

	got, err := s.QueryNearest(ctx, "owner", []float32{1, 0, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func testNonPositiveK(t *testing.T, s reality.Store) {
	ctx := context.Background()
	_, err := s.Insert(ctx, "owner", "text", []float32{1, 0, 0}, attrs(core.EmotionNeutral))
	require.NoError(t, err)

	got, err := s.QueryNearest(ctx, "owner", []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testDimensionMismatch(t *testing.T, s reality.Store) {
	ctx := context.Background()
	_, err := s.Insert(ctx, "owner", "three", []float32{1, 0, 0}, attrs(core.EmotionNeutral))
	require.NoError(t, err)

	_, err = s.Insert(ctx, "owner", "four", []float32{1, 0, 0, 0}, attrs(core.EmotionNeutral))
	require.Error(t, err)
	assert.True(t, reality.IsStorageError(err), "want *StorageError, got %T", err)
	assert.ErrorIs(t, err, reality.ErrDimensionMismatch)

	_, err = s.QueryNearest(ctx, "owner", []float32{1, 0}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, reality.ErrDimensionMismatch)
}

func testInvalidInput(t *testing.T, s reality.Store) {
	ctx := context.Background()

	_, err := s.Insert(ctx, "owner", "empty", nil, attrs(core.EmotionNeutral))
	assert.ErrorIs(t, err, reality.ErrEmptyVector)
	assert.True(t, reality.IsStorageError(err))

	_, err = s.Insert(ctx, "owner", "zero", []float32{0, 0, 0}, attrs(core.EmotionNeutral))
	assert.ErrorIs(t, err, reality.ErrEmptyVector)

	_, err = s.Insert(ctx, "", "no owner", []float32{1, 0, 0}, attrs(core.EmotionNeutral))
	assert.ErrorIs(t, err, reality.ErrEmptyOwner)
}

func testAttributesPersisted(t *testing.T, s reality.Store) {
	ctx := context.Background()
	in := core.Attributes{
		EmotionalState:  core.EmotionConfused,
		Beliefs:         []string{core.BeliefSpiritual, core.BeliefSkeptic},
		CognitiveNeed:   core.NeedMeaning,
		ShiftIndicators: []string{core.ShiftCrisis},
	}
	_, err := s.Insert(ctx, "owner", "why is everything meaningless", []float32{0, 0, 1}, in)
	require.NoError(t, err)

	got, err := s.QueryNearest(ctx, "owner", []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, in, got[0].Attributes)

	listed, err := s.ListByOwner(ctx, "owner", 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, in, listed[0].Attributes)
}

func testListUnitVectors(t *testing.T, s reality.Store) {
	ctx := context.Background()
	_, err := s.Insert(ctx, "owner", "scaled", []float32{3, 4, 0}, attrs(core.EmotionNeutral))
	require.NoError(t, err)

	got, err := s.ListByOwner(ctx, "owner", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDeltaSlice(t, []float32{0.6, 0.8, 0}, got[0].Vector, 1e-6)
}

func testListByOwner(t *testing.T, s reality.Store) {
	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		// Vectors deliberately unrelated to insertion order.
		vec := []float32{float32(5 - i), float32(i), 1}
		id, err := s.Insert(ctx, "owner", fmt.Sprintf("turn %d", i), vec, attrs(core.EmotionNeutral))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all, err := s.ListByOwner(ctx, "owner", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, r := range all {
		assert.Equal(t, ids[i], r.ID)
		assert.Equal(t, fmt.Sprintf("turn %d", i), r.Text)
	}

	limited, err := s.ListByOwner(ctx, "owner", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, ids[:2], []string{limited[0].ID, limited[1].ID})
}

func testConcurrentInserts(t *testing.T, s reality.Store) {
	ctx := context.Background()
	const n = 20

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.Insert(ctx, "owner", fmt.Sprintf("text %d", i), []float32{1, float32(i), 0}, attrs(core.EmotionNeutral))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	assert.Len(t, ids, n)
}
