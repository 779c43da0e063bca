package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-reality/core"
	"github.com/becomeliminal/nim-reality/reality"
	"github.com/becomeliminal/nim-reality/reality/store/storetest"
)

func newTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "realities.db"), opts...)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) reality.Store {
		return newTestStore(t)
	})
}

func TestDimensionsPersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "realities.db")

	s, err := New(path)
	require.NoError(t, err)
	_, err = s.Insert(ctx, "owner", "hello", []float32{1, 2, 3}, core.DefaultAttributes())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 3, reopened.Dimensions())

	_, err = reopened.Insert(ctx, "owner", "wrong", []float32{1, 2}, core.DefaultAttributes())
	assert.ErrorIs(t, err, reality.ErrDimensionMismatch)
}

func TestOpenWithConflictingDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "realities.db")

	s, err := New(path, WithDimensions(384))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = New(path, WithDimensions(768))
	require.Error(t, err)
	assert.True(t, reality.IsStorageError(err))
	assert.ErrorIs(t, err, reality.ErrDimensionMismatch)
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestClosedStoreReturnsStorageError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Insert(context.Background(), "owner", "late", []float32{1, 0}, core.DefaultAttributes())
	require.Error(t, err)
	assert.True(t, reality.IsStorageError(err))
}
