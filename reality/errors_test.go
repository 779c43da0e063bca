package reality

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageError(t *testing.T) {
	assert.NoError(t, NewStorageError("insert", nil))

	base := errors.New("disk full")
	err := NewStorageError("insert", base)
	assert.EqualError(t, err, "storage: insert: disk full")
	assert.ErrorIs(t, err, base)

	// Already wrapped errors keep their original op.
	wrapped := NewStorageError("query", fmt.Errorf("ctx: %w", err))
	var se *StorageError
	require.ErrorAs(t, wrapped, &se)
	assert.Equal(t, "insert", se.Op)
}

func TestDimensionError(t *testing.T) {
	err := DimensionError("query", 384, 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.True(t, IsStorageError(err))
	assert.Contains(t, err.Error(), "store has 384, got 3")
}

func TestEmbeddingError(t *testing.T) {
	base := errors.New("model missing")
	err := fmt.Errorf("turn: %w", &EmbeddingError{Err: base})
	assert.True(t, IsEmbeddingError(err))
	assert.False(t, IsStorageError(err))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "embedding: model missing")
}

func TestNewRecordID_Sortable(t *testing.T) {
	now := time.Now()
	prev := NewRecordID(now)
	for i := 0; i < 100; i++ {
		id := NewRecordID(now)
		assert.Less(t, prev, id)
		prev = id
	}
	assert.Less(t, prev, NewRecordID(now.Add(time.Second)))
}
