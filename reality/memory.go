package reality

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/becomeliminal/nim-reality/core"
)

// Memory orchestrates embedding and storage for the engine.
//
// It is the only place that talks to both the Embedder and the Store, and it
// is where provider failures become *EmbeddingError. Store failures are
// already *StorageError and pass through unchanged.
type Memory struct {
	store    Store
	embedder Embedder
	logger   *zap.Logger
}

// MemoryOption configures a Memory.
type MemoryOption func(*Memory)

// WithMemoryLogger sets the logger.
func WithMemoryLogger(l *zap.Logger) MemoryOption {
	return func(m *Memory) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMemory creates a Memory over store and embedder.
func NewMemory(store Store, embedder Embedder, opts ...MemoryOption) *Memory {
	m := &Memory{
		store:    store,
		embedder: embedder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("memory")
	return m
}

// Dimensions returns the embedder's vector size.
func (m *Memory) Dimensions() int {
	return m.embedder.Dimensions()
}

// Embed converts text to a vector.
func (m *Memory) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		m.logger.Warn("embed failed", zap.Error(err))
		return nil, &EmbeddingError{Err: err}
	}
	if len(vec) == 0 {
		return nil, &EmbeddingError{Err: fmt.Errorf("provider returned %w", ErrEmptyVector)}
	}
	return vec, nil
}

// EmbedBatch converts several texts to vectors.
func (m *Memory) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}
	if len(vecs) != len(texts) {
		return nil, &EmbeddingError{Err: fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(texts))}
	}
	return vecs, nil
}

// Recall finds the owner's k nearest stored realities.
func (m *Memory) Recall(ctx context.Context, ownerID string, vector []float32, k int) ([]Neighbor, error) {
	neighbors, err := m.store.QueryNearest(ctx, ownerID, vector, k)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("recalled realities",
		zap.String("owner", ownerID),
		zap.Int("k", k),
		zap.Int("found", len(neighbors)))
	return neighbors, nil
}

// Record stores one reality and returns its ID.
func (m *Memory) Record(ctx context.Context, ownerID, text string, vector []float32, attrs core.Attributes) (string, error) {
	id, err := m.store.Insert(ctx, ownerID, text, vector, attrs.Normalize())
	if err != nil {
		return "", err
	}

	m.logger.Info("stored reality",
		zap.String("owner", ownerID),
		zap.String("id", id),
		zap.String("emotion", attrs.EmotionalState),
		zap.String("text", truncateLog(text, 50)))
	return id, nil
}

// History lists the owner's stored realities in insertion order.
func (m *Memory) History(ctx context.Context, ownerID string, limit int) ([]Record, error) {
	return m.store.ListByOwner(ctx, ownerID, limit)
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
