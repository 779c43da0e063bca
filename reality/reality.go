package reality

import (
	"context"
	"time"

	"github.com/becomeliminal/nim-reality/core"
)

// Record is one stored utterance with its derived metadata.
// Records are append-only: stores never update or delete them.
type Record struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Text       string          `json:"text"`
	Vector     []float32       `json:"-"`
	Attributes core.Attributes `json:"attributes"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Neighbor is a stored record returned by a nearest-neighbour query.
type Neighbor struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	Attributes core.Attributes `json:"attributes"`
	CreatedAt  time.Time       `json:"created_at"`

	// Distance is the cosine distance to the query vector: 0 for the same
	// direction, 1 for orthogonal. Smaller means more similar.
	Distance float64 `json:"distance"`
}

// Similarity returns 1 - Distance.
func (n Neighbor) Similarity() float64 {
	return 1 - n.Distance
}

// Store is the vector storage backend interface.
// Implementations: chromem (embedded vector DB), sqlite.
//
// Every failure is reported as a *StorageError. Stores never retry.
type Store interface {
	// Insert persists a record and returns its generated ID.
	// The vector length must match the store's established dimensionality.
	Insert(ctx context.Context, ownerID, text string, vector []float32, attrs core.Attributes) (string, error)

	// QueryNearest returns up to k of the owner's records ordered by
	// ascending distance. An owner without records yields an empty result.
	QueryNearest(ctx context.Context, ownerID string, vector []float32, k int) ([]Neighbor, error)

	// ListByOwner returns the owner's records in insertion order.
	// A limit <= 0 returns all of them. Record.Vector holds the inserted
	// vector scaled to unit length.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]Record, error)

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), onnx (local MiniLM model), cache (decorator).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts several texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Analyzer extracts attributes from raw text. It must be total: on any
// internal problem it returns default-valued attributes instead of failing.
type Analyzer interface {
	Analyze(ctx context.Context, text string) core.Attributes
}

// Responder maps an emotional state tag to a reply.
type Responder interface {
	Respond(emotionalState string) string
}
