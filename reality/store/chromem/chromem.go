package chromem

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-reality/core"
	"github.com/becomeliminal/nim-reality/reality"
)

// DefaultCollection is the collection realities are stored in.
const DefaultCollection = "user_realities"

// The established dimensionality is kept in a document of a companion
// collection named <collection>_meta, so it survives a reopen.
const (
	metaSuffix     = "_meta"
	dimensionsDoc  = "dimensions"
	dimensionsMeta = "dimensions"
)

// Config configures a ChromemStore.
type Config struct {
	// PersistDir enables on-disk persistence. Empty keeps everything in memory.
	PersistDir string

	// Compress gzips persisted documents.
	Compress bool

	// Collection names the collection. Default: DefaultCollection.
	Collection string

	// Dimensions fixes the vector size up front. Zero lets the first insert
	// establish it. Opening a collection persisted with another size fails
	// with reality.ErrDimensionMismatch.
	Dimensions int

	Logger *zap.Logger
}

// ChromemStore wraps chromem-go for reality storage.
// chromem-go is a pure Go, embedded vector database. All owners share one
// collection; queries are scoped with a where filter on owner_id.
type ChromemStore struct {
	db     *chromem.DB
	col    *chromem.Collection
	meta   *chromem.Collection
	logger *zap.Logger

	mu   sync.RWMutex
	dims int
	now  func() time.Time
}

var _ reality.Store = (*ChromemStore)(nil)

// New creates a chromem-based store.
func New(cfg Config) (*ChromemStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("chromem")

	var db *chromem.DB
	if cfg.PersistDir != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.PersistDir, cfg.Compress)
		if err != nil {
			return nil, reality.NewStorageError("open", fmt.Errorf("open persistent db %s: %w", cfg.PersistDir, err))
		}
	} else {
		db = chromem.NewDB()
	}

	// Cosine is chromem's only metric; record it so the collection
	// carries the same metadata a Chroma collection would.
	col, err := db.GetOrCreateCollection(
		cfg.Collection,
		map[string]string{"hnsw:space": "cosine"},
		nil, // No embedding func, vectors are always provided
	)
	if err != nil {
		return nil, reality.NewStorageError("open", fmt.Errorf("create collection: %w", err))
	}

	meta, err := db.GetOrCreateCollection(cfg.Collection+metaSuffix, nil, nil)
	if err != nil {
		return nil, reality.NewStorageError("open", fmt.Errorf("create meta collection: %w", err))
	}

	s := &ChromemStore{
		db:     db,
		col:    col,
		meta:   meta,
		logger: logger,
		now:    time.Now,
	}

	persisted, err := s.loadDimensions()
	if err != nil {
		return nil, err
	}
	switch {
	case persisted > 0 && cfg.Dimensions > 0 && persisted != cfg.Dimensions:
		return nil, &reality.StorageError{Op: "open", Err: fmt.Errorf("%w: collection %s holds %d-dim vectors, configured %d",
			reality.ErrDimensionMismatch, cfg.Collection, persisted, cfg.Dimensions)}
	case persisted > 0:
		s.dims = persisted
	case cfg.Dimensions > 0:
		if col.Count() > 0 {
			logger.Warn("collection has no recorded dimensionality, assuming configured size",
				zap.Int("dims", cfg.Dimensions))
		}
		if err := s.saveDimensions(context.Background(), cfg.Dimensions); err != nil {
			return nil, err
		}
		s.dims = cfg.Dimensions
	}

	logger.Info("store ready",
		zap.String("collection", cfg.Collection),
		zap.String("persist_dir", cfg.PersistDir),
		zap.Int("documents", col.Count()),
		zap.Int("dims", s.dims))
	return s, nil
}

func (s *ChromemStore) loadDimensions() (int, error) {
	if s.meta.Count() == 0 {
		return 0, nil
	}
	doc, err := s.meta.GetByID(context.Background(), dimensionsDoc)
	if err != nil {
		// Not recorded yet.
		return 0, nil
	}
	dims, err := strconv.Atoi(doc.Metadata[dimensionsMeta])
	if err != nil || dims <= 0 {
		return 0, reality.NewStorageError("open", fmt.Errorf("corrupt dimensionality record %q", doc.Metadata[dimensionsMeta]))
	}
	return dims, nil
}

func (s *ChromemStore) saveDimensions(ctx context.Context, dims int) error {
	err := s.meta.AddDocument(ctx, chromem.Document{
		ID:        dimensionsDoc,
		Content:   dimensionsDoc,
		Embedding: []float32{1},
		Metadata:  map[string]string{dimensionsMeta: strconv.Itoa(dims)},
	})
	if err != nil {
		return reality.NewStorageError("open", fmt.Errorf("record dimensionality: %w", err))
	}
	return nil
}

// Dimensions returns the established dimensionality, or 0 if none yet.
func (s *ChromemStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Insert stores a reality with its embedding.
func (s *ChromemStore) Insert(ctx context.Context, ownerID, text string, vector []float32, attrs core.Attributes) (string, error) {
	if ownerID == "" {
		return "", &reality.StorageError{Op: "insert", Err: reality.ErrEmptyOwner}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := reality.CheckVector("insert", vector, s.dims); err != nil {
		return "", err
	}

	if s.dims == 0 {
		if err := s.saveDimensions(ctx, len(vector)); err != nil {
			return "", err
		}
	}

	createdAt := s.now()
	id := reality.NewRecordID(createdAt)
	meta, err := reality.EncodeMetadata(ownerID, text, attrs, createdAt)
	if err != nil {
		return "", reality.NewStorageError("insert", err)
	}

	doc := chromem.Document{
		ID:        id,
		Content:   text,
		Embedding: append([]float32(nil), vector...),
		Metadata:  meta,
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return "", reality.NewStorageError("insert", fmt.Errorf("add document: %w", err))
	}

	if s.dims == 0 {
		s.dims = len(vector)
		s.logger.Debug("dimensionality established", zap.Int("dims", s.dims))
	}

	s.logger.Debug("stored reality", zap.String("id", id), zap.String("owner", ownerID))
	return id, nil
}

// QueryNearest retrieves the owner's realities by vector similarity.
func (s *ChromemStore) QueryNearest(ctx context.Context, ownerID string, vector []float32, k int) ([]reality.Neighbor, error) {
	if k <= 0 {
		return []reality.Neighbor{}, nil
	}
	if err := reality.CheckVector("query", vector, s.Dimensions()); err != nil {
		return nil, err
	}

	results, err := s.query(ctx, ownerID, vector, k)
	if err != nil {
		return nil, err
	}

	neighbors := make([]reality.Neighbor, 0, len(results))
	for _, res := range results {
		attrs, createdAt, err := reality.DecodeMetadata(res.Metadata)
		if err != nil {
			return nil, reality.NewStorageError("query", fmt.Errorf("decode %s: %w", res.ID, err))
		}
		neighbors = append(neighbors, reality.Neighbor{
			ID:         res.ID,
			Text:       res.Content,
			Attributes: attrs,
			CreatedAt:  createdAt,
			Distance:   reality.SimilarityToDistance(float64(res.Similarity)),
		})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})

	s.logger.Debug("queried realities",
		zap.String("owner", ownerID),
		zap.Int("k", k),
		zap.Int("found", len(neighbors)))
	return neighbors, nil
}

// ListByOwner returns the owner's realities oldest first.
//
// chromem-go has no scan API, so this ranks every document of the owner
// against a constant probe vector and reorders by creation time.
func (s *ChromemStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]reality.Record, error) {
	total := s.col.Count()
	if total == 0 {
		return []reality.Record{}, nil
	}

	dims := s.Dimensions()
	if dims == 0 {
		return nil, &reality.StorageError{Op: "list", Err: fmt.Errorf("dimensionality not established for %d stored documents", total)}
	}
	probe := make([]float32, dims)
	for i := range probe {
		probe[i] = 1
	}

	results, err := s.query(ctx, ownerID, probe, total)
	if err != nil {
		return nil, err
	}

	records := make([]reality.Record, 0, len(results))
	for _, res := range results {
		attrs, createdAt, err := reality.DecodeMetadata(res.Metadata)
		if err != nil {
			return nil, reality.NewStorageError("list", fmt.Errorf("decode %s: %w", res.ID, err))
		}
		records = append(records, reality.Record{
			ID:         res.ID,
			OwnerID:    res.Metadata[reality.MetaOwnerID],
			Text:       res.Content,
			Vector:     res.Embedding,
			Attributes: attrs,
			CreatedAt:  createdAt,
		})
	}

	// ULIDs sort by creation time, and break timestamp ties in insertion order.
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Close releases resources.
func (s *ChromemStore) Close() error {
	// chromem-go writes every document on insert, nothing to flush
	return nil
}

// query runs a where-filtered query. chromem-go requires
// nResults <= collection size, so n is capped and retried downwards if the
// collection shrank underneath us.
func (s *ChromemStore) query(ctx context.Context, ownerID string, vector []float32, n int) ([]chromem.Result, error) {
	if total := s.col.Count(); n > total {
		n = total
	}
	if n == 0 {
		return nil, nil
	}

	where := map[string]string{
		reality.MetaOwnerID: ownerID,
	}

	for limit := n; limit >= 1; limit-- {
		results, err := s.col.QueryEmbedding(ctx, vector, limit, where, nil)
		if err == nil {
			return results, nil
		}
		if !isInsufficientDocsError(err) {
			return nil, reality.NewStorageError("query", fmt.Errorf("chromem query: %w", err))
		}
	}
	return nil, nil
}

// isInsufficientDocsError checks if error is due to insufficient documents.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
