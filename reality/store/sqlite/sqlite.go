// Package sqlite implements reality.Store on SQLite.
//
// Vectors are stored as little-endian float32 blobs and ranked in Go by
// cosine distance. This trades query speed for a single-file, dependency-free
// store that survives restarts with its dimensionality intact.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/becomeliminal/nim-reality/core"
	"github.com/becomeliminal/nim-reality/reality"
)

const metaDimensions = "dimensions"

// SQLiteStore implements reality.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger

	mu   sync.RWMutex
	dims int
	now  func() time.Time
}

var _ reality.Store = (*SQLiteStore)(nil)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDimensions fixes the dimensionality of a new database. It is an error
// to open an existing database with a different value.
func WithDimensions(dims int) Option {
	return func(s *SQLiteStore) {
		s.dims = dims
	}
}

// New opens or creates a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("sqlite")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, reality.NewStorageError("open", fmt.Errorf("create db dir: %w", err))
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, reality.NewStorageError("open", fmt.Errorf("open db: %w", err))
	}
	// One connection: a single writer gives read-your-writes for free.
	db.SetMaxOpenConns(1)
	s.db = db

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, reality.NewStorageError("open", fmt.Errorf("migrate: %w", err))
	}
	if err := s.loadDimensions(); err != nil {
		db.Close()
		return nil, reality.NewStorageError("open", err)
	}

	s.logger.Info("store ready", zap.String("path", dbPath), zap.Int("dims", s.dims))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS realities (
		seq              INTEGER PRIMARY KEY AUTOINCREMENT,
		id               TEXT NOT NULL UNIQUE,
		owner_id         TEXT NOT NULL,
		text             TEXT NOT NULL,
		embedding        BLOB NOT NULL,
		emotional_state  TEXT NOT NULL,
		beliefs          TEXT NOT NULL,
		cognitive_need   TEXT NOT NULL,
		shift_indicators TEXT NOT NULL,
		text_sample      TEXT NOT NULL,
		timestamp        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_realities_owner ON realities(owner_id, seq);

	CREATE TABLE IF NOT EXISTS store_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// loadDimensions reconciles the persisted dimensionality with the
// configured one.
func (s *SQLiteStore) loadDimensions() error {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM store_meta WHERE key = ?`, metaDimensions).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if s.dims > 0 {
			return s.saveDimensions(s.dims)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read dimensions: %w", err)
	}

	persisted, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("parse dimensions %q: %w", raw, err)
	}
	if s.dims > 0 && s.dims != persisted {
		return fmt.Errorf("%w: database has %d, configured %d", reality.ErrDimensionMismatch, persisted, s.dims)
	}
	s.dims = persisted
	return nil
}

func (s *SQLiteStore) saveDimensions(dims int) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO store_meta (key, value) VALUES (?, ?)`,
		metaDimensions, strconv.Itoa(dims))
	if err != nil {
		return fmt.Errorf("save dimensions: %w", err)
	}
	return nil
}

// Dimensions returns the established dimensionality, or 0 if none yet.
func (s *SQLiteStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Insert stores a reality.
func (s *SQLiteStore) Insert(ctx context.Context, ownerID, text string, vector []float32, attrs core.Attributes) (string, error) {
	if ownerID == "" {
		return "", &reality.StorageError{Op: "insert", Err: reality.ErrEmptyOwner}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := reality.CheckVector("insert", vector, s.dims); err != nil {
		return "", err
	}

	createdAt := s.now()
	id := reality.NewRecordID(createdAt)
	meta, err := reality.EncodeMetadata(ownerID, text, attrs, createdAt)
	if err != nil {
		return "", reality.NewStorageError("insert", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", reality.NewStorageError("insert", fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO realities (id, owner_id, text, embedding, emotional_state, beliefs,
			cognitive_need, shift_indicators, text_sample, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, text, encodeVector(reality.UnitVector(vector)),
		meta[reality.MetaEmotionalState], meta[reality.MetaBeliefs],
		meta[reality.MetaCognitiveNeed], meta[reality.MetaShiftIndicators],
		meta[reality.MetaTextSample], meta[reality.MetaTimestamp])
	if err != nil {
		return "", reality.NewStorageError("insert", fmt.Errorf("insert row: %w", err))
	}

	if s.dims == 0 {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO store_meta (key, value) VALUES (?, ?)`,
			metaDimensions, strconv.Itoa(len(vector))); err != nil {
			return "", reality.NewStorageError("insert", fmt.Errorf("save dimensions: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return "", reality.NewStorageError("insert", fmt.Errorf("commit: %w", err))
	}
	if s.dims == 0 {
		s.dims = len(vector)
	}

	s.logger.Debug("stored reality", zap.String("id", id), zap.String("owner", ownerID))
	return id, nil
}

// QueryNearest ranks every record of the owner by cosine distance.
func (s *SQLiteStore) QueryNearest(ctx context.Context, ownerID string, vector []float32, k int) ([]reality.Neighbor, error) {
	if k <= 0 {
		return []reality.Neighbor{}, nil
	}
	if err := reality.CheckVector("query", vector, s.Dimensions()); err != nil {
		return nil, err
	}

	records, err := s.scan(ctx, "query", ownerID, 0)
	if err != nil {
		return nil, err
	}

	neighbors := make([]reality.Neighbor, 0, len(records))
	for _, r := range records {
		neighbors = append(neighbors, reality.Neighbor{
			ID:         r.ID,
			Text:       r.Text,
			Attributes: r.Attributes,
			CreatedAt:  r.CreatedAt,
			Distance:   reality.CosineDistance(vector, r.Vector),
		})
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// ListByOwner returns the owner's realities in insertion order.
func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]reality.Record, error) {
	return s.scan(ctx, "list", ownerID, limit)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) scan(ctx context.Context, op, ownerID string, limit int) ([]reality.Record, error) {
	query := `
		SELECT id, owner_id, text, embedding, emotional_state, beliefs,
			cognitive_need, shift_indicators, timestamp
		FROM realities WHERE owner_id = ? ORDER BY seq`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, reality.NewStorageError(op, fmt.Errorf("select: %w", err))
	}
	defer rows.Close()

	records := []reality.Record{}
	for rows.Next() {
		var (
			r    reality.Record
			blob []byte
			meta = map[string]string{}
		)
		var emotion, beliefs, need, shifts, ts string
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Text, &blob, &emotion, &beliefs, &need, &shifts, &ts); err != nil {
			return nil, reality.NewStorageError(op, fmt.Errorf("scan: %w", err))
		}
		meta[reality.MetaEmotionalState] = emotion
		meta[reality.MetaBeliefs] = beliefs
		meta[reality.MetaCognitiveNeed] = need
		meta[reality.MetaShiftIndicators] = shifts
		meta[reality.MetaTimestamp] = ts

		attrs, createdAt, err := reality.DecodeMetadata(meta)
		if err != nil {
			return nil, reality.NewStorageError(op, fmt.Errorf("decode %s: %w", r.ID, err))
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, reality.NewStorageError(op, fmt.Errorf("decode %s: %w", r.ID, err))
		}
		r.Attributes = attrs
		r.CreatedAt = createdAt
		r.Vector = vec
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, reality.NewStorageError(op, err)
	}
	return records, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
