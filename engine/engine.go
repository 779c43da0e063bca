package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/becomeliminal/nim-reality/core"
	"github.com/becomeliminal/nim-reality/reality"
)

// DefaultTopK is the number of neighbours fetched per turn.
const DefaultTopK = 3

// ErrInvalidInput is returned for turns without text or owner.
var ErrInvalidInput = errors.New("invalid turn input")

// Engine runs one turn at a time through analysis, novelty detection,
// storage and reply selection.
type Engine struct {
	memory    *reality.Memory
	analyzer  reality.Analyzer
	tracker   *reality.Tracker
	responder reality.Responder

	logger       *zap.Logger
	metrics      *Metrics // Optional
	topK         int
	timeout      time.Duration
	systemPrompt string

	locks ownerLocks
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records turn metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTopK sets how many neighbours are fetched per turn.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithTimeout bounds each turn. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithSystemPrompt sets the assistant persona shown to clients.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		if strings.TrimSpace(prompt) != "" {
			e.systemPrompt = prompt
		}
	}
}

// NewEngine creates a new engine.
func NewEngine(memory *reality.Memory, analyzer reality.Analyzer, tracker *reality.Tracker, responder reality.Responder, opts ...Option) *Engine {
	e := &Engine{
		memory:       memory,
		analyzer:     analyzer,
		tracker:      tracker,
		responder:    responder,
		logger:       zap.NewNop(),
		topK:         DefaultTopK,
		systemPrompt: DefaultSystemPrompt,
		locks:        ownerLocks{locks: make(map[string]*ownerLock)},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("engine")
	return e
}

// SystemPrompt returns the configured assistant persona.
func (e *Engine) SystemPrompt() string {
	return e.systemPrompt
}

// Memory returns the engine's memory manager.
func (e *Engine) Memory() *reality.Memory {
	return e.memory
}

// Input represents one user turn.
type Input struct {
	// UserID owns the turn. Falls back to the session's owner.
	UserID string

	// Text is the raw utterance.
	Text string

	// Session is optional. When set, the transcript and observed
	// realities are appended to it and a shift is described.
	Session *reality.Session
}

// Output represents the result of one turn.
type Output struct {
	Reply        string
	IsNewReality bool
	Attributes   core.Attributes

	// Neighbors are the owner's closest records before this turn was stored.
	Neighbors []reality.Neighbor

	RecordID string

	// Shift describes how attributes moved since the session's previous
	// turn. Empty without a session.
	Shift string

	Elapsed time.Duration
}

// Response converts the output to its wire form.
func (o *Output) Response() core.TurnResponse {
	similar := make([]core.SimilarReality, 0, len(o.Neighbors))
	for _, n := range o.Neighbors {
		similar = append(similar, core.SimilarReality{
			ID:         n.ID,
			Text:       n.Text,
			Distance:   n.Distance,
			Similarity: n.Similarity(),
		})
	}
	return core.TurnResponse{
		ReplyText:          o.Reply,
		IsNewReality:       o.IsNewReality,
		DetectedAttributes: o.Attributes,
		Similar:            similar,
		RecordID:           o.RecordID,
		Shift:              o.Shift,
	}
}

// Run processes one turn.
//
// Embedding and storage failures are returned unchanged, so callers can
// match *reality.EmbeddingError and *reality.StorageError with errors.As.
// Nothing is stored when a turn fails before the insert.
func (e *Engine) Run(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()
	out, err := e.run(ctx, input)
	elapsed := time.Since(start)

	if err != nil {
		e.metrics.turnFailed(errorKind(err), elapsed)
		e.logger.Warn("turn failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return nil, err
	}

	out.Elapsed = elapsed
	e.metrics.turnCompleted(out.IsNewReality, elapsed)
	return out, nil
}

func (e *Engine) run(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: nil input", ErrInvalidInput)
	}
	ownerID := input.UserID
	if ownerID == "" && input.Session != nil {
		ownerID = input.Session.OwnerID()
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidInput)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	// One turn per owner at a time, so the query below always sees the
	// owner's previous insert. Waiting counts against the turn's deadline.
	unlock, err := e.locks.lock(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("wait for owner %s: %w", ownerID, err)
	}
	defer unlock()

	// === PHASE 1: ANALYZE ===
	attrs := e.analyzer.Analyze(ctx, input.Text).Normalize()

	// === PHASE 2: EMBED ===
	vector, err := e.memory.Embed(ctx, input.Text)
	if err != nil {
		return nil, err
	}

	// === PHASE 3: RECALL ===
	// Queried before the insert so the current turn is never its own neighbour.
	neighbors, err := e.memory.Recall(ctx, ownerID, vector, e.topK)
	if err != nil {
		return nil, err
	}

	// === PHASE 4: DECIDE ===
	isNew := e.tracker.IsNew(neighbors)

	// === PHASE 5: RECORD ===
	recordID, err := e.memory.Record(ctx, ownerID, input.Text, vector, attrs)
	if err != nil {
		return nil, err
	}

	// === PHASE 6: RESPOND ===
	reply := e.responder.Respond(attrs.EmotionalState)

	out := &Output{
		Reply:        reply,
		IsNewReality: isNew,
		Attributes:   attrs,
		Neighbors:    neighbors,
		RecordID:     recordID,
	}

	if s := input.Session; s != nil {
		var previous *core.Attributes
		if last := s.Last(); last != nil {
			previous = &last.Attributes
		}
		out.Shift = reality.DescribeShift(attrs, previous)

		s.AddTurn(core.RoleUser, input.Text)
		s.AddTurn(core.RoleAssistant, reply)
		s.AddEntry(reality.Entry{
			RecordID:     recordID,
			Timestamp:    time.Now(),
			Attributes:   attrs,
			IsNewReality: isNew,
		})
	}

	e.logger.Info("turn complete",
		zap.String("owner", ownerID),
		zap.String("record_id", recordID),
		zap.Bool("new_reality", isNew),
		zap.String("emotion", attrs.EmotionalState),
		zap.Int("neighbors", len(neighbors)))

	return out, nil
}

// errorKind labels a turn failure for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case reality.IsEmbeddingError(err):
		return "embedding"
	case reality.IsStorageError(err):
		return "storage"
	default:
		return "other"
	}
}

// ownerLocks hands out one semaphore per owner and forgets it once unused.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	sem  *semaphore.Weighted
	refs int
}

// lock blocks until owner is free or ctx ends.
func (l *ownerLocks) lock(ctx context.Context, owner string) (func(), error) {
	l.mu.Lock()
	ol, ok := l.locks[owner]
	if !ok {
		ol = &ownerLock{sem: semaphore.NewWeighted(1)}
		l.locks[owner] = ol
	}
	ol.refs++
	l.mu.Unlock()

	if err := ol.sem.Acquire(ctx, 1); err != nil {
		l.release(owner, ol)
		return nil, err
	}
	return func() {
		ol.sem.Release(1)
		l.release(owner, ol)
	}, nil
}

func (l *ownerLocks) release(owner string, ol *ownerLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ol.refs--
	if ol.refs == 0 {
		delete(l.locks, owner)
	}
}
