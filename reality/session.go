package reality

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/becomeliminal/nim-reality/core"
)

// Entry is one reality observed during a session.
type Entry struct {
	RecordID     string          `json:"record_id"`
	Timestamp    time.Time       `json:"timestamp"`
	Attributes   core.Attributes `json:"attributes"`
	IsNewReality bool            `json:"is_new_reality"`
}

// Session is the transient, in-memory state of one interactive
// conversation. It is created by Sessions.Start and discarded by
// Sessions.End; nothing in it is persisted.
type Session struct {
	id        string
	ownerID   string
	startedAt time.Time

	mu      sync.RWMutex
	turns   []core.Message
	entries []Entry
}

// NewSession creates a session for ownerID.
func NewSession(ownerID string) *Session {
	return &Session{
		id:        uuid.New().String(),
		ownerID:   ownerID,
		startedAt: time.Now(),
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) OwnerID() string      { return s.ownerID }
func (s *Session) StartedAt() time.Time { return s.startedAt }

// AddTurn appends a chat message.
func (s *Session) AddTurn(role core.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, core.Message{Role: role, Content: content, Timestamp: time.Now()})
}

// AddEntry appends an observed reality.
func (s *Session) AddEntry(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Attributes = e.Attributes.Clone()
	s.entries = append(s.entries, e)
}

// Turns returns a copy of the transcript.
func (s *Session) Turns() []core.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Message(nil), s.turns...)
}

// Entries returns a copy of the observed realities.
func (s *Session) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// Last returns the most recent entry, or nil if there is none.
func (s *Session) Last() *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil
	}
	e := s.entries[len(s.entries)-1]
	return &e
}

// Len returns the number of observed realities.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// EmotionCount is the number of entries sharing an emotional state.
type EmotionCount struct {
	Emotion string `json:"emotion"`
	Count   int    `json:"count"`
}

// EmotionDistribution counts entries per emotional state, most frequent
// first and ties broken by name.
func (s *Session) EmotionDistribution() []EmotionCount {
	s.mu.RLock()
	counts := make(map[string]int)
	for _, e := range s.entries {
		counts[e.Attributes.EmotionalState]++
	}
	s.mu.RUnlock()

	out := make([]EmotionCount, 0, len(counts))
	for emotion, n := range counts {
		out = append(out, EmotionCount{Emotion: emotion, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Emotion < out[j].Emotion
	})
	return out
}

// Snapshot is a serializable view of a session.
type Snapshot struct {
	ID                  string         `json:"id"`
	OwnerID             string         `json:"owner_id"`
	StartedAt           time.Time      `json:"started_at"`
	Turns               []core.Message `json:"turns"`
	Entries             []Entry        `json:"entries"`
	EmotionDistribution []EmotionCount `json:"emotion_distribution"`
}

// Snapshot returns a point-in-time copy of the session.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:                  s.id,
		OwnerID:             s.ownerID,
		StartedAt:           s.startedAt,
		Turns:               s.Turns(),
		Entries:             s.Entries(),
		EmotionDistribution: s.EmotionDistribution(),
	}
}

// Sessions tracks live sessions. It is safe for concurrent use.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Start creates and registers a session. An empty ownerID gets a generated
// one of the form user_YYYYMMDD_HHMMSS.
func (r *Sessions) Start(ownerID string) *Session {
	if ownerID == "" {
		ownerID = DefaultOwnerID(r.now())
	}
	s := NewSession(ownerID)

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s
}

// Get returns the session with id.
func (r *Sessions) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// End discards the session. It reports whether the session existed.
func (r *Sessions) End(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// DefaultOwnerID returns the owner ID assigned to anonymous users.
func DefaultOwnerID(now time.Time) string {
	return fmt.Sprintf("user_%s", now.Format("20060102_150405"))
}
