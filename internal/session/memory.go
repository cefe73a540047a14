package session

import (
	"fmt"
	"log/slog"
	"sync"
)

// Persister writes a full session record to durable storage and reads
// it back. Implemented by store.FileStore and store.SQLiteStore.
type Persister interface {
	Save(s *Session) error
	Load(sessionID string) (*Session, error)
}

const defaultWindow = 10

// Memory is the session memory store: an append-only turn log, the
// artifact map, and a bounded in-memory window used for prompt context.
// Eviction from the window never deletes persisted records.
type Memory struct {
	mu      sync.Mutex
	sess    *Session
	window  int
	backend Persister
}

// NewMemory wraps a session with a context window of size window.
// A window <= 0 falls back to the default.
func NewMemory(sess *Session, window int, backend Persister) *Memory {
	if window <= 0 {
		window = defaultWindow
	}
	return &Memory{sess: sess, window: window, backend: backend}
}

// SetWindow adjusts the context window size at runtime (config reload).
func (m *Memory) SetWindow(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.window = n
	}
}

// SessionID returns the identifier of the wrapped session.
func (m *Memory) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.ID
}

// Append adds a turn to the log. Turns are ordered by insertion; only
// the context window is bounded, never the log itself.
func (m *Memory) Append(t Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.Turns = append(m.sess.Turns, t)
}

// AmendStatus rewrites the status of an existing turn. Used only when a
// fix turn supersedes a failed one; any other mutation of history is
// off-limits.
func (m *Memory) AmendStatus(turnID string, status ExecutionStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sess.Turns {
		if m.sess.Turns[i].ID == turnID {
			m.sess.Turns[i].Status = status
			return true
		}
	}
	return false
}

// UpsertArtifact inserts or replaces an artifact by name. Last write
// wins; earlier turns referencing the old value are left untouched.
func (m *Memory) UpsertArtifact(a Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.Artifacts[a.Name] = a
}

// Artifact returns the artifact registered under name.
func (m *Memory) Artifact(name string) (Artifact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.sess.Artifacts[name]
	return a, ok
}

// HasArtifactKind reports whether any artifact of the given kind exists.
func (m *Memory) HasArtifactKind(kind ArtifactKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.sess.Artifacts {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

// Recent returns at most n turns, most recent last (insertion order
// preserved). n <= 0 returns nil.
func (m *Memory) Recent(n int) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recentLocked(n)
}

func (m *Memory) recentLocked(n int) []Turn {
	if n <= 0 {
		return nil
	}
	turns := m.sess.Turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// ContextSnapshot returns the windowed recent turns plus a copy of the
// full artifact map, for prompt construction.
func (m *Memory) ContextSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	arts := make(map[string]Artifact, len(m.sess.Artifacts))
	for k, v := range m.sess.Artifacts {
		arts[k] = v
	}
	return Snapshot{
		Turns:     m.recentLocked(m.window),
		Artifacts: arts,
	}
}

// LastTurn returns the most recent turn, if any.
func (m *Memory) LastTurn() (Turn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sess.Turns) == 0 {
		return Turn{}, false
	}
	return m.sess.Turns[len(m.sess.Turns)-1], true
}

// Persist flushes the full session to the backend. Called after every
// turn so a crash loses at most the in-flight turn.
func (m *Memory) Persist() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backend == nil {
		return nil
	}
	if err := m.backend.Save(m.sess); err != nil {
		return fmt.Errorf("persist session %s: %w", m.sess.ID, err)
	}
	slog.Debug("session persisted", "session", m.sess.ID, "turns", len(m.sess.Turns))
	return nil
}

// Resume loads a persisted session into a fresh Memory.
func Resume(sessionID string, window int, backend Persister) (*Memory, error) {
	sess, err := backend.Load(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	return NewMemory(sess, window, backend), nil
}
