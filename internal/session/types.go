// Package session holds the per-session memory model: the ordered turn
// log, the named artifact map, and the bounded context window used to
// build model prompts.
package session

import (
	"errors"
	"fmt"
	"time"
)

// ExecutionStatus is the terminal state of a turn's execution.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusFailed  ExecutionStatus = "failed"
	StatusSkipped ExecutionStatus = "skipped"
	// StatusFixed marks a previously failed turn whose code was
	// superseded by a successful fix attempt.
	StatusFixed ExecutionStatus = "fixed"
)

// ArtifactKind classifies a named analysis result.
type ArtifactKind string

const (
	KindDataset  ArtifactKind = "dataset"
	KindModel    ArtifactKind = "model"
	KindForecast ArtifactKind = "forecast"
	KindFigure   ArtifactKind = "figure"
	KindTable    ArtifactKind = "table"
)

// Turn is one exchange: user request, generated code, execution outcome.
// Immutable once appended, except that a successful fix amends the
// superseded turn's status to StatusFixed.
type Turn struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	UserText      string          `json:"user_text"`
	GeneratedCode string          `json:"generated_code,omitempty"`
	Status        ExecutionStatus `json:"execution_status"`
	OutputSummary string          `json:"output_summary,omitempty"`
	ErrorDetail   string          `json:"error_detail,omitempty"`
}

// Artifact is a named, typed result that persists across turns.
// Names are unique within a session; upserting an existing name
// replaces the prior entry (last write wins).
type Artifact struct {
	Name            string       `json:"name"`
	Kind            ArtifactKind `json:"kind"`
	CreatedByTurnID string       `json:"created_by_turn_id"`
	// ValueRef points at the artifact payload: a file path for
	// figures/tables written to disk, or the namespace binding name
	// for live values. Large payloads are never embedded in the record.
	ValueRef string `json:"value_ref,omitempty"`
}

// Session is the unit of persistence.
type Session struct {
	ID        string              `json:"session_id"`
	CreatedAt time.Time           `json:"created_at"`
	Turns     []Turn              `json:"turns"`
	Artifacts map[string]Artifact `json:"artifacts"`
}

// Snapshot is the context payload handed to prompt building: the most
// recent turns (bounded by the memory window) plus the full current
// artifact map.
type Snapshot struct {
	Turns     []Turn
	Artifacts map[string]Artifact
}

// ErrCorruptSession is returned when a persisted session record cannot
// be parsed. Surfaced to the caller, never swallowed.
var ErrCorruptSession = errors.New("corrupt session record")

// NewSessionID derives a session identifier from its creation time,
// matching the on-disk naming convention (one record per session).
func NewSessionID(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}

// NewSession creates an empty session stamped with the given time.
func NewSession(t time.Time) *Session {
	return &Session{
		ID:        NewSessionID(t),
		CreatedAt: t.UTC(),
		Artifacts: make(map[string]Artifact),
	}
}

// Validate checks structural invariants after a load.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing session_id", ErrCorruptSession)
	}
	if s.Artifacts == nil {
		s.Artifacts = make(map[string]Artifact)
	}
	return nil
}
