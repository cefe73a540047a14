package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/tsagent/internal/session"
)

// SQLiteStore persists sessions in a single SQLite database. Turns live
// in their own table (append-only, ordered by seq) and artifacts are
// keyed by (session_id, name) so an upsert replaces the prior row.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at dbPath and
// initializes the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("session store opened", "path", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			user_text TEXT NOT NULL,
			generated_code TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			output_summary TEXT NOT NULL DEFAULT '',
			error_detail TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (session_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			session_id TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			created_by_turn_id TEXT NOT NULL,
			value_ref TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (session_id, name)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 50)], err)
		}
	}
	return nil
}

// Save replaces the stored record for the session in one transaction.
func (s *SQLiteStore) Save(sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO sessions (id, created_at) VALUES (?, ?)`,
		sess.ID, sess.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM turns WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}
	for i, t := range sess.Turns {
		if _, err := tx.Exec(`INSERT INTO turns
			(session_id, seq, id, timestamp, user_text, generated_code, status, output_summary, error_detail)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, i, t.ID, t.Timestamp.UnixNano(), t.UserText, t.GeneratedCode,
			string(t.Status), t.OutputSummary, t.ErrorDetail); err != nil {
			return fmt.Errorf("insert turn %d: %w", i, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM artifacts WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}
	for _, a := range sess.Artifacts {
		if _, err := tx.Exec(`INSERT INTO artifacts
			(session_id, name, kind, created_by_turn_id, value_ref)
			VALUES (?, ?, ?, ?, ?)`,
			sess.ID, a.Name, string(a.Kind), a.CreatedByTurnID, a.ValueRef); err != nil {
			return fmt.Errorf("insert artifact %s: %w", a.Name, err)
		}
	}

	return tx.Commit()
}

// Load reconstructs a session from its rows. Statuses or kinds outside
// the known sets indicate a corrupt record.
func (s *SQLiteStore) Load(sessionID string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var createdAt int64
	err := s.db.QueryRow(`SELECT created_at FROM sessions WHERE id = ?`, sessionID).Scan(&createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		ID:        sessionID,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
		Artifacts: make(map[string]session.Artifact),
	}

	rows, err := s.db.Query(`SELECT id, timestamp, user_text, generated_code, status, output_summary, error_detail
		FROM turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t session.Turn
		var ts int64
		var status string
		if err := rows.Scan(&t.ID, &ts, &t.UserText, &t.GeneratedCode, &status, &t.OutputSummary, &t.ErrorDetail); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", session.ErrCorruptSession, sessionID, err)
		}
		t.Timestamp = time.Unix(0, ts).UTC()
		t.Status = session.ExecutionStatus(status)
		switch t.Status {
		case session.StatusSuccess, session.StatusFailed, session.StatusSkipped, session.StatusFixed:
		default:
			return nil, fmt.Errorf("%w: %s: unknown turn status %q", session.ErrCorruptSession, sessionID, status)
		}
		sess.Turns = append(sess.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := s.db.Query(`SELECT name, kind, created_by_turn_id, value_ref
		FROM artifacts WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	defer arows.Close()
	for arows.Next() {
		var a session.Artifact
		var kind string
		if err := arows.Scan(&a.Name, &kind, &a.CreatedByTurnID, &a.ValueRef); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", session.ErrCorruptSession, sessionID, err)
		}
		a.Kind = session.ArtifactKind(kind)
		switch a.Kind {
		case session.KindDataset, session.KindModel, session.KindForecast, session.KindFigure, session.KindTable:
		default:
			return nil, fmt.Errorf("%w: %s: unknown artifact kind %q", session.ErrCorruptSession, sessionID, kind)
		}
		sess.Artifacts[a.Name] = a
	}
	if err := arows.Err(); err != nil {
		return nil, err
	}

	return sess, nil
}

// List returns stored session IDs, newest first.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM sessions ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// MarshalDebug dumps a session as JSON for the sessions CLI.
func MarshalDebug(sess *session.Session) string {
	data, _ := json.MarshalIndent(sess, "", "  ")
	return string(data)
}
