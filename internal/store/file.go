// Package store provides durable session storage: a JSON-file backend
// (default, one record per session) and a SQLite backend.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nextlevelbuilder/tsagent/internal/session"
)

// FileStore persists each session as sessions/<id>/session.json.
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

func (f *FileStore) path(sessionID string) string {
	return filepath.Join(f.root, sessionID, "session.json")
}

// Save writes the full session record atomically (temp file + rename)
// so a crash mid-write never corrupts the prior record.
func (f *FileStore) Save(s *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Join(f.root, s.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmp := f.path(s.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, f.path(s.ID)); err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return nil
}

// Load reads a session record back. An unreadable file is a plain
// error; an unparseable one is ErrCorruptSession.
func (f *FileStore) Load(sessionID string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(sessionID))
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}

	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", session.ErrCorruptSession, sessionID, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns persisted session IDs, newest first. IDs encode the
// creation timestamp, so lexical order is chronological.
func (f *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := os.Stat(f.path(e.Name())); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}
