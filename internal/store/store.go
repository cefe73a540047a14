package store

import (
	"fmt"
	"path/filepath"

	"github.com/nextlevelbuilder/tsagent/internal/session"
)

// Store is the durable session backend. Both backends also implement
// session.Persister.
type Store interface {
	Save(s *session.Session) error
	Load(sessionID string) (*session.Session, error)
	List() ([]string, error)
}

// New creates the backend named by the config ("file" or "sqlite"),
// rooted at dir.
func New(backend, dir string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(dir), nil
	case "sqlite":
		return NewSQLiteStore(filepath.Join(dir, "sessions.db"))
	default:
		return nil, fmt.Errorf("unknown session store backend %q", backend)
	}
}
