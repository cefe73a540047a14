package dataset

import (
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 8

// cachedTable is a parsed CSV plus the file mtime it was read at.
type cachedTable struct {
	frame *Frame
	mtime time.Time
}

// Loader loads frames with an LRU cache keyed by absolute path, so
// re-analyzing the same file does not re-read it. Entries are
// invalidated when the file's mtime changes.
type Loader struct {
	cache *lru.Cache[string, cachedTable]
}

// NewLoader creates a loader with the given cache capacity.
func NewLoader(size int) *Loader {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, _ := lru.New[string, cachedTable](size)
	return &Loader{cache: c}
}

// Load returns a validated frame for path with the given column roles.
func (l *Loader) Load(path, target, seriesID string) (*Frame, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, &DataLoadError{Path: path, Reason: "cannot stat file", Err: err}
	}

	if entry, ok := l.cache.Get(abs); ok && entry.mtime.Equal(info.ModTime()) {
		return entry.frame.WithRoles(target, seriesID)
	}

	fr, err := Load(abs, target, seriesID)
	if err != nil {
		return nil, err
	}
	l.cache.Add(abs, cachedTable{frame: fr, mtime: info.ModTime()})
	return fr, nil
}
