package fs

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/aretw0/notesync/pkg/core"
)

// CacheFile is the name of the note index inside the data directory.
const CacheFile = "notes.json"

// index is the persistent cache state.
type index struct {
	Version int                  `json:"version"`
	Notes   map[string]core.Note `json:"notes"` // keyed by decimal id
	dirty   bool
}

// NoteCache is a core.Cache kept as a single JSON index file. Every
// mutation is flushed before it returns.
type NoteCache struct {
	Path   string
	logger *slog.Logger

	mu     sync.RWMutex
	index  *index
	loaded bool
}

// NewNoteCache creates a cache stored at {dir}/notes.json. Nothing is read
// until first use.
func NewNoteCache(dir string, logger *slog.Logger) *NoteCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteCache{
		Path:   filepath.Join(dir, CacheFile),
		logger: logger,
		index:  newIndex(),
	}
}

func newIndex() *index {
	return &index{Version: 1, Notes: make(map[string]core.Note)}
}

// Load reads the index from disk. A missing file is an empty cache; a
// corrupt file is discarded and the cache starts fresh.
func (c *NoteCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked()
}

func (c *NoteCache) loadLocked() error {
	c.loaded = true
	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	idx := newIndex()
	if err := json.Unmarshal(data, idx); err != nil {
		c.logger.Warn("note cache corrupted, starting fresh", "path", c.Path, "error", err)
		c.index = newIndex()
		return nil
	}
	if idx.Notes == nil {
		idx.Notes = make(map[string]core.Note)
	}
	c.index = idx
	return nil
}

func (c *NoteCache) ensureLocked() error {
	if c.loaded {
		return nil
	}
	return c.loadLocked()
}

// saveLocked persists the index if it is dirty.
func (c *NoteCache) saveLocked() error {
	if !c.index.dirty {
		return nil
	}
	data, err := json.Marshal(c.index)
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	if err := writeJSONAtomic(c.Path, data); err != nil {
		return err
	}
	c.index.dirty = false
	return nil
}

// PutMany implements core.Cache.
func (c *NoteCache) PutMany(ctx context.Context, notes []core.Note) error {
	if len(notes) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLocked(); err != nil {
		return err
	}
	for _, n := range notes {
		c.index.Notes[key(n.ID)] = n.Clone()
	}
	c.index.dirty = true
	return c.saveLocked()
}

// GetAll implements core.Cache. Notes come back most recently updated first.
func (c *NoteCache) GetAll(ctx context.Context) ([]core.Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLocked(); err != nil {
		return nil, err
	}
	out := make([]core.Note, 0, len(c.index.Notes))
	for _, n := range c.index.Notes {
		out = append(out, n.Clone())
	}
	slices.SortFunc(out, func(a, b core.Note) int {
		if d := b.UpdatedAt.Compare(a.UpdatedAt); d != 0 {
			return d
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

// Delete implements core.Cache.
func (c *NoteCache) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLocked(); err != nil {
		return err
	}
	if _, ok := c.index.Notes[key(id)]; !ok {
		return nil
	}
	delete(c.index.Notes, key(id))
	c.index.dirty = true
	return c.saveLocked()
}

// Clear implements core.Cache.
func (c *NoteCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	c.index = newIndex()
	c.index.dirty = true
	return c.saveLocked()
}

// Len returns the number of cached notes.
func (c *NoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index.Notes)
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

var _ core.Cache = (*NoteCache)(nil)
