package fs

import (
	"github.com/aretw0/introspection"
)

// DraftDirState exposes internal state for observability.
type DraftDirState struct {
	Path     string  `json:"path"`
	Pattern  string  `json:"pattern"`
	Open     []int64 `json:"open"`
	Watching bool    `json:"watching"`
}

// State implements introspection.Introspectable.
func (d *DraftDir) State() any {
	ids := d.IDs()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return DraftDirState{
		Path:     d.Path,
		Pattern:  d.Pattern,
		Open:     ids,
		Watching: d.watching,
	}
}

// ComponentType implements introspection.Component.
func (d *DraftDir) ComponentType() string {
	return "draft-dir"
}

// NoteCacheState exposes internal state for observability.
type NoteCacheState struct {
	Path   string `json:"path"`
	Notes  int    `json:"notes"`
	Loaded bool   `json:"loaded"`
}

// State implements introspection.Introspectable.
func (c *NoteCache) State() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return NoteCacheState{
		Path:   c.Path,
		Notes:  len(c.index.Notes),
		Loaded: c.loaded,
	}
}

// ComponentType implements introspection.Component.
func (c *NoteCache) ComponentType() string {
	return "note-cache"
}

var (
	_ introspection.Introspectable = (*DraftDir)(nil)
	_ introspection.Component      = (*DraftDir)(nil)
	_ introspection.Introspectable = (*NoteCache)(nil)
	_ introspection.Component      = (*NoteCache)(nil)
)
