package fs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/notesync/pkg/core"
)

// DefaultDraftPattern matches draft files by base name.
const DefaultDraftPattern = "*.md"

// DraftDir tracks open edits kept as {id}.md files, so an external editor
// holding a note open blocks background merges for it.
type DraftDir struct {
	Path    string
	Pattern string
	logger  *slog.Logger

	mu       sync.RWMutex
	ids      map[int64]struct{}
	watching bool
}

// NewDraftDir creates a tracker for dir. Call Scan (or start the watcher)
// to pick up drafts that already exist.
func NewDraftDir(dir string, logger *slog.Logger) *DraftDir {
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftDir{
		Path:    dir,
		Pattern: DefaultDraftPattern,
		logger:  logger,
		ids:     make(map[int64]struct{}),
	}
}

// Scan rebuilds the draft set from the directory contents.
func (d *DraftDir) Scan() error {
	entries, err := os.ReadDir(d.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to scan drafts: %w", err)
	}

	ids := make(map[int64]struct{})
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := d.resolveID(e.Name()); ok {
			ids[id] = struct{}{}
		}
	}

	d.mu.Lock()
	d.ids = ids
	d.mu.Unlock()
	return nil
}

// resolveID maps a draft file name to its note id.
func (d *DraftDir) resolveID(name string) (int64, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, TempFilePrefix) {
		return 0, false
	}
	ok, err := doublestar.Match(d.Pattern, base)
	if err != nil || !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(base, filepath.Ext(base)), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func (d *DraftDir) draftPath(id int64) string {
	return filepath.Join(d.Path, strconv.FormatInt(id, 10)+".md")
}

// Open writes the draft file for id and marks it open.
func (d *DraftDir) Open(id int64, content string) error {
	if err := os.MkdirAll(d.Path, 0755); err != nil {
		return fmt.Errorf("failed to create drafts dir: %w", err)
	}
	if err := writeFileAtomic(d.draftPath(id), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write draft %d: %w", id, err)
	}
	d.set(id, true)
	return nil
}

// Read returns the draft content for id.
func (d *DraftDir) Read(id int64) (string, error) {
	data, err := os.ReadFile(d.draftPath(id))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("draft %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read draft %d: %w", id, err)
	}
	return string(data), nil
}

// Close removes the draft file for id. A missing file is not an error.
func (d *DraftDir) Close(id int64) error {
	if err := os.Remove(d.draftPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove draft %d: %w", id, err)
	}
	d.set(id, false)
	return nil
}

func (d *DraftDir) set(id int64, open bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if open {
		d.ids[id] = struct{}{}
	} else {
		delete(d.ids, id)
	}
}

// HasDraft implements core.DraftChecker.
func (d *DraftDir) HasDraft(id int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.ids[id]
	return ok
}

// IDs returns the open drafts in ascending order.
func (d *DraftDir) IDs() []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]int64, 0, len(d.ids))
	for id := range d.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (d *DraftDir) setWatching(active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.watching = active
}

var _ core.DraftChecker = (*DraftDir)(nil)
