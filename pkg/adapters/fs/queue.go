package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/offline"
)

// QueueFileName is the offline queue file inside the data directory.
const QueueFileName = "offline.json"

type queueDoc struct {
	Version int                `json:"version"`
	Notes   []core.OfflineNote `json:"notes"`
}

// QueueFile persists the offline queue as JSON. Unlike the note cache it
// holds data that exists nowhere else, so a corrupt file is an error rather
// than a reset.
type QueueFile struct {
	Path string
	mu   sync.Mutex
}

// NewQueueFile stores the queue at {dir}/offline.json.
func NewQueueFile(dir string) *QueueFile {
	return &QueueFile{Path: filepath.Join(dir, QueueFileName)}
}

// Load implements offline.Store.
func (q *QueueFile) Load() ([]core.OfflineNote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	data, err := os.ReadFile(q.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read offline queue: %w", err)
	}
	var doc queueDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode offline queue %s: %w", q.Path, err)
	}
	return doc.Notes, nil
}

// Save implements offline.Store.
func (q *QueueFile) Save(notes []core.OfflineNote) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if notes == nil {
		notes = []core.OfflineNote{}
	}
	data, err := json.MarshalIndent(queueDoc{Version: 1, Notes: notes}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode offline queue: %w", err)
	}
	return writeJSONAtomic(q.Path, data)
}

var _ offline.Store = (*QueueFile)(nil)
