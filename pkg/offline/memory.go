package offline

import (
	"slices"
	"sync"

	"github.com/aretw0/notesync/pkg/core"
)

// MemoryStore keeps the queue in memory. It survives nothing; use it for
// tests and ephemeral sessions.
type MemoryStore struct {
	mu    sync.Mutex
	notes []core.OfflineNote
	Err   error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load() ([]core.OfflineNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.notes), nil
}

// Save implements Store. Setting Err makes every save fail.
func (m *MemoryStore) Save(notes []core.OfflineNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.notes = slices.Clone(notes)
	return nil
}
