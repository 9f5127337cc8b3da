package memory

import (
	"slices"
	"sync"

	"github.com/aretw0/notesync/pkg/core"
)

// Drafts tracks notes with an open local editor.
type Drafts struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

// NewDrafts creates an empty draft set.
func NewDrafts() *Drafts {
	return &Drafts{ids: make(map[int64]struct{})}
}

// Open marks id as being edited.
func (d *Drafts) Open(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[id] = struct{}{}
}

// Close clears the draft for id.
func (d *Drafts) Close(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ids, id)
}

// HasDraft implements core.DraftChecker.
func (d *Drafts) HasDraft(id int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.ids[id]
	return ok
}

// IDs returns the open drafts in ascending order.
func (d *Drafts) IDs() []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]int64, 0, len(d.ids))
	for id := range d.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

var _ core.DraftChecker = (*Drafts)(nil)

// Notifications records every notification it receives.
type Notifications struct {
	mu  sync.Mutex
	all []core.Notification
}

// Notify implements core.Notifier.
func (r *Notifications) Notify(n core.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

// All returns the recorded notifications in order.
func (r *Notifications) All() []core.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.all)
}

// Count returns how many notifications of kind were recorded.
func (r *Notifications) Count(kind core.NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.all {
		if x.Kind == kind {
			n++
		}
	}
	return n
}

var _ core.Notifier = (*Notifications)(nil)
