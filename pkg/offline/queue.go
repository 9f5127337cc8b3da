// Package offline implements the durable queue of note mutations made
// without connectivity.
package offline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/notesync/pkg/core"
)

// Store persists the queue. Save receives the complete queue every time.
type Store interface {
	Load() ([]core.OfflineNote, error)
	Save(notes []core.OfflineNote) error
}

// ReplayFunc pushes one entry to the remote service.
type ReplayFunc func(ctx context.Context, note core.OfflineNote) error

// ReplayResult reports the outcome of one replay pass. Synced and Failed
// hold offline ids; an entry amended while its create was in flight is
// synced twice.
type ReplayResult struct {
	Synced []int64
	Failed map[int64]error
}

// Queue is the offline mutation queue. It is safe for concurrent use;
// Replay is serialized so only one entry is in flight at a time.
type Queue struct {
	mu       sync.Mutex
	replayMu sync.Mutex
	items    []core.OfflineNote
	store    Store
	logger   *slog.Logger
	now      func() time.Time
	lastID   int64

	// promoted maps replayed offline ids to the ids the service assigned.
	promoted map[int64]int64
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the queue logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithClock overrides the time source used to mint offline ids.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// Open loads the persisted queue.
func Open(store Store, opts ...Option) (*Queue, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	q := &Queue{
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		promoted: make(map[int64]int64),
	}
	for _, opt := range opts {
		opt(q)
	}

	items, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load offline queue: %w", err)
	}
	q.items = items
	for _, it := range items {
		q.lastID = max(q.lastID, it.ID)
	}
	return q, nil
}

// mintID derives an id from the current time, bumped so ids stay strictly
// increasing (and therefore unique) within the process.
func (q *Queue) mintID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= q.lastID {
		id = q.lastID + 1
	}
	q.lastID = id
	return id
}

// Enqueue records a note created offline and persists the queue.
func (q *Queue) Enqueue(in core.NoteInput) (core.OfflineNote, error) {
	if in.ID != 0 {
		return core.OfflineNote{}, fmt.Errorf("%w: offline create must not carry an id", core.ErrInvalidNote)
	}
	return q.add(in, 0)
}

// EnqueueUpdate records an offline edit of an existing note. The edit is
// replayed as an upsert against in.ID.
func (q *Queue) EnqueueUpdate(in core.NoteInput) (core.OfflineNote, error) {
	if in.ID == 0 {
		return core.OfflineNote{}, fmt.Errorf("%w: offline update needs an id", core.ErrInvalidNote)
	}
	return q.add(in, in.ID)
}

func (q *Queue) add(in core.NoteInput, target int64) (core.OfflineNote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	in.ID = 0
	base := in.Apply(core.Note{CreatedAt: now, UpdatedAt: now})

	refs := make([]core.Reference, 0, len(base.References))
	for _, id := range base.References {
		refs = append(refs, core.Reference{ToNoteID: id})
	}
	note := core.OfflineNote{
		ID:          q.mintID(now),
		TargetID:    target,
		Content:     base.Content,
		Type:        base.Type,
		IsArchived:  base.IsArchived,
		IsRecycle:   base.IsRecycle,
		IsTop:       base.IsTop,
		IsShare:     base.IsShare,
		Tags:        []core.Tag{},
		Attachments: base.Attachments,
		References:  refs,
		CreatedAt:   base.CreatedAt,
		UpdatedAt:   base.UpdatedAt,
		Metadata:    base.Metadata,
		IsOffline:   true,
		PendingSync: true,
	}
	if note.Attachments == nil {
		note.Attachments = []core.Attachment{}
	}
	if note.Metadata == nil {
		note.Metadata = core.Metadata{}
	}

	next := append(slices.Clone(q.items), note)
	if err := q.store.Save(next); err != nil {
		return core.OfflineNote{}, fmt.Errorf("failed to persist offline note: %w", err)
	}
	q.items = next
	return note, nil
}

// Amend folds an edit into the queued create with the given offline id, so
// the edit is replayed as part of the create and the offline id never
// reaches the service. It returns core.ErrNotFound when no such create is
// queued.
func (q *Queue) Amend(id int64, in core.NoteInput) (core.OfflineNote, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexCreate(id)
	if i < 0 {
		return core.OfflineNote{}, fmt.Errorf("%w: offline note %d", core.ErrNotFound, id)
	}
	cur := q.items[i]

	in.ID = 0
	in.CreatedAt = nil
	n := in.Apply(cur.Note())

	// UpdatedAt doubles as the entry revision, so it must move forward.
	updated := q.now()
	if !updated.After(cur.UpdatedAt) {
		updated = cur.UpdatedAt.Add(time.Millisecond)
	}

	refs := make([]core.Reference, 0, len(n.References))
	for _, ref := range n.References {
		refs = append(refs, core.Reference{ToNoteID: ref})
	}
	cur.Content = n.Content
	cur.Type = n.Type
	cur.IsArchived = n.IsArchived
	cur.IsRecycle = n.IsRecycle
	cur.IsTop = n.IsTop
	cur.IsShare = n.IsShare
	cur.Attachments = n.Attachments
	cur.References = refs
	cur.Metadata = n.Metadata
	cur.UpdatedAt = updated
	if cur.Attachments == nil {
		cur.Attachments = []core.Attachment{}
	}
	if cur.Metadata == nil {
		cur.Metadata = core.Metadata{}
	}

	next := slices.Clone(q.items)
	next[i] = cur
	if err := q.store.Save(next); err != nil {
		return core.OfflineNote{}, fmt.Errorf("failed to persist offline edit: %w", err)
	}
	q.items = next
	return cur, nil
}

// Has reports whether id is the offline id of a queued create.
func (q *Queue) Has(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.indexCreate(id) >= 0
}

func (q *Queue) indexCreate(id int64) int {
	return slices.IndexFunc(q.items, func(n core.OfflineNote) bool {
		return n.ID == id && n.TargetID == 0
	})
}

// Promote settles a replayed entry once the service accepted it as
// serverID. An entry amended since o was read stays queued, retargeted at
// serverID, and is returned with true.
func (q *Queue) Promote(o core.OfflineNote, serverID int64) (core.OfflineNote, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if o.TargetID == 0 && serverID != 0 {
		q.promoted[o.ID] = serverID
	}
	i := slices.IndexFunc(q.items, func(n core.OfflineNote) bool { return n.ID == o.ID })
	if i < 0 {
		return core.OfflineNote{}, false, nil
	}

	next := slices.Clone(q.items)
	cur := next[i]
	amended := !cur.UpdatedAt.Equal(o.UpdatedAt) && serverID != 0
	if amended {
		cur.TargetID = serverID
		next[i] = cur
	} else {
		next = slices.Delete(next, i, i+1)
	}
	if err := q.store.Save(next); err != nil {
		return core.OfflineNote{}, false, fmt.Errorf("failed to persist offline queue: %w", err)
	}
	q.items = next
	return cur, amended, nil
}

// Resolve returns the service id a replayed offline id was promoted to, or
// id itself.
func (q *Queue) Resolve(id int64) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if server, ok := q.promoted[id]; ok {
		return server
	}
	return id
}

// Pending returns the entries still waiting for sync, oldest first.
func (q *Queue) Pending() []core.OfflineNote {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]core.OfflineNote, 0, len(q.items))
	for _, it := range q.items {
		if it.PendingSync {
			out = append(out, it)
		}
	}
	return out
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Remove drops an entry by offline id. Removing an unknown id is a no-op.
func (q *Queue) Remove(id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := slices.IndexFunc(q.items, func(n core.OfflineNote) bool { return n.ID == id })
	if i < 0 {
		return nil
	}
	next := slices.Delete(slices.Clone(q.items), i, i+1)
	if err := q.store.Save(next); err != nil {
		return fmt.Errorf("failed to persist offline queue: %w", err)
	}
	q.items = next
	return nil
}

// Clear empties the queue.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.store.Save(nil); err != nil {
		return fmt.Errorf("failed to persist offline queue: %w", err)
	}
	q.items = nil
	return nil
}

// Replay pushes every pending entry through fn, one at a time. A synced
// entry is removed unless it changed while fn ran; a failed one stays queued
// for the next attempt and does not stop the others. Entries retargeted by
// Promote during the pass are pushed again before Replay returns.
// Cancelling ctx stops the pass between entries.
func (q *Queue) Replay(ctx context.Context, fn ReplayFunc) ReplayResult {
	q.replayMu.Lock()
	defer q.replayMu.Unlock()

	result := ReplayResult{Failed: make(map[int64]error)}
	for batch := q.Pending(); len(batch) > 0; {
		var again []core.OfflineNote
		for _, note := range batch {
			if ctx.Err() != nil {
				return result
			}
			if err := fn(ctx, note); err != nil {
				q.logger.Error("failed to sync offline note", "offline_id", note.ID, "error", err)
				result.Failed[note.ID] = err
				continue
			}
			result.Synced = append(result.Synced, note.ID)
			left, kept, err := q.settle(note)
			if err != nil {
				q.logger.Error("failed to drop synced offline note", "offline_id", note.ID, "error", err)
				continue
			}
			if kept {
				again = append(again, left)
			}
		}
		batch = again
	}
	return result
}

// settle drops a synced entry that is still the one fn saw. A changed entry
// is kept and returned when it now targets a service id.
func (q *Queue) settle(o core.OfflineNote) (core.OfflineNote, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := slices.IndexFunc(q.items, func(n core.OfflineNote) bool { return n.ID == o.ID })
	if i < 0 {
		return core.OfflineNote{}, false, nil
	}
	cur := q.items[i]
	if cur.TargetID != o.TargetID || !cur.UpdatedAt.Equal(o.UpdatedAt) {
		return cur, cur.TargetID != 0, nil
	}
	next := slices.Delete(slices.Clone(q.items), i, i+1)
	if err := q.store.Save(next); err != nil {
		return core.OfflineNote{}, false, fmt.Errorf("failed to persist offline queue: %w", err)
	}
	q.items = next
	return core.OfflineNote{}, false, nil
}

// QueueState exposes internal state for observability.
type QueueState struct {
	Depth   int `json:"depth"`
	Pending int `json:"pending"`
}

// State implements introspection.Introspectable.
func (q *Queue) State() any {
	return QueueState{
		Depth:   q.Len(),
		Pending: len(q.Pending()),
	}
}

// ComponentType implements introspection.Component.
func (q *Queue) ComponentType() string {
	return "offline-queue"
}

var _ introspection.Introspectable = (*Queue)(nil)
var _ introspection.Component = (*Queue)(nil)
