package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/refresh"
)

// CreateNote creates a note. Online the confirmed note is admitted to the
// ledger and inserted into every matching view. Offline, or when the
// service is unreachable, the note is queued and shown with its offline id
// until replay.
func (e *Engine) CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error) {
	if in.ID != 0 {
		return e.UpdateNote(ctx, in)
	}
	if !e.Online() {
		return e.createOffline(in)
	}

	saved, err := e.svc.Upsert(ctx, in)
	if err != nil {
		if errors.Is(err, core.ErrUnavailable) {
			e.logger.Warn("service unreachable, queueing note", "error", err)
			return e.createOffline(in)
		}
		e.notify(core.NotifyError, 0, "Failed to create note")
		return core.Note{}, fmt.Errorf("failed to create note: %w", err)
	}

	e.admit(saved)
	e.cachePut(saved)
	e.notify(core.NotifySuccess, saved.ID, "Created successfully")
	e.refresh.Trigger(refresh.ReasonCreate)
	e.maybePoll(ctx, saved)
	return saved, nil
}

func (e *Engine) createOffline(in core.NoteInput) (core.Note, error) {
	o, err := e.queue.Enqueue(in)
	if err != nil {
		e.notify(core.NotifyError, 0, "Failed to save note offline")
		return core.Note{}, err
	}
	e.metrics.SetQueueDepth(e.queue.Len())
	n := o.Note()
	e.store.Insert(n)
	e.notify(core.NotifyInfo, n.ID, "Saved offline, will sync when online")
	return n, nil
}

// UpdateNote edits an existing note. The change is shown immediately; on
// a conflict or a missing note the local state is rolled back to what the
// service reports. Edits of a note still waiting in the offline queue are
// folded into its queued create.
func (e *Engine) UpdateNote(ctx context.Context, in core.NoteInput) (core.Note, error) {
	if in.ID == 0 {
		return core.Note{}, fmt.Errorf("%w: update needs an id", core.ErrInvalidNote)
	}
	in.ID = e.queue.Resolve(in.ID)
	if n, err := e.amendOffline(in); !errors.Is(err, core.ErrNotFound) {
		return n, err
	}

	prev, had := e.store.Find(in.ID)
	optimistic := in.Apply(prev)
	if had {
		e.apply(optimistic)
	}

	if !e.Online() {
		return e.updateOffline(in, optimistic, had)
	}

	saved, err := e.svc.Upsert(ctx, in)
	if err != nil {
		if errors.Is(err, core.ErrUnavailable) {
			e.logger.Warn("service unreachable, queueing edit", "note_id", in.ID, "error", err)
			return e.updateOffline(in, optimistic, had)
		}
		e.rollback(ctx, in.ID, prev, had)
		e.notify(core.NotifyError, in.ID, "Failed to update note")
		return core.Note{}, fmt.Errorf("failed to update note %d: %w", in.ID, err)
	}

	e.apply(saved)
	e.cachePut(saved)
	e.notify(core.NotifySuccess, saved.ID, "Updated successfully")
	e.refresh.Trigger(refresh.ReasonUpdate)
	e.maybePoll(ctx, saved)
	return saved, nil
}

// updateOffline queues an edit. When the note is known locally the whole
// edited state is queued, so replay does not reset fields the edit left
// untouched.
func (e *Engine) updateOffline(in core.NoteInput, optimistic core.Note, had bool) (core.Note, error) {
	if had {
		in = inputOf(optimistic)
	}
	if _, err := e.queue.EnqueueUpdate(in); err != nil {
		e.notify(core.NotifyError, in.ID, "Failed to save edit offline")
		return core.Note{}, err
	}
	e.metrics.SetQueueDepth(e.queue.Len())
	e.notify(core.NotifyInfo, in.ID, "Saved offline, will sync when online")
	return optimistic, nil
}

// amendOffline rewrites the queued create behind an offline id. It returns
// core.ErrNotFound when in.ID is not queued.
func (e *Engine) amendOffline(in core.NoteInput) (core.Note, error) {
	o, err := e.queue.Amend(in.ID, in)
	if errors.Is(err, core.ErrNotFound) {
		return core.Note{}, err
	}
	if err != nil {
		e.notify(core.NotifyError, in.ID, "Failed to save edit offline")
		return core.Note{}, err
	}
	n := o.Note()
	e.apply(n)
	e.notify(core.NotifyInfo, n.ID, "Saved offline, will sync when online")
	if e.Online() {
		e.syncInBackground(refresh.ReasonUpdate)
	}
	return n, nil
}

func inputOf(n core.Note) core.NoteInput {
	return core.NoteInput{
		ID:          n.ID,
		Content:     &n.Content,
		Type:        &n.Type,
		IsArchived:  &n.IsArchived,
		IsRecycle:   &n.IsRecycle,
		IsTop:       &n.IsTop,
		IsShare:     &n.IsShare,
		Attachments: n.Attachments,
		References:  n.References,
		Metadata:    n.Metadata,
	}
}

// rollback replaces an optimistic edit with the service's state. A note
// the service no longer has is removed locally; if the service cannot be
// asked, the previous local state comes back.
func (e *Engine) rollback(ctx context.Context, id int64, prev core.Note, had bool) {
	fresh, err := e.svc.Detail(ctx, id)
	switch {
	case err == nil:
		e.apply(fresh)
		e.cachePut(fresh)
	case errors.Is(err, core.ErrNotFound):
		e.forget(id)
	default:
		e.logger.Warn("rollback could not reach service", "note_id", id, "error", err)
		if had {
			e.apply(prev)
		}
	}
}

// DeleteNotes permanently deletes notes. Deleting ids that are already
// gone is not an error. Deletes are not queued offline; notes that only
// exist in the offline queue are dropped from it instead.
func (e *Engine) DeleteNotes(ctx context.Context, ids ...int64) error {
	ids, err := e.dropQueued(ids)
	if err != nil {
		e.notify(core.NotifyError, 0, "Failed to delete notes")
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if !e.Online() {
		e.notify(core.NotifyError, 0, "Cannot delete while offline")
		return core.ErrOffline
	}
	if err := e.svc.DeleteMany(ctx, ids); err != nil && !errors.Is(err, core.ErrNotFound) {
		e.notify(core.NotifyError, 0, "Failed to delete notes")
		return fmt.Errorf("failed to delete notes: %w", err)
	}

	for _, id := range ids {
		e.forget(id)
	}
	e.notify(core.NotifySuccess, 0, "Deleted successfully")
	e.refresh.Trigger(refresh.ReasonDelete)
	return nil
}

// dropQueued removes queued creates among ids and returns the ids that
// need the service.
func (e *Engine) dropQueued(ids []int64) ([]int64, error) {
	var remote []int64
	dropped := false
	for _, id := range ids {
		id = e.queue.Resolve(id)
		if !e.queue.Has(id) {
			remote = append(remote, id)
			continue
		}
		if err := e.queue.Remove(id); err != nil {
			return nil, fmt.Errorf("failed to drop offline note %d: %w", id, err)
		}
		e.forget(id)
		dropped = true
		// A replay may have promoted it in the meantime.
		if server := e.queue.Resolve(id); server != id {
			remote = append(remote, server)
		}
	}
	if dropped {
		e.metrics.SetQueueDepth(e.queue.Len())
	}
	return remote, nil
}

// ArchiveNotes moves notes to the archive.
func (e *Engine) ArchiveNotes(ctx context.Context, ids ...int64) error {
	return e.patch(ctx, ids, core.Patch{IsArchived: core.Ptr(true)})
}

// UnarchiveNotes moves notes out of the archive.
func (e *Engine) UnarchiveNotes(ctx context.Context, ids ...int64) error {
	return e.patch(ctx, ids, core.Patch{IsArchived: core.Ptr(false)})
}

// TrashNotes moves notes to the recycle bin.
func (e *Engine) TrashNotes(ctx context.Context, ids ...int64) error {
	for _, id := range ids {
		e.poller.Stop(id)
	}
	return e.patch(ctx, ids, core.Patch{IsRecycle: core.Ptr(true)})
}

// RestoreNotes takes notes out of the recycle bin.
func (e *Engine) RestoreNotes(ctx context.Context, ids ...int64) error {
	return e.patch(ctx, ids, core.Patch{IsRecycle: core.Ptr(false)})
}

// PinNotes sets or clears the pinned flag.
func (e *Engine) PinNotes(ctx context.Context, top bool, ids ...int64) error {
	return e.patch(ctx, ids, core.Patch{IsTop: core.Ptr(top)})
}

// patch applies the same change to several notes. Like deletes, batch
// updates are not queued offline; notes that only exist in the offline
// queue take the change in their queued create.
func (e *Engine) patch(ctx context.Context, ids []int64, p core.Patch) error {
	var remote []int64
	for _, id := range ids {
		id = e.queue.Resolve(id)
		_, err := e.amendOffline(patchInput(id, p))
		switch {
		case errors.Is(err, core.ErrNotFound):
			remote = append(remote, id)
		case err != nil:
			return err
		}
	}
	ids = remote
	if len(ids) == 0 {
		return nil
	}
	if !e.Online() {
		e.notify(core.NotifyError, 0, "Cannot update notes while offline")
		return core.ErrOffline
	}
	if err := e.svc.UpdateMany(ctx, ids, p); err != nil {
		e.notify(core.NotifyError, 0, "Operation failed")
		return fmt.Errorf("failed to update notes: %w", err)
	}

	var touched []core.Note
	for _, id := range ids {
		n, ok := e.store.Find(id)
		if !ok {
			continue
		}
		n = p.Apply(n)
		e.apply(n)
		touched = append(touched, n)
	}
	e.cachePut(touched...)
	e.notify(core.NotifySuccess, 0, "Operation succeeded")
	e.refresh.Trigger(refresh.ReasonUpdate)
	return nil
}

func patchInput(id int64, p core.Patch) core.NoteInput {
	return core.NoteInput{
		ID:         id,
		Type:       p.Type,
		IsArchived: p.IsArchived,
		IsRecycle:  p.IsRecycle,
		IsTop:      p.IsTop,
	}
}

// apply merges an authoritative note into the views holding it and
// inserts it into views whose filter now matches.
func (e *Engine) apply(n core.Note) {
	e.store.UpsertLocal(n)
	e.store.Insert(n)
}

// admit protects a freshly created note from being dropped by a list
// response that does not include it yet.
func (e *Engine) admit(n core.Note) {
	e.ledger.Admit(n.ID)
	e.metrics.ObserveAdmission()
	e.store.Insert(n)
}

// forget removes every local trace of a note.
func (e *Engine) forget(id int64) {
	e.poller.Stop(id)
	e.store.RemoveLocal(id)
	e.ledger.Release(id)
	e.cacheDelete(id)
}

// maybePoll starts an enrichment session when the account has server-side
// post-processing enabled.
func (e *Engine) maybePoll(ctx context.Context, n core.Note) {
	if n.IsRecycle || !e.accountConfig(ctx).AIPostProcessing {
		return
	}
	e.poller.Start(e.ctx, n)
}
