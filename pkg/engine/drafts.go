package engine

import (
	"slices"

	"github.com/aretw0/notesync/pkg/core"
)

// OpenDraft records that the user started editing id. Any poller session
// for the note stops and no enrichment is merged while the draft is open.
func (e *Engine) OpenDraft(id int64) {
	e.draftMu.Lock()
	e.drafts[id] = struct{}{}
	e.draftMu.Unlock()
	e.poller.Stop(id)
}

// CloseDraft ends the edit for id.
func (e *Engine) CloseDraft(id int64) {
	e.draftMu.Lock()
	defer e.draftMu.Unlock()
	delete(e.drafts, id)
}

// HasDraft implements core.DraftChecker over engine drafts and the
// external checker.
func (e *Engine) HasDraft(id int64) bool {
	e.draftMu.RLock()
	defer e.draftMu.RUnlock()
	return e.hasDraftLocked(id)
}

func (e *Engine) hasDraftLocked(id int64) bool {
	if _, ok := e.drafts[id]; ok {
		return true
	}
	return e.external != nil && e.external.HasDraft(id)
}

func (e *Engine) draftIDs() []int64 {
	e.draftMu.RLock()
	defer e.draftMu.RUnlock()
	ids := make([]int64, 0, len(e.drafts))
	for id := range e.drafts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// mergeEnrichment applies a poller result unless an edit is open. The
// draft check and the merge happen under the same lock as OpenDraft.
func (e *Engine) mergeEnrichment(n core.Note) bool {
	e.draftMu.RLock()
	defer e.draftMu.RUnlock()
	if e.hasDraftLocked(n.ID) {
		return false
	}
	e.apply(n)
	e.cachePut(n)
	return true
}

var _ core.DraftChecker = (*Engine)(nil)
