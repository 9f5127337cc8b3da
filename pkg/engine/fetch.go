package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/notesync/pkg/core"
)

// fetch is the projection fetcher. Online it reads the remote list, writes
// page 1 through to the cache and replays the offline queue; offline it
// reads the cache. Pending offline notes that match the filter are shown
// first either way.
func (e *Engine) fetch(ctx context.Context, view core.View, filter core.Filter, page, size int) ([]core.Note, error) {
	if view == core.ViewDaily {
		return e.fetchDaily(ctx, filter, size)
	}
	if !e.Online() {
		return e.readCache(ctx, filter, page, size), nil
	}

	notes, err := e.svc.List(ctx, filter, page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	if page > 1 {
		return notes, nil
	}

	e.cachePut(notes...)
	if e.queue.Len() > 0 {
		e.replay(ctx)
	}
	return append(e.offlineMatching(filter), notes...), nil
}

func (e *Engine) fetchDaily(ctx context.Context, filter core.Filter, size int) ([]core.Note, error) {
	if !e.Online() {
		return e.readCache(ctx, filter, 1, size), nil
	}
	notes, err := e.svc.DailyReview(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily review: %w", err)
	}
	return notes, nil
}

// readCache serves a page from the local cache. Cache failures read as an
// empty cache.
func (e *Engine) readCache(ctx context.Context, filter core.Filter, page, size int) []core.Note {
	notes := append(e.offlineMatching(filter), e.cached(ctx, filter)...)
	return paginate(notes, page, size)
}

// cached returns the cached notes matching filter in list order.
func (e *Engine) cached(ctx context.Context, filter core.Filter) []core.Note {
	if e.cache == nil {
		return nil
	}
	all, err := e.cache.GetAll(ctx)
	if err != nil {
		e.logger.Warn("failed to read local cache", "error", err)
		return nil
	}
	out := make([]core.Note, 0, len(all))
	for _, n := range all {
		if filter.Matches(n) {
			out = append(out, n)
		}
	}
	slices.SortStableFunc(out, newestFirst)
	return out
}

// offlineMatching returns pending offline notes matching filter, newest
// first.
func (e *Engine) offlineMatching(filter core.Filter) []core.Note {
	pending := e.queue.Pending()
	out := make([]core.Note, 0, len(pending))
	for i := len(pending) - 1; i >= 0; i-- {
		n := pending[i].Note()
		if filter.Matches(n) {
			out = append(out, n)
		}
	}
	return out
}

// ColdStart seeds every empty paged view with the first page of matching
// cached notes (plus pending offline notes) so the lists render before
// the first remote response.
func (e *Engine) ColdStart(ctx context.Context) int {
	if e.cache == nil && e.queue.Len() == 0 {
		return 0
	}
	all := e.cached(ctx, core.Filter{})
	pageSize := e.store.PageSize()

	seeded := 0
	for _, v := range core.PagedViews {
		filter := e.store.Filter(v)
		notes := e.offlineMatching(filter)
		for _, n := range all {
			if filter.Matches(n) {
				notes = append(notes, n)
			}
		}
		if len(notes) == 0 {
			continue
		}
		if e.store.Seed(v, paginate(notes, 1, pageSize)) {
			seeded++
		}
	}
	e.logger.Debug("cold start", "cached", len(all), "views_seeded", seeded)
	return seeded
}

func paginate(notes []core.Note, page, size int) []core.Note {
	page = max(page, 1)
	if size <= 0 {
		return notes
	}
	start := (page - 1) * size
	if start >= len(notes) {
		return []core.Note{}
	}
	return notes[start:min(start+size, len(notes))]
}

// newestFirst orders notes pinned first, then by update time.
func newestFirst(a, b core.Note) int {
	if a.IsTop != b.IsTop {
		if a.IsTop {
			return -1
		}
		return 1
	}
	if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}
