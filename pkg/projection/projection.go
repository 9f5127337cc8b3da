// Package projection holds the named, independently paginated views over the
// note collection.
//
// Views do not own notes: the same id may appear in several views at once,
// and every local merge fans out to all of them. A view never holds the same
// id twice.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/notesync/pkg/core"
)

// DefaultPageSize matches the list endpoint's default page size.
const DefaultPageSize = 20

// Strategy selects how a view refreshes its first page.
type Strategy int

const (
	// RefreshSilent keeps the current list on screen and swaps it when the
	// response arrives.
	RefreshSilent Strategy = iota
	// RefreshReset clears the list first, so the view shows a loading state.
	RefreshReset
)

// String returns the config name of the strategy.
func (s Strategy) String() string {
	if s == RefreshReset {
		return "reset"
	}
	return "silent"
}

// ParseStrategy maps "reset" to RefreshReset and anything else to RefreshSilent.
func ParseStrategy(s string) Strategy {
	if s == "reset" {
		return RefreshReset
	}
	return RefreshSilent
}

// Fetcher loads one page of a view. It is always called without any store
// lock held.
type Fetcher func(ctx context.Context, view core.View, filter core.Filter, page, size int) ([]core.Note, error)

// Admitter is the subset of the admission ledger the store consults.
type Admitter interface {
	IsAdmitted(id int64) bool
	Release(id int64)
}

// Config configures a Store.
type Config struct {
	PageSize   int
	Fetch      Fetcher
	Ledger     Admitter
	Strategies map[core.View]Strategy
	Logger     *slog.Logger
}

type projection struct {
	view     core.View
	filter   core.Filter
	strategy Strategy
	notes    []core.Note
	page     int
	hasMore  bool
	loading  bool
	seeded   bool
	gen      uint64

	// held carries admitted notes across a reset until the next page 1.
	held []core.Note
}

// Store is the set of projections. All methods are safe for concurrent use;
// no lock is held while the fetcher runs.
type Store struct {
	mu       sync.RWMutex
	views    map[core.View]*projection
	pageSize int
	fetch    Fetcher
	ledger   Admitter
	logger   *slog.Logger

	selected *core.Note
	multi    []int64

	subs    map[int]chan core.Event
	nextSub int
}

// New creates a store with one projection per paged view plus the daily view.
func New(cfg Config) *Store {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Store{
		views:    make(map[core.View]*projection),
		pageSize: cfg.PageSize,
		fetch:    cfg.Fetch,
		ledger:   cfg.Ledger,
		logger:   cfg.Logger,
		subs:     make(map[int]chan core.Event),
	}
	for _, v := range append(slices.Clone(core.PagedViews), core.ViewDaily) {
		s.views[v] = &projection{
			view:     v,
			filter:   v.BaseFilter(),
			strategy: cfg.Strategies[v],
		}
	}
	return s
}

// PageSize returns the configured page size.
func (s *Store) PageSize() int {
	return s.pageSize
}

func (s *Store) get(view core.View) (*projection, error) {
	p, ok := s.views[view]
	if !ok {
		return nil, fmt.Errorf("unknown view %q", view)
	}
	return p, nil
}

// SetFilter sets the user part of a view's filter on top of its base filter.
// Any in-flight page > 1 load for the view is discarded on arrival.
func (s *Store) SetFilter(view core.View, user core.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.get(view)
	if err != nil {
		return err
	}
	p.filter = view.BaseFilter().Merge(user)
	p.gen++
	return nil
}

// Filter returns the effective filter of a view.
func (s *Store) Filter(view core.View) core.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.views[view]; ok {
		return p.filter
	}
	return core.Filter{}
}

// SetStrategy changes the refresh strategy of a view.
func (s *Store) SetStrategy(view core.View, strategy Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.views[view]; ok {
		p.strategy = strategy
	}
}

// Strategy returns the refresh strategy of a view.
func (s *Store) Strategy(view core.View) Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.views[view]; ok {
		return p.strategy
	}
	return RefreshSilent
}

// Load fetches one page of a view. Page 1 (or any page of a view still
// showing seeded cache data) replaces the list; later pages append.
//
// Admitted ids that the view held before (including those set aside by a
// reset) and that a page-1 response omits are kept at the front; admitted ids that the response contains are
// released from the ledger. On error the previous state is kept.
func (s *Store) Load(ctx context.Context, view core.View, page int) error {
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	p, err := s.get(view)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if p.seeded {
		page = 1
	}
	filter := p.filter
	gen := p.gen
	p.loading = true
	s.mu.Unlock()

	notes, err := s.fetch(ctx, view, filter, page, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	p.loading = false
	if err != nil {
		return fmt.Errorf("failed to load %s page %d: %w", view, page, err)
	}
	if page > 1 && gen != p.gen {
		s.logger.Debug("discarding stale page", "view", view, "page", page)
		return nil
	}

	fresh := dedupe(notes)
	if page == 1 {
		p.notes = s.withAdmitted(append(p.held, p.notes...), fresh)
		p.held = nil
	} else {
		p.notes = appendMissing(p.notes, fresh)
	}
	p.page = page
	p.hasMore = len(notes) >= s.pageSize
	p.seeded = false
	s.emitLocked(p)
	return nil
}

// withAdmitted builds the replacement list for a page-1 response.
func (s *Store) withAdmitted(prev, fresh []core.Note) []core.Note {
	present := make(map[int64]struct{}, len(fresh))
	for _, n := range fresh {
		present[n.ID] = struct{}{}
		if s.ledger != nil && s.ledger.IsAdmitted(n.ID) {
			s.ledger.Release(n.ID)
		}
	}
	if s.ledger == nil {
		return fresh
	}

	var kept []core.Note
	for _, n := range prev {
		if n.ID == 0 {
			continue
		}
		if _, ok := present[n.ID]; ok {
			continue
		}
		if s.ledger.IsAdmitted(n.ID) {
			kept = append(kept, n)
			present[n.ID] = struct{}{}
		}
	}
	if len(kept) == 0 {
		return fresh
	}
	return append(kept, fresh...)
}

// NextPage loads the page after the last loaded one. It is a no-op when the
// last response was short.
func (s *Store) NextPage(ctx context.Context, view core.View) error {
	s.mu.RLock()
	p, err := s.get(view)
	if err != nil {
		s.mu.RUnlock()
		return err
	}
	next := p.page + 1
	done := p.page > 0 && !p.hasMore && !p.seeded
	s.mu.RUnlock()

	if done {
		return nil
	}
	return s.Load(ctx, view, next)
}

// Reset clears a view and its paging state. Admitted notes are set aside
// and come back with the next page-1 load.
func (s *Store) Reset(view core.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.get(view)
	if err != nil {
		return err
	}
	if s.ledger != nil {
		for _, n := range p.notes {
			if n.ID != 0 && s.ledger.IsAdmitted(n.ID) {
				p.held = append(p.held, n)
			}
		}
	}
	p.notes = nil
	p.page = 0
	p.hasMore = false
	p.seeded = false
	p.gen++
	s.emitLocked(p)
	return nil
}

// Refresh reloads the first page of a view using its strategy.
func (s *Store) Refresh(ctx context.Context, view core.View) error {
	if s.Strategy(view) == RefreshReset {
		if err := s.Reset(view); err != nil {
			return err
		}
	}
	return s.Load(ctx, view, 1)
}

// Seed fills an empty view with cached notes so it can render before the
// first remote response. It returns false if the view already had content.
func (s *Store) Seed(view core.View, notes []core.Note) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.get(view)
	if err != nil || len(p.notes) > 0 {
		return false
	}
	p.notes = dedupe(notes)
	p.seeded = true
	s.emitLocked(p)
	return true
}

// Insert puts a newly confirmed note at the front of every paged view whose
// filter matches it. Views already holding the id merge instead.
func (s *Store) Insert(note core.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(note)
}

func (s *Store) insertLocked(note core.Note) {
	for _, v := range core.PagedViews {
		p := s.views[v]
		if i := indexOf(p.notes, note.ID); i >= 0 {
			p.notes[i] = core.MergeNote(p.notes[i], note)
			s.emitLocked(p)
			continue
		}
		if p.filter.Matches(note) {
			p.notes = slices.Insert(p.notes, 0, note.Clone())
			s.emitLocked(p)
		}
	}
}

// UpsertLocal merges note into every view holding its id and into the
// current selection. Views whose filter no longer matches the merged note
// drop it. It reports whether any view held the id.
func (s *Store) UpsertLocal(note core.Note) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(note)
}

func (s *Store) upsertLocked(note core.Note) bool {
	found := false
	for _, p := range s.views {
		i := indexOf(p.notes, note.ID)
		if i < 0 {
			continue
		}
		found = true
		merged := core.MergeNote(p.notes[i], note)
		if p.view != core.ViewDaily && !p.filter.Matches(merged) {
			p.notes = slices.Delete(p.notes, i, i+1)
		} else {
			p.notes[i] = merged
		}
		s.emitLocked(p)
	}
	if s.selected != nil && s.selected.ID == note.ID {
		merged := core.MergeNote(*s.selected, note)
		s.selected = &merged
		s.emitSelectionLocked()
	}
	return found
}

// Replace swaps oldID for note in a single critical section: the old entry
// disappears from every view and the new one is inserted where it matches.
// It is used to promote an offline note to its authoritative id.
func (s *Store) Replace(oldID int64, note core.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked([]int64{oldID})
	s.insertLocked(note)
}

// RemoveLocal drops ids from every view (daily included), the selection and
// the multi-select set. Unknown ids are ignored.
func (s *Store) RemoveLocal(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(ids)
}

func (s *Store) removeLocked(ids []int64) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	for _, p := range s.views {
		before := len(p.notes)
		gone := func(n core.Note) bool {
			_, ok := drop[n.ID]
			return ok
		}
		p.notes = slices.DeleteFunc(p.notes, gone)
		p.held = slices.DeleteFunc(p.held, gone)
		if len(p.notes) != before {
			s.emitLocked(p)
		}
	}
	if s.selected != nil {
		if _, ok := drop[s.selected.ID]; ok {
			s.selected = nil
			s.emitSelectionLocked()
		}
	}
	s.multi = slices.DeleteFunc(s.multi, func(id int64) bool {
		_, ok := drop[id]
		return ok
	})
}

// Find returns the latest known state of id from any view.
func (s *Store) Find(id int64) (core.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected != nil && s.selected.ID == id {
		return s.selected.Clone(), true
	}
	for _, v := range append(slices.Clone(core.PagedViews), core.ViewDaily) {
		if i := indexOf(s.views[v].notes, id); i >= 0 {
			return s.views[v].notes[i].Clone(), true
		}
	}
	return core.Note{}, false
}

// Snapshot returns a copy of a view's notes.
func (s *Store) Snapshot(view core.View) []core.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.views[view]
	if !ok {
		return nil
	}
	return cloneAll(p.notes)
}

// Contains reports whether view holds id.
func (s *Store) Contains(view core.View, id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.views[view]
	return ok && indexOf(p.notes, id) >= 0
}

// PageState returns the last loaded page, whether more pages exist, and
// whether a load is in flight.
func (s *Store) PageState(view core.View) (page int, hasMore, loading bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.views[view]
	if !ok {
		return 0, false, false
	}
	return p.page, p.hasMore, p.loading
}

// Counts returns the number of notes per view.
func (s *Store) Counts() map[core.View]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[core.View]int, len(s.views))
	for v, p := range s.views {
		out[v] = len(p.notes)
	}
	return out
}

func indexOf(notes []core.Note, id int64) int {
	return slices.IndexFunc(notes, func(n core.Note) bool { return n.ID == id })
}

// dedupe keeps the first occurrence of each id.
func dedupe(notes []core.Note) []core.Note {
	seen := make(map[int64]struct{}, len(notes))
	out := make([]core.Note, 0, len(notes))
	for _, n := range notes {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n.Clone())
	}
	return out
}

func appendMissing(list, more []core.Note) []core.Note {
	for _, n := range more {
		if indexOf(list, n.ID) < 0 {
			list = append(list, n)
		}
	}
	return list
}

func cloneAll(notes []core.Note) []core.Note {
	out := make([]core.Note, len(notes))
	for i, n := range notes {
		out[i] = n.Clone()
	}
	return out
}
