// Package memory provides in-process implementations of the engine ports.
// They back the `--cache memory` mode and the test suites.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/notesync/pkg/core"
)

// Operation names accepted by Service.Fail.
const (
	OpList        = "list"
	OpDetail      = "detail"
	OpUpsert      = "upsert"
	OpDeleteMany  = "deleteMany"
	OpUpdateMany  = "updateMany"
	OpTags        = "tags"
	OpDailyReview = "dailyReview"
	OpConfig      = "config"
)

// DailyReviewSize caps the daily review list.
const DailyReviewSize = 5

// DetailHook rewrites the note returned by the n-th Detail call for an id.
// It stands in for asynchronous server-side enrichment.
type DetailHook func(call int, n core.Note) core.Note

// Service is an in-memory remote note service.
type Service struct {
	mu       sync.Mutex
	notes    map[int64]core.Note
	nextID   int64
	config   core.AccountConfig
	extra    []core.Tag
	now      func() time.Time
	failures map[string]error
	offline  bool
	hidden   map[int64]bool
	hooks    map[int64]DetailHook
	details  map[int64]int
	calls    map[string]int
}

// NewService creates an empty service. Ids start at 1.
func NewService() *Service {
	return &Service{
		notes:    make(map[int64]core.Note),
		nextID:   1,
		now:      time.Now,
		failures: make(map[string]error),
		hidden:   make(map[int64]bool),
		hooks:    make(map[int64]DetailHook),
		details:  make(map[int64]int),
		calls:    make(map[string]int),
	}
}

// SetClock replaces the clock used for timestamps.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Put stores notes as-is. Ids are kept; later creates get ids above them.
func (s *Service) Put(notes ...core.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notes {
		s.notes[n.ID] = n.Clone()
		if n.ID >= s.nextID {
			s.nextID = n.ID + 1
		}
	}
}

// Get returns the stored state of id.
func (s *Service) Get(id int64) (core.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	return n.Clone(), ok
}

// Len returns the number of stored notes.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

// SetConfig sets the account configuration.
func (s *Service) SetConfig(cfg core.AccountConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// SetTags adds tags that exist independently of any note.
func (s *Service) SetTags(tags ...core.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra = slices.Clone(tags)
}

// Fail makes every call to op return err until Fail(op, nil).
func (s *Service) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// SetReachable toggles a simulated network partition. While unreachable
// every call fails with core.ErrUnavailable.
func (s *Service) SetReachable(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = !ok
}

// Hide keeps id out of List responses, as a lagging read replica would.
func (s *Service) Hide(id int64, hidden bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hidden {
		s.hidden[id] = true
	} else {
		delete(s.hidden, id)
	}
}

// OnDetail installs an enrichment hook for id.
func (s *Service) OnDetail(id int64, hook DetailHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[id] = hook
	s.details[id] = 0
}

// Calls returns how many times op was invoked.
func (s *Service) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter records the call and returns the injected failure, if any.
// Callers hold mu.
func (s *Service) enter(ctx context.Context, op string) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.offline {
		return fmt.Errorf("%s: %w", op, core.ErrUnavailable)
	}
	return s.failures[op]
}

// sorted returns notes pinned first, then newest update first.
func (s *Service) sorted(keep func(core.Note) bool) []core.Note {
	out := make([]core.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if keep(n) {
			out = append(out, n.Clone())
		}
	}
	slices.SortFunc(out, func(a, b core.Note) int {
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
	})
	return out
}

// List implements core.Service.
func (s *Service) List(ctx context.Context, filter core.Filter, page, size int) ([]core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpList); err != nil {
		return nil, err
	}
	all := s.sorted(func(n core.Note) bool {
		return !s.hidden[n.ID] && filter.Matches(n)
	})
	return Paginate(all, page, size), nil
}

// Detail implements core.Service.
func (s *Service) Detail(ctx context.Context, id int64) (core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpDetail); err != nil {
		return core.Note{}, err
	}
	n, ok := s.notes[id]
	if !ok {
		return core.Note{}, fmt.Errorf("note %d: %w", id, core.ErrNotFound)
	}
	if hook, ok := s.hooks[id]; ok {
		s.details[id]++
		n = hook(s.details[id], n.Clone())
		s.notes[id] = n
	}
	return n.Clone(), nil
}

// Upsert implements core.Service.
func (s *Service) Upsert(ctx context.Context, in core.NoteInput) (core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpUpsert); err != nil {
		return core.Note{}, err
	}

	now := s.now()
	if in.ID == 0 {
		n := in.Apply(core.Note{})
		n.ID = s.nextID
		s.nextID++
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		n.UpdatedAt = now
		s.notes[n.ID] = n
		return n.Clone(), nil
	}

	cur, ok := s.notes[in.ID]
	if !ok {
		return core.Note{}, fmt.Errorf("note %d: %w", in.ID, core.ErrNotFound)
	}
	n := in.Apply(cur)
	n.UpdatedAt = now
	s.notes[n.ID] = n
	return n.Clone(), nil
}

// DeleteMany implements core.Service. Unknown ids are ignored.
func (s *Service) DeleteMany(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpDeleteMany); err != nil {
		return err
	}
	for _, id := range ids {
		delete(s.notes, id)
	}
	return nil
}

// UpdateMany implements core.Service. Unknown ids are ignored.
func (s *Service) UpdateMany(ctx context.Context, ids []int64, patch core.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpUpdateMany); err != nil {
		return err
	}
	now := s.now()
	for _, id := range ids {
		n, ok := s.notes[id]
		if !ok {
			continue
		}
		n = patch.Apply(n)
		n.UpdatedAt = now
		s.notes[id] = n
	}
	return nil
}

// Tags implements core.Service.
func (s *Service) Tags(ctx context.Context) ([]core.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpTags); err != nil {
		return nil, err
	}
	byID := make(map[int64]core.Tag)
	for _, t := range s.extra {
		byID[t.ID] = t
	}
	for _, n := range s.notes {
		for _, t := range n.Tags {
			byID[t.ID] = t
		}
	}
	out := make([]core.Tag, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b core.Tag) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// DailyReview implements core.Service: the least recently touched active
// notes.
func (s *Service) DailyReview(ctx context.Context) ([]core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpDailyReview); err != nil {
		return nil, err
	}
	active := s.sorted(func(n core.Note) bool { return !n.IsArchived && !n.IsRecycle })
	slices.Reverse(active)
	if len(active) > DailyReviewSize {
		active = active[:DailyReviewSize]
	}
	return active, nil
}

// Config implements core.Service.
func (s *Service) Config(ctx context.Context) (core.AccountConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, OpConfig); err != nil {
		return core.AccountConfig{}, err
	}
	return s.config, nil
}

// Paginate returns the 1-based page of notes.
func Paginate(notes []core.Note, page, size int) []core.Note {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		return notes
	}
	start := (page - 1) * size
	if start >= len(notes) {
		return []core.Note{}
	}
	end := min(start+size, len(notes))
	return notes[start:end]
}

var _ core.Service = (*Service)(nil)
