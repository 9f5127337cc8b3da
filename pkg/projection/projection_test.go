package projection_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/ledger"
	"github.com/aretw0/notesync/pkg/projection"
)

// pages serves canned list responses per view and page.
type pages struct {
	mu    sync.Mutex
	data  map[string][]core.Note
	err   error
	calls int
}

func (p *pages) set(view core.View, page int, notes []core.Note) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		p.data = make(map[string][]core.Note)
	}
	p.data[fmt.Sprintf("%s/%d", view, page)] = notes
}

func (p *pages) fetch(_ context.Context, view core.View, _ core.Filter, page, _ int) ([]core.Note, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.data[fmt.Sprintf("%s/%d", view, page)], nil
}

func generic(ids ...int64) []core.Note {
	out := make([]core.Note, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.Note{ID: id, Content: fmt.Sprintf("note %d", id)})
	}
	return out
}

func ids(notes []core.Note) []int64 {
	out := make([]int64, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.ID)
	}
	return out
}

func newStore(t *testing.T, src *pages, l *ledger.Ledger, size int) *projection.Store {
	t.Helper()
	cfg := projection.Config{PageSize: size, Fetch: src.fetch}
	if l != nil {
		cfg.Ledger = l
	}
	return projection.New(cfg)
}

func TestStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("Page One Replaces And Later Pages Append", func(t *testing.T) {
		src := &pages{}
		src.set(core.ViewGeneric, 1, generic(1, 2))
		src.set(core.ViewGeneric, 2, generic(2, 3))
		s := newStore(t, src, nil, 2)

		require.NoError(t, s.Load(ctx, core.ViewGeneric, 1))
		require.NoError(t, s.NextPage(ctx, core.ViewGeneric))

		assert.Equal(t, []int64{1, 2, 3}, ids(s.Snapshot(core.ViewGeneric)), "duplicate id 2 must be skipped")
		page, hasMore, loading := s.PageState(core.ViewGeneric)
		assert.Equal(t, 2, page)
		assert.True(t, hasMore)
		assert.False(t, loading)
	})

	t.Run("Short Page Stops Paging", func(t *testing.T) {
		src := &pages{}
		src.set(core.ViewGeneric, 1, generic(1))
		s := newStore(t, src, nil, 20)

		require.NoError(t, s.Load(ctx, core.ViewGeneric, 1))
		require.NoError(t, s.NextPage(ctx, core.ViewGeneric))
		assert.Equal(t, 1, src.calls)
	})

	t.Run("Duplicate IDs In Response Are Collapsed", func(t *testing.T) {
		src := &pages{}
		src.set(core.ViewGeneric, 1, generic(5, 5, 6))
		s := newStore(t, src, nil, 20)

		require.NoError(t, s.Load(ctx, core.ViewGeneric, 1))
		assert.Equal(t, []int64{5, 6}, ids(s.Snapshot(core.ViewGeneric)))
	})

	t.Run("Error Keeps Previous State", func(t *testing.T) {
		src := &pages{}
		src.set(core.ViewGeneric, 1, generic(1, 2))
		s := newStore(t, src, nil, 20)
		require.NoError(t, s.Load(ctx, core.ViewGeneric, 1))

		src.err = errors.New("network down")
		err := s.Load(ctx, core.ViewGeneric, 1)
		require.Error(t, err)
		assert.ErrorContains(t, err, "network down")
		assert.Equal(t, []int64{1, 2}, ids(s.Snapshot(core.ViewGeneric)))
	})

	t.Run("Unknown View", func(t *testing.T) {
		s := newStore(t, &pages{}, nil, 20)
		assert.Error(t, s.Load(ctx, core.View("nope"), 1))
	})
}

// Scenario C: a refresh returning 20 notes without the locally created id 999
// keeps 999 at the front while it is admitted.
func TestStore_AdmittedNoteSurvivesRefresh(t *testing.T) {
	ctx := context.Background()
	src := &pages{}
	server := make([]int64, 0, 20)
	for i := int64(1); i <= 20; i++ {
		server = append(server, i)
	}
	src.set(core.ViewAll, 1, generic(server...))

	l := ledger.New(200 * time.Millisecond)
	s := newStore(t, src, l, 20)

	s.Insert(core.Note{ID: 999, Content: "fresh"})
	l.Admit(999)

	require.NoError(t, s.Load(ctx, core.ViewAll, 1))
	snap := s.Snapshot(core.ViewAll)
	require.Len(t, snap, 21)
	assert.Equal(t, int64(999), snap[0].ID)

	t.Run("Evicted After Expiry", func(t *testing.T) {
		require.Eventually(t, func() bool { return !l.IsAdmitted(999) }, time.Second, 10*time.Millisecond)
		require.NoError(t, s.Load(ctx, core.ViewAll, 1))
		assert.False(t, s.Contains(core.ViewAll, 999))
	})
}

func TestStore_AdmittedNoteSurvivesResetRefresh(t *testing.T) {
	ctx := context.Background()
	src := &pages{}
	src.set(core.ViewGeneric, 1, generic(5, 4, 3, 2, 1))

	l := ledger.New(time.Minute)
	s := projection.New(projection.Config{
		PageSize:   5,
		Fetch:      src.fetch,
		Ledger:     l,
		Strategies: map[core.View]projection.Strategy{core.ViewGeneric: projection.RefreshReset},
	})
	require.NoError(t, s.Load(ctx, core.ViewGeneric, 1))

	s.Insert(core.Note{ID: 6, Content: "fresh"})
	l.Admit(6)

	require.NoError(t, s.Refresh(ctx, core.ViewGeneric))
	assert.Equal(t, []int64{6, 5, 4, 3, 2, 1}, ids(s.Snapshot(core.ViewGeneric)))
	assert.True(t, l.IsAdmitted(6))

	t.Run("Removed While Reset", func(t *testing.T) {
		src.err = errors.New("boom")
		require.Error(t, s.Refresh(ctx, core.ViewGeneric))
		s.RemoveLocal(6)
		src.err = nil

		require.NoError(t, s.Load(ctx, core.ViewGeneric, 1))
		assert.Equal(t, []int64{5, 4, 3, 2, 1}, ids(s.Snapshot(core.ViewGeneric)))
	})
}

func TestStore_AdmittedReleasedWhenListed(t *testing.T) {
	ctx := context.Background()
	src := &pages{}
	src.set(core.ViewGeneric, 1, generic(7, 1))

	l := ledger.New(time.Minute)
	s := newStore(t, src, l, 20)
	s.Insert(core.Note{ID: 7})
	l.Admit(7)

	require.NoError(t, s.Load(ctx, core.ViewGeneric, 1))
	assert.Equal(t, []int64{7, 1}, ids(s.Snapshot(core.ViewGeneric)))
	assert.False(t, l.IsAdmitted(7))
}

func TestStore_Uniqueness(t *testing.T) {
	ctx := context.Background()
	src := &pages{}
	src.set(core.ViewGeneric, 1, generic(1, 2, 3))
	src.set(core.ViewGeneric, 2, generic(3, 2, 4))
	l := ledger.New(time.Minute)
	s := newStore(t, src, l, 3)

	s.Insert(core.Note{ID: 2})
	s.Insert(core.Note{ID: 2})
	l.Admit(2)
	require.NoError(t, s.Load(ctx, core.ViewGeneric, 1))
	require.NoError(t, s.Load(ctx, core.ViewGeneric, 2))
	s.Replace(4, core.Note{ID: 1})

	for _, v := range core.PagedViews {
		seen := map[int64]int{}
		for _, n := range s.Snapshot(v) {
			seen[n.ID]++
			assert.Equal(t, 1, seen[n.ID], "view %s holds id %d twice", v, n.ID)
		}
	}
}

func TestStore_Insert(t *testing.T) {
	s := newStore(t, &pages{}, nil, 20)

	s.Insert(core.Note{ID: 1, Type: core.NoteTypeTodo})
	assert.True(t, s.Contains(core.ViewTodos, 1))
	assert.True(t, s.Contains(core.ViewAll, 1))
	assert.False(t, s.Contains(core.ViewGeneric, 1))
	assert.False(t, s.Contains(core.ViewTrash, 1))
	assert.False(t, s.Contains(core.ViewDaily, 1))
}

func TestStore_UpsertLocal(t *testing.T) {
	s := newStore(t, &pages{}, nil, 20)
	s.Insert(core.Note{ID: 1, Content: "a", Tags: []core.Tag{{ID: 1}}})
	s.Select(&core.Note{ID: 1, Content: "a"})

	t.Run("Merges Into Every View And Selection", func(t *testing.T) {
		found := s.UpsertLocal(core.Note{ID: 1, Content: "b"})
		require.True(t, found)

		for _, v := range []core.View{core.ViewGeneric, core.ViewAll} {
			snap := s.Snapshot(v)
			require.Len(t, snap, 1)
			assert.Equal(t, "b", snap[0].Content)
			assert.Len(t, snap[0].Tags, 1, "tags not sent must survive the merge")
		}
		sel, ok := s.Selected()
		require.True(t, ok)
		assert.Equal(t, "b", sel.Content)
	})

	t.Run("Leaves Views It No Longer Matches", func(t *testing.T) {
		s.UpsertLocal(core.Note{ID: 1, Content: "b", IsRecycle: true})
		assert.False(t, s.Contains(core.ViewGeneric, 1))
		assert.False(t, s.Contains(core.ViewAll, 1))
	})

	t.Run("Unknown ID", func(t *testing.T) {
		assert.False(t, s.UpsertLocal(core.Note{ID: 404}))
	})
}

func TestStore_RemoveLocal(t *testing.T) {
	ctx := context.Background()
	src := &pages{}
	src.set(core.ViewDaily, 1, generic(1, 2))
	s := newStore(t, src, nil, 20)
	require.NoError(t, s.Load(ctx, core.ViewDaily, 1))
	s.Insert(core.Note{ID: 1})
	s.Select(&core.Note{ID: 1})
	s.ToggleMultiSelect(1)
	s.ToggleMultiSelect(2)

	s.RemoveLocal(1)
	s.RemoveLocal(1)

	for _, v := range append(core.PagedViews, core.ViewDaily) {
		assert.False(t, s.Contains(v, 1), "view %s", v)
	}
	assert.True(t, s.Contains(core.ViewDaily, 2))
	_, ok := s.Selected()
	assert.False(t, ok)
	assert.Equal(t, []int64{2}, s.MultiSelected())
}

func TestStore_Replace(t *testing.T) {
	s := newStore(t, &pages{}, nil, 20)
	offlineID := time.Now().UnixMilli()
	s.Insert(core.Note{ID: offlineID, Content: "draft A"})

	s.Replace(offlineID, core.Note{ID: 10, Content: "draft A"})

	assert.Equal(t, []int64{10}, ids(s.Snapshot(core.ViewGeneric)))
	assert.Equal(t, []int64{10}, ids(s.Snapshot(core.ViewAll)))
}

func TestStore_SeedIsReplaced(t *testing.T) {
	ctx := context.Background()
	src := &pages{}
	src.set(core.ViewGeneric, 1, generic(3))
	s := newStore(t, src, nil, 20)

	assert.True(t, s.Seed(core.ViewGeneric, generic(1, 2)))
	assert.False(t, s.Seed(core.ViewGeneric, generic(9)), "non-empty views are not reseeded")

	require.NoError(t, s.NextPage(ctx, core.ViewGeneric))
	assert.Equal(t, []int64{3}, ids(s.Snapshot(core.ViewGeneric)))
}

func TestStore_Refresh(t *testing.T) {
	ctx := context.Background()
	src := &pages{}
	src.set(core.ViewTrash, 1, generic(8))
	s := projection.New(projection.Config{
		Fetch:      src.fetch,
		Strategies: map[core.View]projection.Strategy{core.ViewTrash: projection.RefreshReset},
	})
	assert.Equal(t, projection.RefreshReset, s.Strategy(core.ViewTrash))
	assert.Equal(t, projection.RefreshSilent, s.Strategy(core.ViewAll))

	events, cancel := s.Subscribe(8)
	defer cancel()

	require.NoError(t, s.Refresh(ctx, core.ViewTrash))

	first := <-events
	assert.Equal(t, core.ViewTrash, first.View)
	assert.Empty(t, first.Notes, "reset strategy publishes an empty list first")
	second := <-events
	assert.Equal(t, []int64{8}, ids(second.Notes))
}

func TestStore_StalePageDiscarded(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	s := projection.New(projection.Config{
		PageSize: 1,
		Fetch: func(_ context.Context, _ core.View, _ core.Filter, page, _ int) ([]core.Note, error) {
			if page == 2 {
				close(started)
				<-release
			}
			return generic(int64(page)), nil
		},
	})
	require.NoError(t, s.Load(ctx, core.ViewAll, 1))

	done := make(chan error)
	go func() { done <- s.Load(ctx, core.ViewAll, 2) }()
	<-started
	require.NoError(t, s.SetFilter(core.ViewAll, core.Filter{SearchText: "x"}))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1}, ids(s.Snapshot(core.ViewAll)))
	assert.Equal(t, "x", s.Filter(core.ViewAll).SearchText)
}

func TestStore_MultiSelect(t *testing.T) {
	s := newStore(t, &pages{}, nil, 20)
	s.ToggleMultiSelect(1)
	s.ToggleMultiSelect(2)
	s.ToggleMultiSelect(1)
	assert.Equal(t, []int64{2}, s.MultiSelected())
	assert.True(t, s.IsMultiSelectMode())

	s.ResetMultiSelect()
	assert.False(t, s.IsMultiSelectMode())
}

func TestStore_SubscribeCancel(t *testing.T) {
	s := newStore(t, &pages{}, nil, 20)
	events, cancel := s.Subscribe(1)
	s.Insert(core.Note{ID: 1})
	s.Insert(core.Note{ID: 2})
	cancel()
	cancel()

	n := 0
	for range events {
		n++
	}
	assert.Equal(t, 1, n, "full buffer drops events instead of blocking")
}
