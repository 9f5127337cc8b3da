package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/core"
)

// TestEngine_Chaos runs writers, a flapping network, refreshes, drafts and
// a subscriber against one engine, then checks that it settles: no view
// holds a note twice and the offline queue drains.
func TestEngine_Chaos(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	f := newFixture(t, func(c *Config) { c.RefreshDelay = 5 * time.Millisecond })
	f.seed(8)
	require.NoError(t, f.e.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	var (
		mu     sync.Mutex
		server = []int64{1, 2, 3, 4, 5, 6, 7, 8}
	)
	pick := func() int64 {
		mu.Lock()
		defer mu.Unlock()
		return server[rand.IntN(len(server))]
	}
	jitter := func() {
		time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)
	}

	events, unsubscribe := f.e.Subscribe(16)
	defer unsubscribe()

	var wg sync.WaitGroup

	// Writers.
	for w := range 3 {
		wg.Go(func() {
			for i := 0; ctx.Err() == nil; i++ {
				if rand.IntN(2) == 0 {
					n, err := f.e.CreateNote(ctx, core.NoteInput{Content: text(fmt.Sprintf("w%d-%d", w, i))})
					if _, ok := f.svc.Get(n.ID); err == nil && ok {
						mu.Lock()
						server = append(server, n.ID)
						mu.Unlock()
					}
				} else {
					_, _ = f.e.UpdateNote(ctx, core.NoteInput{ID: pick(), Content: text(fmt.Sprintf("edit %d", i))})
				}
				jitter()
			}
		})
	}

	// Network.
	wg.Go(func() {
		for ctx.Err() == nil {
			up := rand.IntN(3) != 0
			f.svc.SetReachable(up)
			f.e.SetOnline(up)
			time.Sleep(time.Duration(10+rand.IntN(20)) * time.Millisecond)
		}
	})

	// Refreshes and paging.
	wg.Go(func() {
		views := []core.View{core.ViewGeneric, core.ViewAll, core.ViewNotes}
		for ctx.Err() == nil {
			switch rand.IntN(3) {
			case 0:
				f.e.Refresh()
			case 1:
				_ = f.e.NextPage(ctx)
			default:
				_ = f.e.Navigate(ctx, views[rand.IntN(len(views))])
			}
			jitter()
		}
	})

	// Drafts.
	wg.Go(func() {
		for ctx.Err() == nil {
			id := pick()
			f.e.OpenDraft(id)
			jitter()
			f.e.CloseDraft(id)
		}
	})

	// Subscriber.
	wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-events:
			}
		}
	})

	wg.Wait()

	settle := context.Background()
	f.svc.SetReachable(true)
	f.e.SetOnline(true)
	require.Eventually(t, func() bool {
		_, _ = f.e.SyncOffline(settle)
		return len(f.e.PendingOffline()) == 0
	}, waitFor, 10*time.Millisecond)

	f.e.FlushRefresh()
	require.NoError(t, f.e.Navigate(settle, core.ViewAll))
	assertUnique(t, f.e)
	assert.NoError(t, f.e.FlushCache(settle))
	t.Logf("settled with %d notes on the service", f.svc.Len())
}
