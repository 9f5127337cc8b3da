package fs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/core"
)

func TestDraftDir_OpenClose(t *testing.T) {
	d := NewDraftDir(filepath.Join(t.TempDir(), "drafts"), nil)

	require.NoError(t, d.Open(42, "half written"))
	assert.True(t, d.HasDraft(42))

	content, err := d.Read(42)
	require.NoError(t, err)
	assert.Equal(t, "half written", content)

	require.NoError(t, d.Close(42))
	assert.False(t, d.HasDraft(42))
	require.NoError(t, d.Close(42), "closing twice is not an error")

	_, err = d.Read(42)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDraftDir_Scan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"7.md", "12.md", "notes.md", "9.txt", TempFilePrefix + "3.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	d := NewDraftDir(dir, nil)
	require.NoError(t, d.Scan())
	assert.Equal(t, []int64{7, 12}, d.IDs())

	missing := NewDraftDir(filepath.Join(dir, "nope"), nil)
	assert.NoError(t, missing.Scan())
}

type changes struct {
	mu  sync.Mutex
	log map[int64]bool
}

func (c *changes) record(id int64, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.log == nil {
		c.log = map[int64]bool{}
	}
	c.log[id] = open
}

func (c *changes) get(id int64) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.log[id]
	return v, ok
}

func TestDraftWatcher_TracksExternalEditors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.md"), []byte("existing"), 0644))

	d := NewDraftDir(dir, nil)
	seen := &changes{}
	w := d.NewWatcher(seen.record)
	require.NoError(t, w.Start(ctx))
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		_ = w.Stop(stopCtx)
	}()

	assert.True(t, d.HasDraft(1), "existing drafts are picked up on start")
	waitForDraftWatching(t, d, true)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "5.md"), []byte("new"), 0644))
	assert.Eventually(t, func() bool { return d.HasDraft(5) }, 2*time.Second, 10*time.Millisecond)
	open, ok := seen.get(5)
	assert.True(t, ok && open)

	require.NoError(t, os.Remove(filepath.Join(dir, "1.md")))
	assert.Eventually(t, func() bool { return !d.HasDraft(1) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0644))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []int64{5}, d.IDs())
}

func TestDraftWatcher_RejectsDoubleStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newWatchWorker(NewDraftDir(t.TempDir(), nil), nil)
	require.NoError(t, w.Start(ctx))
	assert.Error(t, w.Start(ctx))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.NoError(t, w.Stop(stopCtx))
}

func waitForDraftWatching(t *testing.T, d *DraftDir, expected bool) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		state, ok := d.State().(DraftDirState)
		if ok && state.Watching == expected {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for watcher state = %v", expected)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
