package platform_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/internal/platform"
	"github.com/aretw0/notesync/pkg/adapters/memory"
	"github.com/aretw0/notesync/pkg/core"
)

func content(s string) *string { return &s }

func open(t *testing.T, dir string, svc core.Service, opts ...platform.Option) *platform.Runtime {
	t.Helper()
	base := []platform.Option{
		platform.WithService(svc),
		platform.WithAutoInit(true),
		platform.WithRefreshDelay(time.Hour),
	}
	rt, err := platform.New(dir, append(base, opts...)...)
	require.NoError(t, err)
	return rt
}

func TestNew_RequiresService(t *testing.T) {
	_, err := platform.New(t.TempDir(), platform.WithAutoInit(true))
	assert.ErrorIs(t, err, platform.ErrNoService)
}

func TestNew_RejectsUnknownAdapter(t *testing.T) {
	_, err := platform.New(t.TempDir(),
		platform.WithService(memory.NewService()),
		platform.WithCacheAdapter("s3"),
	)
	assert.ErrorContains(t, err, "unknown cache adapter")
}

func TestNew_MustExist(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	_, err := platform.New(missing,
		platform.WithService(memory.NewService()),
		platform.WithMustExist(true),
	)
	assert.Error(t, err)
}

func TestRuntime_OfflineQueueSurvivesRestart(t *testing.T) {
	for _, adapter := range []string{platform.CacheFS, platform.CacheSQLite} {
		t.Run(adapter, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			svc := memory.NewService()

			rt := open(t, dir, svc, platform.WithCacheAdapter(adapter), platform.WithOffline(true))
			_, err := rt.Engine.CreateNote(ctx, core.NoteInput{Content: content("written on a plane")})
			require.NoError(t, err)
			require.NoError(t, rt.Close())

			_, err = os.Stat(filepath.Join(dir, platform.DefaultSystemDir))
			require.NoError(t, err)

			rt = open(t, dir, svc, platform.WithCacheAdapter(adapter))
			defer rt.Close()
			require.Len(t, rt.Engine.PendingOffline(), 1)

			res, err := rt.Engine.SyncOffline(ctx)
			require.NoError(t, err)
			assert.Len(t, res.Synced, 1)
			assert.Equal(t, 1, svc.Len())
		})
	}
}

func TestRuntime_CacheServesOfflineReads(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	svc := memory.NewService()
	svc.Put(core.Note{ID: 1, Content: "cached", UpdatedAt: time.Now()})

	rt := open(t, dir, svc, platform.WithCacheAdapter(platform.CacheSQLite))
	require.NoError(t, rt.Engine.Start(ctx))
	require.NoError(t, rt.Engine.FlushCache(ctx))
	require.NoError(t, rt.Close())

	rt = open(t, dir, svc, platform.WithCacheAdapter(platform.CacheSQLite), platform.WithOffline(true))
	defer rt.Close()
	require.NoError(t, rt.Engine.Start(ctx))

	notes := rt.Engine.Projection(core.ViewGeneric)
	require.Len(t, notes, 1)
	assert.Equal(t, "cached", notes[0].Content)
}

func TestRuntime_DraftDirBlocksMerge(t *testing.T) {
	dir := t.TempDir()
	rt := open(t, dir, memory.NewService(),
		platform.WithCacheAdapter(platform.CacheMemory),
		platform.WithDraftDir("drafts"),
	)
	defer rt.Close()

	require.NotNil(t, rt.Storage.Drafts)
	require.NoError(t, rt.Storage.Drafts.Open(7, "editing"))
	assert.True(t, rt.Engine.HasDraft(7))
	assert.FileExists(t, filepath.Join(dir, "drafts", "7.md"))
}

func TestRuntime_ProbeFlipsEngineOnline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := memory.NewService()

	rt := open(t, t.TempDir(), svc,
		platform.WithCacheAdapter(platform.CacheMemory),
		platform.WithOffline(true),
		platform.WithProbeInterval(10*time.Millisecond),
	)
	defer rt.Close()

	require.NoError(t, rt.Start(ctx))
	require.Eventually(t, rt.Engine.Online, 2*time.Second, 5*time.Millisecond)

	svc.SetReachable(false)
	require.Eventually(t, func() bool { return !rt.Engine.Online() }, 2*time.Second, 5*time.Millisecond)
}
