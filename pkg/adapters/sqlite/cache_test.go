package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/core"
)

func openTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, path
}

func TestCache_PutAndGet(t *testing.T) {
	ctx := context.Background()
	c, _ := openTestCache(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	err := c.PutMany(ctx, []core.Note{
		{ID: 1, Content: "old", UpdatedAt: base},
		{ID: 2, Content: "new", Type: core.NoteTypeTodo, UpdatedAt: base.Add(time.Hour),
			Tags: []core.Tag{{ID: 3, Name: "work"}}, Metadata: core.Metadata{"ai": true}},
	})
	require.NoError(t, err)

	all, err := c.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(2), all[0].ID, "newest first")
	assert.Equal(t, core.NoteTypeTodo, all[0].Type)
	assert.Equal(t, []core.Tag{{ID: 3, Name: "work"}}, all[0].Tags)
	assert.Equal(t, true, all[0].Metadata["ai"])
}

func TestCache_Upsert(t *testing.T) {
	ctx := context.Background()
	c, _ := openTestCache(t)

	require.NoError(t, c.PutMany(ctx, []core.Note{{ID: 1, Content: "v1"}}))
	require.NoError(t, c.PutMany(ctx, []core.Note{{ID: 1, Content: "v2"}}))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := c.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", all[0].Content)
}

func TestCache_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c, _ := openTestCache(t)
	require.NoError(t, c.PutMany(ctx, []core.Note{{ID: 1}, {ID: 2}, {ID: 3}}))

	require.NoError(t, c.Delete(ctx, 2))
	require.NoError(t, c.Delete(ctx, 2), "deleting a missing id is not an error")
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, c.Clear(ctx))
	n, err = c.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCache_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	c, path := openTestCache(t)
	require.NoError(t, c.PutMany(ctx, []core.Note{{ID: 7, Content: "persisted"}}))
	require.NoError(t, c.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "persisted", all[0].Content)
}

func TestCache_SkipsCorruptRows(t *testing.T) {
	ctx := context.Background()
	c, _ := openTestCache(t)
	require.NoError(t, c.PutMany(ctx, []core.Note{{ID: 1, Content: "ok"}}))
	require.NoError(t, c.db.Create(&noteRow{ID: 2, Payload: []byte("{not json")}).Error)

	all, err := c.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(1), all[0].ID)
}

func TestCache_State(t *testing.T) {
	c, _ := openTestCache(t)
	require.NoError(t, c.PutMany(context.Background(), []core.Note{{ID: 1}, {ID: 2}}))

	state, ok := c.State().(CacheState)
	require.True(t, ok)
	assert.Equal(t, int64(2), state.Notes)
	assert.Empty(t, state.Error)
	assert.Equal(t, "sqlite-cache", c.ComponentType())
}
