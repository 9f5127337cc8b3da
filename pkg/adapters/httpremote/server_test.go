package httpremote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/adapters/memory"
	"github.com/aretw0/notesync/pkg/core"
)

func newLoopback(t *testing.T) (*Client, *memory.Service) {
	t.Helper()
	svc := memory.NewService()
	srv := httptest.NewServer(NewHandler(svc, nil))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, svc
}

func TestHandler_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, svc := newLoopback(t)
	svc.SetTags(core.Tag{ID: 9, Name: "inbox"})
	svc.SetConfig(core.AccountConfig{AIPostProcessing: true})

	created, err := c.Upsert(ctx, core.NoteInput{Content: core.Ptr("first"), Type: core.Ptr(core.NoteTypeTodo)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, core.NoteTypeTodo, created.Type)

	_, err = c.Upsert(ctx, core.NoteInput{Content: core.Ptr("second")})
	require.NoError(t, err)

	todos, err := c.List(ctx, core.ViewTodos.BaseFilter(), 1, 10)
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "first", todos[0].Content)

	require.NoError(t, c.UpdateMany(ctx, []int64{1}, core.Patch{IsArchived: core.Ptr(true)}))
	got, err := c.Detail(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.IsArchived)

	require.NoError(t, c.DeleteMany(ctx, []int64{2}))
	assert.Equal(t, 1, svc.Len())

	tags, err := c.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Tag{{ID: 9, Name: "inbox"}}, tags)

	cfg, err := c.Config(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.AIPostProcessing)

	daily, err := c.DailyReview(ctx)
	require.NoError(t, err)
	assert.Empty(t, daily, "archived notes are not reviewed")
}

func TestHandler_ErrorsMapBackToSentinels(t *testing.T) {
	ctx := context.Background()
	c, svc := newLoopback(t)

	_, err := c.Detail(ctx, 404)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = c.Upsert(ctx, core.NoteInput{ID: 77, Content: core.Ptr("ghost")})
	assert.ErrorIs(t, err, core.ErrNotFound)

	svc.Fail(memory.OpUpsert, core.ErrConflict)
	_, err = c.Upsert(ctx, core.NoteInput{Content: core.Ptr("x")})
	assert.ErrorIs(t, err, core.ErrConflict)
	svc.Fail(memory.OpUpsert, nil)

	svc.SetReachable(false)
	assert.ErrorIs(t, c.Ping(ctx), core.ErrUnavailable)
}

func TestHandler_MalformedRequest(t *testing.T) {
	srv := httptest.NewServer(NewHandler(memory.NewService(), nil))
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+PathUpsert, "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2, err := srv.Client().Get(srv.URL + PathUpsert)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}
