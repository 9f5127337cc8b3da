package connectivity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/core"
)

type flakyService struct {
	down atomic.Bool
}

func (f *flakyService) Ping(context.Context) error {
	if f.down.Load() {
		return fmt.Errorf("dial tcp: %w", core.ErrUnavailable)
	}
	return nil
}

type transitions struct {
	mu  sync.Mutex
	log []bool
}

func (r *transitions) record(online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, online)
}

func (r *transitions) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.log...)
}

func TestReachable(t *testing.T) {
	assert.True(t, Reachable(nil))
	assert.True(t, Reachable(errors.New("401 unauthorized")), "an answer is still an answer")
	assert.False(t, Reachable(fmt.Errorf("x: %w", core.ErrUnavailable)))
	assert.False(t, Reachable(context.DeadlineExceeded))
}

func TestProbe_Check(t *testing.T) {
	svc := &flakyService{}
	rec := &transitions{}
	p := New(Config{Pinger: svc, Initial: true, OnChange: rec.record})
	ctx := context.Background()

	assert.True(t, p.Check(ctx))
	assert.Empty(t, rec.get(), "no transition while the state holds")

	svc.down.Store(true)
	assert.False(t, p.Check(ctx))
	assert.False(t, p.Check(ctx))
	svc.down.Store(false)
	assert.True(t, p.Check(ctx))

	assert.Equal(t, []bool{false, true}, rec.get())
	assert.Equal(t, "4", p.State().Metadata["probes"])
}

func TestProbe_Worker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &flakyService{}
	svc.down.Store(true)
	rec := &transitions{}
	p := New(Config{Pinger: svc, Interval: 10 * time.Millisecond, Initial: true, OnChange: rec.record})

	require.NoError(t, p.Start(ctx))
	assert.Error(t, p.Start(ctx), "double start is rejected")

	assert.Eventually(t, func() bool { return !p.Online() }, 2*time.Second, 5*time.Millisecond)
	svc.down.Store(false)
	assert.Eventually(t, p.Online, 2*time.Second, 5*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.Equal(t, []bool{false, true}, rec.get())
}

func TestProbe_RequiresPinger(t *testing.T) {
	p := New(Config{})
	assert.Error(t, p.Start(context.Background()))
}
