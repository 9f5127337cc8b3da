package engine

import (
	"context"
	"fmt"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/offline"
	"github.com/aretw0/notesync/pkg/refresh"
)

// SetOnline records a connectivity change. Going online replays the
// offline queue in the background and schedules a refresh.
func (e *Engine) SetOnline(online bool) {
	if e.online.Swap(online) == online {
		return
	}
	e.logger.Info("connectivity changed", "online", online)
	if !online {
		return
	}
	e.syncInBackground(refresh.ReasonReconnect)
}

func (e *Engine) syncInBackground(reason refresh.Reason) {
	if e.closed.Load() {
		return
	}
	e.bg.Go(func() {
		if _, err := e.SyncOffline(e.ctx); err != nil {
			e.logger.Warn("background sync failed", "error", err)
		}
		e.refresh.Trigger(reason)
	})
}

// SyncOffline replays the offline queue now. Each entry is pushed to the
// service on its own; failures stay queued and are reported in the result.
func (e *Engine) SyncOffline(ctx context.Context) (offline.ReplayResult, error) {
	if !e.Online() {
		return offline.ReplayResult{}, core.ErrOffline
	}
	res := e.replay(ctx)
	if len(res.Synced) > 0 {
		e.refresh.Trigger(refresh.ReasonUpdate)
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("offline sync interrupted: %w", err)
	}
	return res, nil
}

func (e *Engine) replay(ctx context.Context) offline.ReplayResult {
	res := e.queue.Replay(ctx, e.replayOne)
	e.metrics.SetQueueDepth(e.queue.Len())
	if len(res.Synced) > 0 || len(res.Failed) > 0 {
		e.logger.Info("offline queue replayed", "synced", len(res.Synced), "failed", len(res.Failed))
	}
	return res
}

// replayOne pushes one offline entry and promotes it to its authoritative
// id. The entry leaves the queue before the projections change, so a
// concurrent load cannot show it twice. An edit folded into the entry while
// the upsert was in flight stays queued against the new id.
func (e *Engine) replayOne(ctx context.Context, o core.OfflineNote) error {
	saved, err := e.svc.Upsert(ctx, o.Input())
	e.metrics.ObserveReplay(err)
	if err != nil {
		return err
	}
	left, requeued, err := e.queue.Promote(o, saved.ID)
	if err != nil {
		e.logger.Warn("failed to drop replayed offline note", "offline_id", o.ID, "error", err)
	}

	if o.TargetID == 0 {
		e.ledger.Admit(saved.ID)
		e.metrics.ObserveAdmission()
		e.store.Replace(o.ID, saved)
	} else {
		e.apply(saved)
	}
	if requeued {
		e.apply(left.Note())
	}
	e.cachePut(saved)
	e.maybePoll(ctx, saved)
	return nil
}
