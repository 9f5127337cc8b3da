package engine

import (
	"context"
	"slices"

	"github.com/aretw0/notesync/pkg/core"
)

// cacheWrite is one queued write-through. A nil fn is a flush barrier.
type cacheWrite struct {
	op   string
	fn   func(ctx context.Context, c core.Cache) error
	done chan struct{}
}

// cacheWriter applies write-throughs one at a time, in submission order.
func (e *Engine) cacheWriter() {
	for w := range e.writes {
		if w.fn != nil && e.cache != nil {
			ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
			if err := w.fn(ctx, e.cache); err != nil {
				e.metrics.ObserveCacheFailure()
				e.logger.Warn("cache write-through failed", "op", w.op, "error", err)
			}
			cancel()
		}
		if w.done != nil {
			close(w.done)
		}
	}
}

// submit queues a write-through without blocking the caller. When the
// queue is full the write is dropped; the cache is rebuilt by later loads.
func (e *Engine) submit(op string, fn func(ctx context.Context, c core.Cache) error) {
	if e.cache == nil {
		return
	}
	e.writeMu.RLock()
	defer e.writeMu.RUnlock()
	if e.writesClosed {
		return
	}
	select {
	case e.writes <- cacheWrite{op: op, fn: fn}:
	default:
		e.metrics.ObserveCacheFailure()
		e.logger.Warn("cache write-through dropped", "op", op)
	}
}

func (e *Engine) cachePut(notes ...core.Note) {
	if len(notes) == 0 {
		return
	}
	batch := make([]core.Note, len(notes))
	for i, n := range notes {
		batch[i] = n.Clone()
	}
	e.submit("put", func(ctx context.Context, c core.Cache) error {
		return c.PutMany(ctx, batch)
	})
}

func (e *Engine) cacheDelete(ids ...int64) {
	if len(ids) == 0 {
		return
	}
	ids = slices.Clone(ids)
	e.submit("delete", func(ctx context.Context, c core.Cache) error {
		for _, id := range ids {
			if err := c.Delete(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// FlushCache waits until every write-through queued so far has been
// applied.
func (e *Engine) FlushCache(ctx context.Context) error {
	if e.cache == nil {
		return nil
	}
	done := make(chan struct{})
	e.writeMu.RLock()
	if e.writesClosed {
		e.writeMu.RUnlock()
		return nil
	}
	select {
	case e.writes <- cacheWrite{op: "flush", done: done}:
	case <-ctx.Done():
		e.writeMu.RUnlock()
		return ctx.Err()
	}
	e.writeMu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
