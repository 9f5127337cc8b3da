// Package refresh coalesces invalidation triggers into a single debounced
// refresh pass.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/notesync/pkg/metrics"
)

// DefaultDelay is the debounce window.
const DefaultDelay = 300 * time.Millisecond

// Reason names what invalidated the projections.
type Reason string

const (
	ReasonCreate    Reason = "create"
	ReasonUpdate    Reason = "update"
	ReasonDelete    Reason = "delete"
	ReasonTag       Reason = "tag"
	ReasonReconnect Reason = "reconnect"
	ReasonManual    Reason = "manual"
)

// Handler runs one refresh pass for the coalesced reasons.
type Handler func(ctx context.Context, reasons []Reason)

// Config configures a Scheduler. Handler is required.
type Config struct {
	Delay   time.Duration
	Handler Handler
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Scheduler is a single-slot pending-task scheduler: a new trigger replaces
// the pending task instead of queuing another one.
type Scheduler struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	ticks   uint64
	passes  uint64
	pending []Reason
	stopped bool

	// runMu serializes handler passes.
	runMu   sync.Mutex
	running sync.WaitGroup
}

// New creates a Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cfg: cfg, ctx: ctx, cancel: cancel}
}

// Trigger records reason and (re)arms the debounce timer.
func (s *Scheduler) Trigger(reason Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.ticks++
	if !slices.Contains(s.pending, reason) {
		s.pending = append(s.pending, reason)
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.cfg.Delay, func() { s.fire(gen) })
	s.cfg.Metrics.ObserveRefreshTrigger(string(reason))
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	reasons := s.takeLocked()
	s.mu.Unlock()

	s.run(reasons)
}

// Flush runs the pending task now. It reports whether there was one.
func (s *Scheduler) Flush() bool {
	s.mu.Lock()
	if s.stopped || s.timer == nil {
		s.mu.Unlock()
		return false
	}
	s.timer.Stop()
	s.gen++
	reasons := s.takeLocked()
	s.mu.Unlock()

	s.run(reasons)
	return true
}

// takeLocked claims the pending reasons. Callers hold mu.
func (s *Scheduler) takeLocked() []Reason {
	reasons := s.pending
	s.pending = nil
	s.timer = nil
	s.passes++
	s.running.Add(1)
	return reasons
}

func (s *Scheduler) run(reasons []Reason) {
	defer s.running.Done()
	s.runMu.Lock()
	defer s.runMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("refresh panic: %v", r)
			if s.cfg.Logger.Enabled(s.ctx, slog.LevelDebug) {
				s.cfg.Logger.Error("refresh panic", "error", err, "stack", string(debug.Stack()))
			} else {
				s.cfg.Logger.Error("refresh panic", "error", err)
			}
		}
	}()

	s.cfg.Logger.Debug("refresh pass", "reasons", reasons)
	s.cfg.Metrics.ObserveRefreshPass()
	s.cfg.Handler(s.ctx, reasons)
}

// Pending reports whether a task is scheduled.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Ticks returns how many triggers were received.
func (s *Scheduler) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Passes returns how many handler passes were started.
func (s *Scheduler) Passes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}

// Stop cancels the pending task and waits for a running pass to return.
// Triggers after Stop are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.gen++
	s.mu.Unlock()

	s.cancel()
	s.running.Wait()
}
