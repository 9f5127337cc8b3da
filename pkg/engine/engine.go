// Package engine composes the note sync components into one client-side
// engine: projections over the remote service, the optimistic admission
// ledger, the offline queue, the enrichment poller and the debounced
// refresh orchestrator.
//
// Every mutation follows the same order: optimistic local change, remote
// call, authoritative merge, asynchronous cache write-through, refresh
// trigger. No component lock is held across a remote call, a cache call or
// a timer wait.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/ledger"
	"github.com/aretw0/notesync/pkg/metrics"
	"github.com/aretw0/notesync/pkg/offline"
	"github.com/aretw0/notesync/pkg/poller"
	"github.com/aretw0/notesync/pkg/projection"
	"github.com/aretw0/notesync/pkg/refresh"
)

const (
	DefaultPageSize     = 30
	DefaultAdmissionTTL = 30 * time.Second
	// cacheTimeout bounds a single write-through.
	cacheTimeout   = 5 * time.Second
	cacheQueueSize = 256
)

// Config wires the engine. Service is required; everything else has a
// working default.
type Config struct {
	Service core.Service
	// Cache is the local persistent cache. Nil disables cold-start seeding
	// and offline reads.
	Cache core.Cache
	// Queue is the offline mutation queue. Nil opens an in-memory one.
	Queue *offline.Queue
	// Drafts reports edits opened outside the engine (e.g. a draft
	// directory). It is combined with drafts opened through OpenDraft.
	Drafts   core.DraftChecker
	Notifier core.Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	PageSize        int
	AdmissionTTL    time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
	PollMaxStages   int
	RefreshDelay    time.Duration
	Strategies      map[core.View]projection.Strategy

	// Offline starts the engine without connectivity.
	Offline bool
}

// Engine is the note sync engine. It is safe for concurrent use.
type Engine struct {
	svc      core.Service
	cache    core.Cache
	queue    *offline.Queue
	ledger   *ledger.Ledger
	store    *projection.Store
	poller   *poller.Poller
	refresh  *refresh.Scheduler
	external core.DraftChecker
	notifier core.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup
	online atomic.Bool
	closed atomic.Bool

	mu      sync.RWMutex
	active  core.View
	account core.AccountConfig
	known   bool
	tags    []core.Tag

	// draftMu makes "no draft open" and "merge enrichment" one step.
	draftMu sync.RWMutex
	drafts  map[int64]struct{}

	writeMu      sync.RWMutex
	writes       chan cacheWrite
	writesClosed bool
}

// New builds an engine and starts its cache writer.
func New(cfg Config) (*Engine, error) {
	if cfg.Service == nil {
		return nil, errors.New("engine requires a note service")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.AdmissionTTL <= 0 {
		cfg.AdmissionTTL = DefaultAdmissionTTL
	}
	if cfg.Queue == nil {
		q, err := offline.Open(nil, offline.WithLogger(cfg.Logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open offline queue: %w", err)
		}
		cfg.Queue = q
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		svc:      cfg.Service,
		cache:    cfg.Cache,
		queue:    cfg.Queue,
		ledger:   ledger.New(cfg.AdmissionTTL),
		external: cfg.Drafts,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
		active:   core.ViewGeneric,
		drafts:   make(map[int64]struct{}),
		writes:   make(chan cacheWrite, cacheQueueSize),
	}
	e.online.Store(!cfg.Offline)

	e.store = projection.New(projection.Config{
		PageSize:   cfg.PageSize,
		Fetch:      e.fetch,
		Ledger:     e.ledger,
		Strategies: cfg.Strategies,
		Logger:     cfg.Logger,
	})
	e.poller = poller.New(poller.Config{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.PollMaxAttempts,
		MaxStages:   cfg.PollMaxStages,
		Fetcher:     cfg.Service,
		Drafts:      e,
		Merge:       e.mergeEnrichment,
		Notifier:    cfg.Notifier,
		Metrics:     cfg.Metrics,
		Logger:      cfg.Logger,
	})
	e.refresh = refresh.New(refresh.Config{
		Delay:   cfg.RefreshDelay,
		Handler: e.refreshPass,
		Metrics: cfg.Metrics,
		Logger:  cfg.Logger,
	})

	e.metrics.SetQueueDepth(e.queue.Len())
	e.bg.Go(e.cacheWriter)
	return e, nil
}

// Close stops the refresh scheduler and every poller session, then drains
// pending cache writes. It is safe to call more than once.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.refresh.Stop()
	e.poller.StopAll()
	e.cancel()

	e.writeMu.Lock()
	e.writesClosed = true
	close(e.writes)
	e.writeMu.Unlock()

	e.bg.Wait()
	return nil
}

// Online reports the current connectivity state.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// ActiveView returns the view the user is looking at.
func (e *Engine) ActiveView() core.View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

// Projection returns a copy of a view's notes.
func (e *Engine) Projection(view core.View) []core.Note {
	return e.store.Snapshot(view)
}

// Find returns the latest local state of a note.
func (e *Engine) Find(id int64) (core.Note, bool) {
	return e.store.Find(id)
}

// PageState returns the paging state of a view.
func (e *Engine) PageState(view core.View) (page int, hasMore, loading bool) {
	return e.store.PageState(view)
}

// Subscribe streams projection and selection changes. The returned
// function unsubscribes.
func (e *Engine) Subscribe(buffer int) (<-chan core.Event, func()) {
	return e.store.Subscribe(buffer)
}

// Select sets the current note selection. Nil clears it.
func (e *Engine) Select(note *core.Note) { e.store.Select(note) }

// Selected returns the current selection.
func (e *Engine) Selected() (core.Note, bool) { return e.store.Selected() }

// ToggleMultiSelect adds or removes id from the multi-selection.
func (e *Engine) ToggleMultiSelect(id int64) { e.store.ToggleMultiSelect(id) }

// MultiSelected returns the multi-selected ids.
func (e *Engine) MultiSelected() []int64 { return e.store.MultiSelected() }

// IsMultiSelectMode reports whether any note is multi-selected.
func (e *Engine) IsMultiSelectMode() bool { return e.store.IsMultiSelectMode() }

// ResetMultiSelect clears the multi-selection.
func (e *Engine) ResetMultiSelect() { e.store.ResetMultiSelect() }

// Tags returns the last loaded tag list.
func (e *Engine) Tags() []core.Tag {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.tags)
}

// Account returns the last known account configuration.
func (e *Engine) Account() core.AccountConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.account
}

// PendingOffline returns the offline entries waiting for replay.
func (e *Engine) PendingOffline() []core.OfflineNote {
	return e.queue.Pending()
}

// Admitted returns the ids currently protected by the admission ledger.
func (e *Engine) Admitted() []int64 {
	return e.ledger.IDs()
}

// WaitEnrichment blocks until the poller session for id ends.
func (e *Engine) WaitEnrichment(ctx context.Context, id int64) (poller.Result, error) {
	return e.poller.Wait(ctx, id)
}

// Refresh schedules a debounced refresh pass.
func (e *Engine) Refresh() {
	e.refresh.Trigger(refresh.ReasonManual)
}

// FlushRefresh runs a pending refresh pass now. It reports whether a pass
// ran.
func (e *Engine) FlushRefresh() bool {
	return e.refresh.Flush()
}

func (e *Engine) notify(kind core.NotificationKind, id int64, msg string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(core.Notification{Kind: kind, NoteID: id, Message: msg})
}

// EngineState exposes internal state for observability.
type EngineState struct {
	Online        bool               `json:"online"`
	ActiveView    core.View          `json:"active_view"`
	Views         map[core.View]int  `json:"views"`
	Admitted      []int64            `json:"admitted"`
	Drafts        []int64            `json:"drafts"`
	Queue         any                `json:"queue"`
	Poller        any                `json:"poller"`
	RefreshTicks  uint64             `json:"refresh_ticks"`
	RefreshPasses uint64             `json:"refresh_passes"`
	Account       core.AccountConfig `json:"account"`
}

// State implements introspection.Introspectable.
func (e *Engine) State() any {
	return EngineState{
		Online:        e.Online(),
		ActiveView:    e.ActiveView(),
		Views:         e.store.Counts(),
		Admitted:      e.ledger.IDs(),
		Drafts:        e.draftIDs(),
		Queue:         e.queue.State(),
		Poller:        e.poller.State(),
		RefreshTicks:  e.refresh.Ticks(),
		RefreshPasses: e.refresh.Passes(),
		Account:       e.Account(),
	}
}

// ComponentType implements introspection.Component.
func (e *Engine) ComponentType() string {
	return "engine"
}

var _ introspection.Introspectable = (*Engine)(nil)
var _ introspection.Component = (*Engine)(nil)
