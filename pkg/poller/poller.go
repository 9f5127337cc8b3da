// Package poller detects asynchronous server-side enrichment of notes (AI
// generated tags or content) and merges it back.
//
// Each note id has at most one session. A session ticks every Interval,
// fetches the note's detail and merges it when the content length, the tag
// count or the update marker changed. A merge opens a fresh window so a
// second enrichment stage is still caught. Sessions stop on their own: when
// a window passes without change, when the note is trashed, or when the user
// opens an edit draft for it.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/introspection"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/metrics"
)

const (
	DefaultInterval       = 2 * time.Second
	DefaultMaxAttempts    = 15
	DefaultMaxStages      = 3
	DefaultNotifyCooldown = 15 * time.Second
)

// State is the lifecycle state of a session.
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateMerged    State = "merged"
	StateExpired   State = "expired"
	StateCancelled State = "cancelled"
)

// Fetcher loads the current state of a note.
type Fetcher interface {
	Detail(ctx context.Context, id int64) (core.Note, error)
}

// MergeFunc applies an enriched note to projections and the local cache. It
// returns false when the note can no longer be merged (an edit started), which
// cancels the session.
type MergeFunc func(note core.Note) bool

// Config configures a Poller.
type Config struct {
	Interval       time.Duration
	MaxAttempts    int
	MaxStages      int
	NotifyCooldown time.Duration

	Fetcher  Fetcher
	Drafts   core.DraftChecker
	Merge    MergeFunc
	Notifier core.Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Result describes how a session ended.
type Result struct {
	NoteID   int64
	State    State
	Merges   int
	Attempts int
}

type session struct {
	id       string
	noteID   int64
	cancel   context.CancelFunc
	done     chan struct{}
	baseline core.Note
	state    State
}

// Poller owns the per-note sessions. It is safe for concurrent use.
type Poller struct {
	cfg      Config
	mu       sync.Mutex
	sessions map[int64]*session
	results  map[int64]Result
	notified *cache.Cache
}

// New creates a Poller. Fetcher and Merge are required.
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxStages <= 0 {
		cfg.MaxStages = DefaultMaxStages
	}
	if cfg.NotifyCooldown <= 0 {
		cfg.NotifyCooldown = DefaultNotifyCooldown
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Poller{
		cfg:      cfg,
		sessions: make(map[int64]*session),
		results:  make(map[int64]Result),
		notified: cache.New(cfg.NotifyCooldown, 0),
	}
}

// Start begins polling id with baseline as the last known state. An active
// session for the same id is cancelled first, so there is never more than
// one timer per note.
func (p *Poller) Start(ctx context.Context, baseline core.Note) {
	if baseline.ID == 0 {
		return
	}
	p.Stop(baseline.ID)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		id:       uuid.NewString(),
		noteID:   baseline.ID,
		cancel:   cancel,
		done:     make(chan struct{}),
		baseline: baseline.Clone(),
		state:    StatePolling,
	}

	p.mu.Lock()
	p.sessions[baseline.ID] = s
	delete(p.results, baseline.ID)
	p.mu.Unlock()

	p.cfg.Metrics.PollerStarted()
	p.cfg.Logger.Debug("poller started", "note_id", s.noteID, "session", s.id)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.cfg.Logger.Error("poller panic", "note_id", s.noteID, "error", fmt.Errorf("%v", r))
				p.finish(s, Result{NoteID: s.noteID, State: StateCancelled})
			}
		}()
		p.run(runCtx, s)
	}()
}

// Stop cancels the session for id, if any, and waits for it to exit.
func (p *Poller) Stop(id int64) {
	p.mu.Lock()
	s, ok := p.sessions[id]
	p.mu.Unlock()
	if !ok {
		return
	}
	s.cancel()
	<-s.done
}

// StopAll cancels every session and waits for them.
func (p *Poller) StopAll() {
	p.mu.Lock()
	ids := make([]int64, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.Stop(id)
	}
}

// Active reports whether id has a running session.
func (p *Poller) Active(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[id]
	return ok
}

// ActiveCount returns the number of running sessions.
func (p *Poller) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Wait blocks until the session for id ends or ctx is done.
func (p *Poller) Wait(ctx context.Context, id int64) (Result, error) {
	p.mu.Lock()
	s, ok := p.sessions[id]
	if !ok {
		r, done := p.results[id]
		p.mu.Unlock()
		if done {
			return r, nil
		}
		return Result{NoteID: id, State: StateIdle}, nil
	}
	p.mu.Unlock()

	select {
	case <-s.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results[id], nil
}

// LastResult returns the outcome of the most recent finished session for id.
func (p *Poller) LastResult(id int64) (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.results[id]
	return r, ok
}

func (p *Poller) run(ctx context.Context, s *session) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	result := Result{NoteID: s.noteID, State: StateExpired}
	attempts := 0
	defer func() {
		result.Attempts = attempts
		p.finish(s, result)
	}()

	for {
		select {
		case <-ctx.Done():
			result.State = StateCancelled
			return
		case <-ticker.C:
		}

		attempts++
		if p.editing(s.noteID) {
			p.cfg.Logger.Debug("poller cancelled by local draft", "note_id", s.noteID)
			result.State = StateCancelled
			return
		}
		if attempts > p.cfg.MaxAttempts {
			return
		}

		fresh, err := p.fetch(ctx, s.noteID)
		if err != nil {
			if ctx.Err() != nil {
				result.State = StateCancelled
				return
			}
			p.cfg.Logger.Warn("poll failed", "note_id", s.noteID, "attempt", attempts, "error", err)
			continue
		}

		if fresh.IsRecycle {
			p.cfg.Logger.Debug("poller stopped, note trashed", "note_id", s.noteID)
			result.State = StateCancelled
			return
		}
		if !Changed(s.baseline, fresh) {
			continue
		}
		// The user may have opened an editor while the fetch was in flight.
		if p.editing(s.noteID) {
			result.State = StateCancelled
			return
		}

		if !p.cfg.Merge(fresh) {
			result.State = StateCancelled
			return
		}
		p.cfg.Metrics.ObservePollerMerge()
		p.notify(fresh)
		result.Merges++
		s.baseline = fresh.Clone()
		attempts = 0
		p.cfg.Logger.Debug("enrichment merged", "note_id", s.noteID, "stage", result.Merges)

		if result.Merges >= p.cfg.MaxStages {
			break
		}
	}
	result.State = StateMerged
}

// fetch bounds one detail call to a single interval.
func (p *Poller) fetch(ctx context.Context, id int64) (core.Note, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Interval)
	defer cancel()
	n, err := p.cfg.Fetcher.Detail(ctx, id)
	if err != nil {
		return core.Note{}, fmt.Errorf("failed to fetch note %d: %w", id, err)
	}
	return n, nil
}

func (p *Poller) editing(id int64) bool {
	return p.cfg.Drafts != nil && p.cfg.Drafts.HasDraft(id)
}

// notify emits at most one notification per note per cooldown.
func (p *Poller) notify(n core.Note) {
	if p.cfg.Notifier == nil {
		return
	}
	p.notified.DeleteExpired()
	if err := p.notified.Add(strconv.FormatInt(n.ID, 10), struct{}{}, cache.DefaultExpiration); err != nil {
		return
	}
	p.cfg.Notifier.Notify(core.Notification{
		Kind:    core.NotifySuccess,
		NoteID:  n.ID,
		Message: "AI tags updated",
	})
}

func (p *Poller) finish(s *session, r Result) {
	if r.Merges > 0 && r.State == StateExpired {
		r.State = StateMerged
	}

	p.mu.Lock()
	select {
	case <-s.done:
		p.mu.Unlock()
		return
	default:
	}
	if cur, ok := p.sessions[s.noteID]; ok && cur == s {
		delete(p.sessions, s.noteID)
	}
	p.results[s.noteID] = r
	s.state = r.State
	close(s.done)
	p.mu.Unlock()

	s.cancel()
	p.cfg.Metrics.PollerFinished(string(r.State))
	p.cfg.Logger.Debug("poller finished", "note_id", s.noteID, "session", s.id, "state", r.State, "merges", r.Merges)
}

// Changed reports whether fresh differs from baseline in a way that signals
// enrichment: content length, tag count, or a newer update marker.
func Changed(baseline, fresh core.Note) bool {
	if len(fresh.Content) != len(baseline.Content) {
		return true
	}
	if len(fresh.Tags) != len(baseline.Tags) {
		return true
	}
	return fresh.UpdatedAt.After(baseline.UpdatedAt)
}

// PollerState exposes internal state for observability.
type PollerState struct {
	Active      []int64       `json:"active"`
	Interval    time.Duration `json:"interval"`
	MaxAttempts int           `json:"max_attempts"`
}

// State implements introspection.Introspectable.
func (p *Poller) State() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]int64, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	return PollerState{
		Active:      ids,
		Interval:    p.cfg.Interval,
		MaxAttempts: p.cfg.MaxAttempts,
	}
}

// ComponentType implements introspection.Component.
func (p *Poller) ComponentType() string {
	return "poller"
}

var _ introspection.Introspectable = (*Poller)(nil)
var _ introspection.Component = (*Poller)(nil)
