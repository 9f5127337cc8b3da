package engine

import (
	"context"
	"fmt"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/refresh"
)

// Start seeds the views from the local cache, loads the account config,
// tags and daily review, then the first page of the active view. Only the
// active view's failure is returned.
func (e *Engine) Start(ctx context.Context) error {
	e.ColdStart(ctx)
	e.loadConfig(ctx)
	e.loadTags(ctx)
	e.loadDaily(ctx)

	view := e.ActiveView()
	if err := e.store.Load(ctx, view, 1); err != nil {
		return fmt.Errorf("failed to load %s: %w", view, err)
	}
	return nil
}

// Navigate switches the active view with no user filter.
func (e *Engine) Navigate(ctx context.Context, view core.View) error {
	return e.SetNoteListFilter(ctx, view, core.Filter{})
}

// SetNoteListFilter makes view the active view with user filters merged
// over its base filter, clears the multi-selection and reloads the view
// from page 1.
func (e *Engine) SetNoteListFilter(ctx context.Context, view core.View, user core.Filter) error {
	if err := e.store.SetFilter(view, user); err != nil {
		return err
	}
	e.mu.Lock()
	e.active = view
	e.mu.Unlock()

	e.store.ResetMultiSelect()
	if err := e.store.Refresh(ctx, view); err != nil {
		return fmt.Errorf("failed to load %s: %w", view, err)
	}
	return nil
}

// NextPage loads the next page of the active view.
func (e *Engine) NextPage(ctx context.Context) error {
	view := e.ActiveView()
	if err := e.store.NextPage(ctx, view); err != nil {
		return fmt.Errorf("failed to load next page of %s: %w", view, err)
	}
	return nil
}

// refreshPass is the debounced refresh handler. It clears the
// multi-selection, reloads tags, refreshes the active view with its
// strategy, then reloads the account config and the daily review.
func (e *Engine) refreshPass(ctx context.Context, reasons []refresh.Reason) {
	e.store.ResetMultiSelect()
	e.loadTags(ctx)

	view := e.ActiveView()
	if err := e.store.Refresh(ctx, view); err != nil {
		e.logger.Warn("refresh failed", "view", view, "reasons", reasons, "error", err)
	}
	e.loadConfig(ctx)
	e.loadDaily(ctx)
}

func (e *Engine) loadTags(ctx context.Context) {
	if !e.Online() {
		return
	}
	tags, err := e.svc.Tags(ctx)
	if err != nil {
		e.logger.Warn("failed to load tags", "error", err)
		return
	}
	e.mu.Lock()
	e.tags = tags
	e.mu.Unlock()
}

func (e *Engine) loadDaily(ctx context.Context) {
	if err := e.store.Load(ctx, core.ViewDaily, 1); err != nil {
		e.logger.Warn("failed to load daily review", "error", err)
	}
}

// loadConfig refreshes the account config snapshot. The previous snapshot
// is kept when the service cannot be reached.
func (e *Engine) loadConfig(ctx context.Context) {
	if !e.Online() {
		return
	}
	cfg, err := e.svc.Config(ctx)
	if err != nil {
		e.logger.Warn("failed to load account config", "error", err)
		return
	}
	e.mu.Lock()
	e.account = cfg
	e.known = true
	e.mu.Unlock()
}

// accountConfig returns the config snapshot, loading it on first use.
func (e *Engine) accountConfig(ctx context.Context) core.AccountConfig {
	e.mu.RLock()
	cfg, known := e.account, e.known
	e.mu.RUnlock()
	if !known {
		e.loadConfig(ctx)
		return e.Account()
	}
	return cfg
}
