// Package lifecycle bridges engine events into aretw0/lifecycle sources.
package lifecycle

import (
	"context"
	"slices"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notesync/pkg/core"
)

type projectionSource struct {
	events <-chan core.Event
	views  []core.View
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that re-emits projection events.
// With views given, only events for those views pass; selection events
// always pass.
func NewSource(events <-chan core.Event, views ...core.View) lifecycle.Source {
	return &projectionSource{
		events: events,
		views:  views,
		out:    make(chan lifecycle.Event),
	}
}

func (s *projectionSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *projectionSource) wants(e core.Event) bool {
	if len(s.views) == 0 || e.Type == core.EventSelectionChanged {
		return true
	}
	return slices.Contains(s.views, e.View)
}

func (s *projectionSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				if !s.wants(e) {
					continue
				}
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
