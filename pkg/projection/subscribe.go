package projection

import (
	"github.com/aretw0/notesync/pkg/core"
)

// Subscribe returns a channel receiving a full snapshot after every change,
// and a cancel function that closes it. Sends never block the store: when the
// buffer is full the event is dropped, and the next one carries the complete
// state anyway.
func (s *Store) Subscribe(buffer int) (<-chan core.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan core.Event, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// emitLocked publishes a view snapshot. Callers hold s.mu.
func (s *Store) emitLocked(p *projection) {
	if len(s.subs) == 0 {
		return
	}
	s.publishLocked(core.Event{
		Type:  core.EventProjectionChanged,
		View:  p.view,
		Notes: cloneAll(p.notes),
	})
}

func (s *Store) emitSelectionLocked() {
	if len(s.subs) == 0 {
		return
	}
	e := core.Event{Type: core.EventSelectionChanged}
	if s.selected != nil {
		e.Notes = []core.Note{s.selected.Clone()}
	}
	s.publishLocked(e)
}

func (s *Store) publishLocked(e core.Event) {
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
			s.logger.Debug("subscriber buffer full, dropping event", "view", e.View)
		}
	}
}
