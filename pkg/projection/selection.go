package projection

import (
	"slices"

	"github.com/aretw0/notesync/pkg/core"
)

// Select sets the current detail note. Nil clears it.
func (s *Store) Select(note *core.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if note == nil {
		s.selected = nil
	} else {
		n := note.Clone()
		s.selected = &n
	}
	s.emitSelectionLocked()
}

// Selected returns the current detail note.
func (s *Store) Selected() (core.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return core.Note{}, false
	}
	return s.selected.Clone(), true
}

// ToggleMultiSelect adds or removes id from the multi-select set.
func (s *Store) ToggleMultiSelect(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.multi, id); i >= 0 {
		s.multi = slices.Delete(s.multi, i, i+1)
		return
	}
	s.multi = append(s.multi, id)
}

// MultiSelected returns the selected ids in selection order.
func (s *Store) MultiSelected() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.multi)
}

// IsMultiSelectMode reports whether any id is multi-selected.
func (s *Store) IsMultiSelectMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.multi) > 0
}

// ResetMultiSelect clears the multi-select set.
func (s *Store) ResetMultiSelect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multi = nil
}
