package core

import "fmt"

// EventType represents the kind of change emitted by the engine.
type EventType string

const (
	EventProjectionChanged EventType = "PROJECTION_CHANGED"
	EventSelectionChanged  EventType = "SELECTION_CHANGED"
)

// Event carries the full snapshot of a projection after a mutation.
// Consumers render from Notes; they never need to diff.
type Event struct {
	Type  EventType
	View  View
	Notes []Note
}

// String implements lifecycle.Event.
func (e Event) String() string {
	return fmt.Sprintf("%s view=%s notes=%d", e.Type, e.View, len(e.Notes))
}
