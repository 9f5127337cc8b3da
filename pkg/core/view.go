package core

// View names a projection over the note collection.
type View string

const (
	ViewGeneric  View = "generic"
	ViewNotes    View = "notes"
	ViewTodos    View = "todo"
	ViewAll      View = "all"
	ViewArchived View = "archived"
	ViewTrash    View = "trash"
	// ViewDaily is the unpaginated daily review list.
	ViewDaily View = "daily"
)

// PagedViews lists the projections backed by the paginated list endpoint,
// in display order.
var PagedViews = []View{ViewGeneric, ViewNotes, ViewTodos, ViewAll, ViewArchived, ViewTrash}

// ParseView maps a navigation path onto a view. Unknown or empty paths
// resolve to the generic view, which is the landing page.
func ParseView(path string) View {
	switch View(path) {
	case ViewNotes, ViewTodos, ViewAll, ViewArchived, ViewTrash, ViewDaily:
		return View(path)
	default:
		return ViewGeneric
	}
}

// BaseFilter is the fixed part of a view's filter; user filters (tag,
// search, dates) are merged on top for the "all" view.
func (v View) BaseFilter() Filter {
	no := Ptr(false)
	switch v {
	case ViewNotes:
		return Filter{Type: Ptr(NoteTypeNote), IsArchived: no, IsRecycle: no}
	case ViewTodos:
		return Filter{Type: Ptr(NoteTypeTodo), IsArchived: no, IsRecycle: no}
	case ViewAll:
		return Filter{IsArchived: no, IsRecycle: no}
	case ViewArchived:
		return Filter{IsArchived: Ptr(true), IsRecycle: no}
	case ViewTrash:
		return Filter{IsRecycle: Ptr(true)}
	case ViewDaily:
		return Filter{IsArchived: no, IsRecycle: no}
	default:
		return Filter{Type: Ptr(NoteTypeGeneric), IsArchived: no, IsRecycle: no}
	}
}
