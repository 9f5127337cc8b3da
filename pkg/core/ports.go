package core

import "context"

// AccountConfig holds the account settings the engine reacts to.
type AccountConfig struct {
	// AIPostProcessing means the server enriches notes asynchronously after
	// create/update, so the engine should poll for the result.
	AIPostProcessing bool `json:"isUseAiPostProcessing"`
}

// Service is the remote authoritative note service.
// Implementations carry their own transport timeouts.
type Service interface {
	// List returns one page (1-based) of notes matching the filter.
	List(ctx context.Context, filter Filter, page, size int) ([]Note, error)
	// Detail returns the current state of a single note.
	Detail(ctx context.Context, id int64) (Note, error)
	// Upsert creates (ID zero) or updates a note and returns the stored state.
	Upsert(ctx context.Context, in NoteInput) (Note, error)
	// DeleteMany permanently deletes notes.
	DeleteMany(ctx context.Context, ids []int64) error
	// UpdateMany applies the same patch to several notes.
	UpdateMany(ctx context.Context, ids []int64, patch Patch) error
	// Tags returns the flat tag list.
	Tags(ctx context.Context) ([]Tag, error)
	// DailyReview returns the notes due for today's review.
	DailyReview(ctx context.Context) ([]Note, error)
	// Config returns the account configuration.
	Config(ctx context.Context) (AccountConfig, error)
}

// Cache is the local persistent note cache. It is an optimization, never a
// source of truth.
type Cache interface {
	PutMany(ctx context.Context, notes []Note) error
	GetAll(ctx context.Context) ([]Note, error)
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
}

// DraftChecker reports whether the user has an open local edit for a note.
type DraftChecker interface {
	HasDraft(id int64) bool
}

// NotificationKind classifies user-facing notifications.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
)

// Notification is a toast-style message for the rendering layer.
type Notification struct {
	Kind    NotificationKind
	NoteID  int64
	Message string
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notification) { f(n) }
