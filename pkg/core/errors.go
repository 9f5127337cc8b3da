package core

import "errors"

// Common errors.
var (
	// ErrOffline is returned for writes that cannot be queued while the
	// engine has no connectivity (deletes, restores).
	ErrOffline = errors.New("service is offline")

	// ErrNotFound means the remote service has no note with the given id.
	ErrNotFound = errors.New("note not found")

	// ErrConflict means the remote service rejected a write, e.g. because the
	// note was deleted concurrently.
	ErrConflict = errors.New("note update conflict")

	// ErrUnavailable wraps transient transport failures.
	ErrUnavailable = errors.New("service unavailable")

	// ErrInvalidNote is returned for inputs that fail local validation.
	ErrInvalidNote = errors.New("invalid note")
)
