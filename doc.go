// Package notesync is the composition root of a client-side note sync
// engine.
//
// It keeps paginated projections of a remote note collection consistent
// with local optimistic writes. Fresh writes survive stale list responses,
// writes made without connectivity are queued and replayed, server-side
// enrichment is polled and merged, and list refreshes are coalesced.
//
// The remote service, the persistent cache and the draft store are ports
// (see pkg/core); the adapters under pkg/adapters provide an HTTP client,
// sqlite and file caches, and an in-memory implementation for tests.
//
// Usage:
//
//	rt, err := notesync.New("./workspace",
//		notesync.WithRemote("https://notes.example.com", token),
//		notesync.WithCacheAdapter(notesync.CacheSQLite),
//		notesync.WithAutoInit(true),
//	)
//	if err != nil {
//		return err
//	}
//	defer rt.Close()
//
//	if err := rt.Start(ctx); err != nil {
//		return err
//	}
//	note, err := rt.Engine.CreateNote(ctx, core.NoteInput{Content: core.Ptr("hello")})
package notesync
