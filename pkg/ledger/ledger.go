// Package ledger tracks locally created note ids that the list endpoint may
// not return yet.
//
// A note created between two list refreshes is invisible to the server's own
// list query for a while (pagination, read-replica lag). While its id is
// admitted, projections keep it even when a fresh page omits it.
package ledger

import (
	"slices"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultTTL is how long an admitted id is protected.
const DefaultTTL = 30 * time.Second

// Ledger is a time-bounded set of note ids. It is safe for concurrent use.
type Ledger struct {
	ttl     time.Duration
	entries *cache.Cache
}

// New creates a ledger whose entries expire after ttl (DefaultTTL if zero).
func New(ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	// No janitor: expiry is checked on read and swept on Admit.
	return &Ledger{
		ttl:     ttl,
		entries: cache.New(ttl, 0),
	}
}

// TTL returns the protection window.
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Admit protects id for one TTL, restarting the window if already present.
func (l *Ledger) Admit(id int64) {
	if id == 0 {
		return
	}
	l.entries.DeleteExpired()
	l.entries.Set(key(id), time.Now(), cache.DefaultExpiration)
}

// IsAdmitted reports whether id is still protected.
func (l *Ledger) IsAdmitted(id int64) bool {
	_, ok := l.entries.Get(key(id))
	return ok
}

// Release drops id before its expiry, e.g. once a fresh list response
// contains it.
func (l *Ledger) Release(id int64) {
	l.entries.Delete(key(id))
}

// IDs returns the unexpired ids in ascending order.
func (l *Ledger) IDs() []int64 {
	items := l.entries.Items()
	ids := make([]int64, 0, len(items))
	for k := range items {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of unexpired entries.
func (l *Ledger) Len() int {
	return len(l.entries.Items())
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}
