package memory

import (
	"context"
	"sync"

	"github.com/aretw0/notesync/pkg/core"
)

// Cache is a map-backed core.Cache. It does not survive the process.
type Cache struct {
	mu    sync.Mutex
	notes map[int64]core.Note
	err   error
	puts  int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{notes: make(map[int64]core.Note)}
}

// FailWith makes every following call return err. Nil restores normal
// operation.
func (c *Cache) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Puts returns how many PutMany calls succeeded.
func (c *Cache) Puts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

// Has reports whether id is cached.
func (c *Cache) Has(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.notes[id]
	return ok
}

func (c *Cache) PutMany(ctx context.Context, notes []core.Note) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	for _, n := range notes {
		c.notes[n.ID] = n.Clone()
	}
	c.puts++
	return nil
}

func (c *Cache) GetAll(ctx context.Context) ([]core.Note, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make([]core.Note, 0, len(c.notes))
	for _, n := range c.notes {
		out = append(out, n.Clone())
	}
	return out, nil
}

func (c *Cache) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.notes, id)
	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	clear(c.notes)
	return nil
}

var _ core.Cache = (*Cache)(nil)
