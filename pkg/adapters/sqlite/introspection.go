package sqlite

import (
	"context"

	"github.com/aretw0/introspection"
)

// CacheState exposes internal state for observability.
type CacheState struct {
	Notes int64  `json:"notes"`
	Error string `json:"error,omitempty"`
}

// State implements introspection.Introspectable.
func (c *Cache) State() any {
	n, err := c.Count(context.Background())
	s := CacheState{Notes: n}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// ComponentType implements introspection.Component.
func (c *Cache) ComponentType() string {
	return "sqlite-cache"
}

var (
	_ introspection.Introspectable = (*Cache)(nil)
	_ introspection.Component      = (*Cache)(nil)
)
