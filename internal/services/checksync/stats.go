package checksync

import (
	"sync"

	"github.com/NordCoder/checksync/internal/domain/check"
)

// statsCache holds aggregates keyed by owner until the next confirmed change or delivery.
type statsCache struct {
	mu sync.Mutex
	m  map[string]check.Stats
}

func newStatsCache() *statsCache {
	return &statsCache{m: map[string]check.Stats{}}
}

func (c *statsCache) get(owner string) (check.Stats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.m[owner]
	return st, ok
}

func (c *statsCache) set(owner string, st check.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[owner] = st
}

func (c *statsCache) invalidate(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, owner)
}
