package service

import (
	"sync"
	"time"

	"github.com/solar-synergy/dockrelay/pkg/dock"
)

// dedupeCache remembers the result of writes that carried a request id.
type dedupeCache struct {
	window time.Duration

	mu      sync.Mutex
	entries map[string]dedupeEntry
}

type dedupeEntry struct {
	cmd     *dock.Command
	expires time.Time
}

func newDedupeCache(window time.Duration) *dedupeCache {
	return &dedupeCache{window: window, entries: make(map[string]dedupeEntry)}
}

func (c *dedupeCache) get(key string, now time.Time) (*dock.Command, bool) {
	if c.window <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !now.Before(e.expires) {
		return nil, false
	}
	return e.cmd.Clone(), true
}

func (c *dedupeCache) put(key string, cmd *dock.Command, now time.Time) {
	if c.window <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = dedupeEntry{cmd: cmd.Clone(), expires: now.Add(c.window)}
}

func (c *dedupeCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
