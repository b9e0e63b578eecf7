// Package cache is a small TTL cache for read-mostly documents.
package cache

import (
	"sync"
	"time"
)

// Observer is notified on every lookup.
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
}

type entry[T any] struct {
	val T
	exp time.Time
}

// Cache holds values for a fixed TTL. A zero TTL disables caching: Get always
// misses and Set is a no-op.
type Cache[T any] struct {
	name string
	mu   sync.RWMutex
	m    map[string]entry[T]
	ttl  time.Duration
	obs  Observer
	now  func() time.Time
}

func New[T any](name string, ttl time.Duration, obs Observer) *Cache[T] {
	return &Cache[T]{name: name, m: make(map[string]entry[T]), ttl: ttl, obs: obs, now: time.Now}
}

func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	if c.ttl <= 0 {
		c.miss()
		return zero, false
	}
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.exp) {
		c.miss()
		return zero, false
	}
	if c.obs != nil {
		c.obs.CacheHit(c.name)
	}
	return e.val, true
}

func (c *Cache[T]) Set(key string, v T) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.m[key] = entry[T]{val: v, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *Cache[T]) Purge() {
	c.mu.Lock()
	c.m = make(map[string]entry[T])
	c.mu.Unlock()
}

func (c *Cache[T]) miss() {
	if c.obs != nil {
		c.obs.CacheMiss(c.name)
	}
}
