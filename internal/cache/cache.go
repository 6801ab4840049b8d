// SPDX-License-Identifier: MIT

// Package cache stores small string values with a TTL, either in process
// memory or in Redis. camsync uses it to remember probed recording
// durations across catalog rebuilds and restarts.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Stats() Stats
	Close() error
}

// Stats holds cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

type entry struct {
	value      string
	expiration time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiration.IsZero() && now.After(e.expiration)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	stats   Stats
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewMemory creates an in-memory cache. A positive cleanupInterval starts a
// janitor goroutine that Close stops.
func NewMemory(cleanupInterval time.Duration) Cache {
	return newMemory(cleanupInterval, time.Now)
}

func newMemory(cleanupInterval time.Duration, now func() time.Time) *memoryCache {
	c := &memoryCache{
		entries: make(map[string]*entry),
		now:     now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	} else {
		close(c.done)
	}
	return c
}

func (c *memoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		c.stats.Misses++
		return "", false
	}
	c.stats.Hits++
	return e.value, true
}

// Set with ttl <= 0 never expires.
func (c *memoryCache) Set(_ context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{value: value}
	if ttl > 0 {
		e.expiration = c.now().Add(ttl)
	}
	c.entries[key] = e
	c.stats.Sets++
}

func (c *memoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.CurrentSize = len(c.entries)
	return s
}

func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
	return nil
}

func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			n++
		}
	}
	c.stats.Evictions += int64(n)
	return n
}

func (c *memoryCache) janitor(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}
