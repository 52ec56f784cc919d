// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package memory

import (
	"context"
	"sync"
	"time"

	errs "github.com/truecivic/parliament-service/pkg/errors"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is the in-memory TTL cache used in development mode and as the
// default when no shared cache is configured.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time

	janitorOnce sync.Once
}

// NewCache creates an empty cache. Expired entries read as misses and are
// removed by a ticker janitor.
func NewCache() *Cache {
	c := &Cache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
	c.janitorOnce.Do(func() {
		go c.janitor()
	})
	return c
}

func (c *Cache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := c.now()
		c.mu.Lock()
		for key, entry := range c.entries {
			if entry.expiresAt.Before(now) {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
	}
}

// Get returns the stored bytes, or NotFound when absent or expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.expiresAt.Before(c.now()) {
		return nil, errs.NewNotFound("cache miss: " + key)
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set stores value under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	c.entries[key] = cacheEntry{value: stored, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Delete removes the key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// IsReady implements port.ReadinessChecker.
func (c *Cache) IsReady(ctx context.Context) error {
	return nil
}
