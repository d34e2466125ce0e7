package cache

import (
	"sync"
	"time"
)

const maxEntries = 4096

type entry struct {
	value   []byte
	expires time.Time
}

// TTLCache is the in-process fallback when no Redis is configured.
// Expired entries are dropped on read; a full cache evicts whatever
// expired entries it finds first, then an arbitrary one.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewTTLCache() *TTLCache {
	return &TTLCache{entries: make(map[string]entry)}
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	if len(c.entries) >= maxEntries {
		c.evictLocked()
	}
	c.entries[key] = entry{value: value, expires: expires}
	c.mu.Unlock()
	return nil
}

// evictLocked prefers expired entries, falling back to one arbitrary
// victim. Caller holds c.mu.
func (c *TTLCache) evictLocked() {
	now := time.Now()
	for key, e := range c.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) < maxEntries {
		return
	}
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

var _ BytesCache = (*TTLCache)(nil)
