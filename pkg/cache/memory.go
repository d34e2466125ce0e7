package cache

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"
)

const memoryDefaultTTL = 7 * 24 * time.Hour

type memoryEntry struct {
	value      interface{}
	expireAt   time.Time
	lastAccess time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.After(e.expireAt)
}

// MemoryCache implements Service in process memory with LRU eviction
// at MaxSize and a background sweep for expired entries.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	maxSize int
	janitor *time.Ticker
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		maxSize: cfg.MaxSize,
		janitor: time.NewTicker(cfg.CleanupInterval),
	}
	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	now := time.Now()
	if expiration <= 0 {
		expiration = memoryDefaultTTL
	}
	if b, ok := value.([]byte); ok {
		value = append([]byte(nil), b...)
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if len(mc.entries) >= mc.maxSize {
		mc.evictOldest()
	}
	mc.entries[key] = &memoryEntry{value: value, expireAt: now.Add(expiration), lastAccess: now}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	now := time.Now()

	mc.mu.Lock()
	entry, ok := mc.entries[key]
	if !ok || entry.expired(now) {
		if ok {
			delete(mc.entries, key)
		}
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	entry.lastAccess = now
	value := entry.value
	mc.mu.Unlock()

	return assign(dest, value)
}

// assign copies a cached value into dest, going through JSON for
// anything that is not a plain string or byte slice.
func assign(dest, value interface{}) error {
	switch d := dest.(type) {
	case *string:
		if s, ok := value.(string); ok {
			*d = s
			return nil
		}
	case *[]byte:
		if b, ok := value.([]byte); ok {
			*d = append([]byte(nil), b...)
			return nil
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		delete(mc.entries, key)
	}
	return nil
}

// DeleteByPattern removes entries whose key matches a glob pattern.
func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for key := range mc.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(mc.entries, key)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	now := time.Now()
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		if entry, ok := mc.entries[key]; ok && !entry.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

// evictOldest drops the least recently accessed entry. Caller holds
// mc.mu.
func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestAccess time.Time
	for key, entry := range mc.entries {
		if oldestKey == "" || entry.lastAccess.Before(oldestAccess) {
			oldestKey = key
			oldestAccess = entry.lastAccess
		}
	}
	if oldestKey != "" {
		delete(mc.entries, oldestKey)
	}
}

func (mc *MemoryCache) sweep() {
	for range mc.janitor.C {
		now := time.Now()
		mc.mu.Lock()
		for key, entry := range mc.entries {
			if entry.expired(now) {
				delete(mc.entries, key)
			}
		}
		mc.mu.Unlock()
	}
}

// Close stops the sweep ticker.
func (mc *MemoryCache) Close() error {
	mc.janitor.Stop()
	return nil
}

var _ Service = (*MemoryCache)(nil)
