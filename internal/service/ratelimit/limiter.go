package ratelimit

import (
	"sync"
	"time"
)

// idleEvict is how long a bucket may sit untouched before a later call
// prunes it. Keys are client addresses, so the map would otherwise
// grow with every visitor.
const idleEvict = 10 * time.Minute

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a per-key token bucket.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket), lastPrune: time.Now()}
}

// Allow consumes one token for key, creating the bucket full on first
// sight. Returns false when the bucket is empty.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) > idleEvict {
		l.pruneLocked(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (l *Limiter) pruneLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.last) > idleEvict {
			delete(l.buckets, key)
		}
	}
	l.lastPrune = now
}
