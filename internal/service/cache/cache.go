package cache

import "time"

// BytesCache stores raw response bodies with a TTL. The bars endpoint
// uses it to serve hot history queries without re-marshaling.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
