package cache

import (
	"context"
	"errors"
	"time"

	pkgcache "TickFuse/pkg/cache"
)

// LayeredBytes adapts the layered memory+Redis cache to BytesCache.
type LayeredBytes struct {
	svc pkgcache.Service
}

func NewLayeredBytes(svc pkgcache.Service) *LayeredBytes {
	return &LayeredBytes{svc: svc}
}

func (l *LayeredBytes) GetBytes(key string) ([]byte, bool, error) {
	var b []byte
	if err := l.svc.Get(context.Background(), key, &b); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (l *LayeredBytes) SetBytes(key string, value []byte, ttl time.Duration) error {
	return l.svc.Set(context.Background(), key, value, ttl)
}

var _ BytesCache = (*LayeredBytes)(nil)
