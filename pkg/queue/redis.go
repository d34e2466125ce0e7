package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"TickFuse/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const defaultMaxLen = 10000

// RedisQueue is a publish-only queue backed by a Redis list. Each
// publish pushes a JSON envelope and trims the list to a bounded
// length so an absent consumer cannot grow Redis without limit.
type RedisQueue struct {
	logger    *logger.Logger
	client    *redis.Client
	keyPrefix string
	maxLen    int64

	mu     sync.Mutex
	closed bool
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets the key prefix for queue keys.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// WithMaxLen bounds the backing list length.
func WithMaxLen(n int64) RedisQueueOption {
	return func(r *RedisQueue) {
		if n > 0 {
			r.maxLen = n
		}
	}
}

// NewRedisPublisher creates a publisher on an existing Redis client.
// The client's lifecycle belongs to the caller.
func NewRedisPublisher(lgr *logger.Logger, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	r := &RedisQueue{
		logger:    lgr,
		client:    client,
		keyPrefix: "tickfuse:queue",
		maxLen:    defaultMaxLen,
	}
	for _, opt := range opts {
		opt(r)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		lgr.Warn("redis publisher: ping failed", logger.Error(err))
	} else {
		lgr.Info("redis publisher ready", logger.String("addr", client.Options().Addr))
	}
	return r
}

// PublishMessage pushes one envelope onto the list keyed by msgType.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return fmt.Errorf("publisher closed")
	}

	msg := Message{
		ID:        strconv.FormatInt(time.Now().UnixNano(), 10),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := r.queueKey(msgType)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, r.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	return nil
}

// Stop marks the publisher closed. Pending Redis writes are the
// client's concern; the shared client is closed elsewhere.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.logger.Info("redis publisher stopped")
	}
	return nil
}

func (r *RedisQueue) queueKey(msgType string) string {
	return r.keyPrefix + ":" + msgType
}

var _ Publisher = (*RedisQueue)(nil)
