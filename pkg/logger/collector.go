package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated records somewhere durable.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush cadence
	CountThreshold int           // distinct records that force a flush
	Topic          string
	Publisher      Publisher
}

// AggregatedRecord is one deduplicated log line with an occurrence
// count over the batch window.
type AggregatedRecord struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates records by content hash and flushes the
// batch on a timer or when the distinct-record threshold is reached.
type LogCollector struct {
	config  *CollectionConfig
	mu      sync.Mutex
	pending map[string]*AggregatedRecord
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	ctx, cancel := context.WithCancel(context.Background())
	c := &LogCollector{
		config:  config,
		pending: make(map[string]*AggregatedRecord),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.wg.Add(1)
	go c.flushLoop()
	return c
}

func (c *LogCollector) AddRecord(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := recordKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.pending[key]; ok {
		rec.Count++
		rec.LastSeen = now
	} else {
		c.pending[key] = &AggregatedRecord{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.pending) >= c.config.CountThreshold {
		c.flushLocked()
	}
}

func recordKey(level, message string, fields map[string]interface{}, caller string) string {
	data, _ := json.Marshal(struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller})
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

func (c *LogCollector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.ctx.Done():
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
			return
		}
	}
}

// flushLocked snapshots and resets the pending map, then publishes off
// the lock. Caller holds c.mu.
func (c *LogCollector) flushLocked() {
	if len(c.pending) == 0 {
		return
	}
	batch := make([]AggregatedRecord, 0, len(c.pending))
	for _, rec := range c.pending {
		batch = append(batch, *rec)
	}
	c.pending = make(map[string]*AggregatedRecord)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
			fmt.Printf("log collector: publish failed: %v\n", err)
		}
	}()
}

func (c *LogCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
