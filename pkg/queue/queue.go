package queue

import (
	"context"
	"time"
)

// Publisher pushes typed messages onto a queue. The logger's collector
// ships aggregated log batches through this interface.
type Publisher interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Message is the wire envelope for a queued payload.
type Message struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}
