package repository

import (
	"context"

	"TickFuse/internal/domain/models"
	"TickFuse/internal/domain/repository"
	pkgkafka "TickFuse/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka. Ticks, bars and
// transitions go to one topic, discriminated by a "kind" field, keyed
// by symbol so a partition preserves per-symbol ordering.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	symbol   string
}

// NewKafkaPublisher creates a Kafka publisher for a symbol.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic, symbol string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic, symbol: symbol}
}

func (p *KafkaPublisher) PublishTick(ctx context.Context, t *models.CanonicalTick) error {
	return p.producer.Publish(ctx, p.topic, []byte(p.symbol), map[string]interface{}{
		"kind":       "tick",
		"symbol":     p.symbol,
		"ts":         t.Timestamp.UnixMilli(),
		"price":      t.Price.String(),
		"source":     string(t.ActiveSource),
		"confidence": t.SourceConfidence,
		"stale":      t.Stale,
	})
}

func (p *KafkaPublisher) PublishBar(ctx context.Context, b *models.Bar) error {
	return p.producer.Publish(ctx, p.topic, []byte(p.symbol), map[string]interface{}{
		"kind":       "bar",
		"symbol":     p.symbol,
		"resolution": b.Resolution,
		"open_time":  b.OpenTime.UnixMilli(),
		"o":          b.Open.String(),
		"h":          b.High.String(),
		"l":          b.Low.String(),
		"c":          b.Close.String(),
		"ticks":      b.TickCount,
	})
}

func (p *KafkaPublisher) PublishTransition(ctx context.Context, tr *models.SignalTransition) error {
	return p.producer.Publish(ctx, p.topic, []byte(p.symbol), map[string]interface{}{
		"kind":   "transition",
		"symbol": p.symbol,
		"ts":     tr.Timestamp.UnixMilli(),
		"from":   string(tr.From),
		"to":     string(tr.To),
		"score":  tr.Score,
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
