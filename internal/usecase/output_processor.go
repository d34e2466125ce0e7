package usecase

import (
	"context"
	"fmt"
	"time"

	"TickFuse/internal/domain/models"
	drepo "TickFuse/internal/domain/repository"
)

// OutputProcessor routes engine outputs to the configured backend. With
// backend "none" everything is a no-op; the engine itself stays in memory.
type OutputProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
}

func NewOutputProcessor(pub drepo.Publisher, store drepo.Storage, metrics drepo.Metrics, backend string) *OutputProcessor {
	return &OutputProcessor{pub: pub, store: store, metrics: metrics, backend: backend}
}

// ProcessTick routes one canonical tick.
func (p *OutputProcessor) ProcessTick(ctx context.Context, t *models.CanonicalTick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}
	return p.route(ctx, "tick", func() error {
		switch p.backend {
		case "kafka":
			return p.pub.PublishTick(ctx, t)
		case "clickhouse":
			return p.store.StoreTick(ctx, t)
		}
		return nil
	})
}

// ProcessBar routes one sealed bar.
func (p *OutputProcessor) ProcessBar(ctx context.Context, b *models.Bar) error {
	if b == nil {
		return fmt.Errorf("bar is nil")
	}
	return p.route(ctx, "bar", func() error {
		switch p.backend {
		case "kafka":
			return p.pub.PublishBar(ctx, b)
		case "clickhouse":
			return p.store.StoreBar(ctx, b)
		}
		return nil
	})
}

// ProcessTransition routes one accepted signal transition.
func (p *OutputProcessor) ProcessTransition(ctx context.Context, tr *models.SignalTransition) error {
	if tr == nil {
		return fmt.Errorf("transition is nil")
	}
	return p.route(ctx, "transition", func() error {
		switch p.backend {
		case "kafka":
			return p.pub.PublishTransition(ctx, tr)
		case "clickhouse":
			return p.store.StoreTransition(ctx, tr)
		}
		return nil
	})
}

func (p *OutputProcessor) route(ctx context.Context, kind string, fn func() error) error {
	switch p.backend {
	case "kafka", "clickhouse", "none", "":
	default:
		return fmt.Errorf("unknown backend: %s", p.backend)
	}

	start := time.Now()
	if err := fn(); err != nil {
		p.metrics.RecordError("process_" + kind)
		return fmt.Errorf("process %s: %w", kind, err)
	}
	p.metrics.RecordLatency("process_"+kind, time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *OutputProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
