package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TickFuse/internal/domain/models"
	drepo "TickFuse/internal/domain/repository"
)

// Sink receives validated observations downstream of the pipeline.
type Sink interface {
	Enqueue(ctx context.Context, o *models.Observation) error
}

// FeedPipeline sits between the polling loops and the reconciler's intake
// channels. It validates, throttles per source, and buffers observations
// when the downstream queue is momentarily full.
type FeedPipeline struct {
	sink     Sink
	metrics  drepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Observation
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[models.Source]time.Time
}

type PipelineOption func(*FeedPipeline)

// WithMaxRPS sets the max observations per second per source.
func WithMaxRPS(n int) PipelineOption {
	return func(p *FeedPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is full.
func WithBufferSize(n int) PipelineOption {
	return func(p *FeedPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewFeedPipeline creates a new pipeline in front of sink.
func NewFeedPipeline(sink Sink, metrics drepo.Metrics, opts ...PipelineOption) *FeedPipeline {
	p := &FeedPipeline{
		sink:     sink,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		bufCh:    make(chan *models.Observation, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[models.Source]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.Observation, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered observations.
func (p *FeedPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case o := <-p.bufCh:
				if o == nil {
					continue
				}
				if err := p.sink.Enqueue(ctx, o); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- o:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *FeedPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards an observation downstream,
// buffering when the queue is full.
func (p *FeedPipeline) Process(ctx context.Context, o *models.Observation) error {
	if err := validateObservation(o); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(o.Source, time.Now()) {
		// throttled; record and drop silently
		p.metrics.RecordReject(string(o.Source), "throttle")
		return nil
	}

	if err := p.sink.Enqueue(ctx, o); err != nil {
		p.metrics.RecordError("pipeline_enqueue")
		select {
		case p.bufCh <- o:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

func validateObservation(o *models.Observation) error {
	if o == nil {
		return fmt.Errorf("observation nil")
	}
	if o.Source != models.SourcePrimary && o.Source != models.SourceFallback {
		return fmt.Errorf("unknown source %q", o.Source)
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("timestamp zero")
	}
	if o.Price.IsNegative() || o.Price.IsZero() {
		return fmt.Errorf("non-positive price")
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("confidence out of range")
	}
	return nil
}

func (p *FeedPipeline) allow(src models.Source, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[src]
	if last.IsZero() {
		p.lastSeen[src] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[src] = now
	return true
}
