package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"TickFuse/internal/domain/models"

	"github.com/shopspring/decimal"
)

type captureSink struct {
	mu   sync.Mutex
	got  []*models.Observation
	fail bool
}

func (s *captureSink) Enqueue(_ context.Context, o *models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return context.DeadlineExceeded
	}
	s.got = append(s.got, o)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

type countMetrics struct {
	mu      sync.Mutex
	rejects map[string]int
	errors  map[string]int
}

func newCountMetrics() *countMetrics {
	return &countMetrics{rejects: make(map[string]int), errors: make(map[string]int)}
}

func (m *countMetrics) RecordObservation(string)  {}
func (m *countMetrics) RecordActiveSource(string) {}
func (m *countMetrics) RecordReject(_, kind string) {
	m.mu.Lock()
	m.rejects[kind]++
	m.mu.Unlock()
}
func (m *countMetrics) RecordLastPrice(float64)         {}
func (m *countMetrics) RecordBarSealed(string)          {}
func (m *countMetrics) RecordTransition(string, string) {}
func (m *countMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}
func (m *countMetrics) RecordLatency(string, float64) {}

func obs(src models.Source, price float64) *models.Observation {
	return &models.Observation{
		Source:     src,
		Timestamp:  time.Now(),
		Price:      decimal.NewFromFloat(price),
		Confidence: 0.9,
		Valid:      true,
	}
}

func TestPipelineForwardsValidObservation(t *testing.T) {
	sink := &captureSink{}
	p := NewFeedPipeline(sink, newCountMetrics())

	if err := p.Process(context.Background(), obs(models.SourcePrimary, 20000)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if sink.count() != 1 {
		t.Fatalf("expected one forwarded observation, got %d", sink.count())
	}
}

func TestPipelineRejectsInvalid(t *testing.T) {
	sink := &captureSink{}
	p := NewFeedPipeline(sink, newCountMetrics())

	bad := obs(models.SourcePrimary, 20000)
	bad.Confidence = 1.5
	if err := p.Process(context.Background(), bad); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := p.Process(context.Background(), nil); err == nil {
		t.Fatalf("expected nil rejection")
	}
	if sink.count() != 0 {
		t.Fatalf("invalid observations must not reach the sink")
	}
}

func TestPipelineThrottlesPerSource(t *testing.T) {
	sink := &captureSink{}
	m := newCountMetrics()
	p := NewFeedPipeline(sink, m, WithMaxRPS(1))

	if err := p.Process(context.Background(), obs(models.SourcePrimary, 20000)); err != nil {
		t.Fatalf("first: %v", err)
	}
	// immediate second observation from the same source is throttled, not an error
	if err := p.Process(context.Background(), obs(models.SourcePrimary, 20001)); err != nil {
		t.Fatalf("throttled observation must drop silently: %v", err)
	}
	// a different source has its own rate limit
	if err := p.Process(context.Background(), obs(models.SourceFallback, 20002)); err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if sink.count() != 2 {
		t.Fatalf("expected two forwarded observations, got %d", sink.count())
	}
	m.mu.Lock()
	throttled := m.rejects["throttle"]
	m.mu.Unlock()
	if throttled != 1 {
		t.Fatalf("expected one throttle reject, got %d", throttled)
	}
}

func TestPipelineBuffersOnDownstreamFailure(t *testing.T) {
	sink := &captureSink{fail: true}
	m := newCountMetrics()
	p := NewFeedPipeline(sink, m, WithBufferSize(4))

	if err := p.Process(context.Background(), obs(models.SourcePrimary, 20000)); err == nil {
		t.Fatalf("expected downstream error surfaced")
	}
	m.mu.Lock()
	enqueueErrs := m.errors["pipeline_enqueue"]
	m.mu.Unlock()
	if enqueueErrs != 1 {
		t.Fatalf("expected enqueue error recorded, got %d", enqueueErrs)
	}

	// once downstream recovers, the background flusher delivers the buffered one
	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()
	p.Start(context.Background())
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("buffered observation never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
