package usecase

import (
	"context"
	"testing"
	"time"

	"TickFuse/internal/domain/models"
)

type memStorage struct {
	ticks       []models.CanonicalTick
	bars        []models.Bar
	transitions []models.SignalTransition
}

func (m *memStorage) Init(context.Context) error   { return nil }
func (m *memStorage) Health(context.Context) error { return nil }
func (m *memStorage) Close() error                 { return nil }

func (m *memStorage) StoreTick(_ context.Context, t *models.CanonicalTick) error {
	m.ticks = append(m.ticks, *t)
	return nil
}

func (m *memStorage) StoreBar(_ context.Context, b *models.Bar) error {
	m.bars = append(m.bars, *b)
	return nil
}

func (m *memStorage) StoreTransition(_ context.Context, tr *models.SignalTransition) error {
	m.transitions = append(m.transitions, *tr)
	return nil
}

func TestMirrorHandlerTick(t *testing.T) {
	store := &memStorage{}
	h := NewKafkaMirrorHandler("tickfuse.fused", store, nopMetrics{})

	msg := []byte(`{"kind":"tick","symbol":"NQ=F","ts":1741011000000,"price":"20100.25","source":"primary","confidence":0.95,"stale":false}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.ticks) != 1 {
		t.Fatalf("expected one stored tick")
	}
	got := store.ticks[0]
	if got.Price.String() != "20100.25" {
		t.Fatalf("price %s", got.Price)
	}
	if got.ActiveSource != models.SourcePrimary {
		t.Fatalf("source %s", got.ActiveSource)
	}
	if !got.Timestamp.Equal(time.UnixMilli(1741011000000)) {
		t.Fatalf("timestamp %v", got.Timestamp)
	}
}

func TestMirrorHandlerBar(t *testing.T) {
	store := &memStorage{}
	h := NewKafkaMirrorHandler("tickfuse.fused", store, nopMetrics{})

	msg := []byte(`{"kind":"bar","symbol":"NQ=F","resolution":"5m","open_time":1741011000000,"o":"20100","h":"20110.5","l":"20090.25","c":"20105","ticks":37}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.bars) != 1 {
		t.Fatalf("expected one stored bar")
	}
	b := store.bars[0]
	if b.Resolution != "5m" || b.TickCount != 37 {
		t.Fatalf("bar fields wrong: %+v", b)
	}
	if b.High.String() != "20110.5" || b.Low.String() != "20090.25" {
		t.Fatalf("bar range wrong: %+v", b)
	}
}

func TestMirrorHandlerTransition(t *testing.T) {
	store := &memStorage{}
	h := NewKafkaMirrorHandler("tickfuse.fused", store, nopMetrics{})

	msg := []byte(`{"kind":"transition","symbol":"NQ=F","ts":1741011000000,"from":"neutral","to":"bullish","score":0.41}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.transitions) != 1 {
		t.Fatalf("expected one stored transition")
	}
	tr := store.transitions[0]
	if tr.From != models.LabelNeutral || tr.To != models.LabelBullish {
		t.Fatalf("transition %s -> %s", tr.From, tr.To)
	}
}

func TestMirrorHandlerRejectsGarbage(t *testing.T) {
	store := &memStorage{}
	h := NewKafkaMirrorHandler("tickfuse.fused", store, nopMetrics{})

	if err := h.Handle(context.Background(), []byte(`{"kind":"unknown"}`)); err == nil {
		t.Fatalf("unknown kind must error")
	}
	if err := h.Handle(context.Background(), []byte(`not json`)); err == nil {
		t.Fatalf("malformed payload must error")
	}
	if len(store.ticks)+len(store.bars)+len(store.transitions) != 0 {
		t.Fatalf("nothing must be stored on rejection")
	}
}
