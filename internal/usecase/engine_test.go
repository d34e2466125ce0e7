package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"TickFuse/internal/domain/models"
	"TickFuse/internal/services/normalize"
	"TickFuse/pkg/config"
	applogger "TickFuse/pkg/logger"
)

type stubRecognizer struct {
	text string
	fail atomic.Bool
}

func (s *stubRecognizer) Recognize(context.Context) (string, error) {
	if s.fail.Load() {
		return "", errors.New("recognizer offline")
	}
	return s.text, nil
}

type stubQuotes struct {
	price float64
}

func (s *stubQuotes) FetchQuote(context.Context, string) (float64, error) {
	return s.price, nil
}

func newTestEngine(t *testing.T, rec *stubRecognizer, q *stubQuotes) *Engine {
	t.Helper()
	store := newTestStore(t, func(p *config.Params) {
		p.PrimaryInterval = 5 * time.Millisecond
		p.PrimaryTimeout = 50 * time.Millisecond
		p.FallbackInterval = 20 * time.Millisecond
		p.FallbackTimeout = 50 * time.Millisecond
		p.Staleness = 100 * time.Millisecond
	})
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	m := nopMetrics{}
	return NewEngine(
		store,
		normalize.New(store),
		rec,
		q,
		NewReconciler(store, m),
		NewAggregator(store, m),
		NewScorer(store, m, nil),
		NewLedger(store),
		NewOutputProcessor(nil, nil, m, "none"),
		m,
		log,
	)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestEnginePublishesSnapshot(t *testing.T) {
	rec := &stubRecognizer{text: "20100.25"}
	e := newTestEngine(t, rec, &stubQuotes{price: 20100})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	waitFor(t, 3*time.Second, func() bool { return e.Snapshot() != nil })

	snap := e.Snapshot()
	if snap.Tick.Price.String() != "20100.25" {
		t.Fatalf("canonical price %s", snap.Tick.Price)
	}
	if snap.Tick.ActiveSource != models.SourcePrimary {
		t.Fatalf("active source %s", snap.Tick.ActiveSource)
	}
	if len(snap.Indicators) != 5 {
		t.Fatalf("expected indicators for all resolutions, got %d", len(snap.Indicators))
	}
	if err := e.Err(); err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
}

func TestEngineFallbackTakesOver(t *testing.T) {
	rec := &stubRecognizer{text: "20100.25"}
	e := newTestEngine(t, rec, &stubQuotes{price: 20050})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	waitFor(t, 3*time.Second, func() bool { return e.Snapshot() != nil })

	rec.fail.Store(true)
	waitFor(t, 3*time.Second, func() bool {
		snap := e.Snapshot()
		return snap != nil && snap.Tick.ActiveSource == models.SourceFallback
	})

	snap := e.Snapshot()
	if snap.Tick.Price.String() != "20050" {
		t.Fatalf("expected fallback price, got %s", snap.Tick.Price)
	}
}

func TestEngineStartTwice(t *testing.T) {
	e := newTestEngine(t, &stubRecognizer{text: "20100.25"}, &stubQuotes{price: 20100})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()
	if err := e.Start(context.Background()); err == nil {
		t.Fatalf("second start must fail")
	}
}

func TestEngineUpdateParams(t *testing.T) {
	e := newTestEngine(t, &stubRecognizer{text: "20100.25"}, &stubQuotes{price: 20100})

	bad := e.Params().Clone()
	bad.BullishThreshold = -1
	if err := e.UpdateParams(bad); !errors.Is(err, models.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}

	good := e.Params().Clone()
	good.HysteresisCycles = 9
	if err := e.UpdateParams(good); err != nil {
		t.Fatalf("update: %v", err)
	}
	if e.Params().HysteresisCycles != 9 {
		t.Fatalf("runtime tune must take effect")
	}
}
