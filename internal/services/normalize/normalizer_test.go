package normalize

import (
	"errors"
	"testing"
	"time"

	"TickFuse/internal/domain/models"
	"TickFuse/pkg/config"

	"github.com/shopspring/decimal"
)

func newStore(t *testing.T, mutate func(*config.Params)) *config.Store {
	t.Helper()
	p := &config.Params{}
	if err := p.ApplyDefaults(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if mutate != nil {
		mutate(p)
	}
	s, err := config.NewStore(p)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return s
}

func TestParsePrimaryCleanRead(t *testing.T) {
	n := New(newStore(t, nil))
	ts := time.Now()

	obs, err := n.ParsePrimary("20,123.25", ts, decimal.Decimal{}, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !obs.Price.Equal(decimal.NewFromFloat(20123.25)) {
		t.Fatalf("price %s", obs.Price)
	}
	if obs.Source != models.SourcePrimary || !obs.Valid {
		t.Fatalf("observation flags wrong: %+v", obs)
	}
	if obs.Confidence <= 0 || obs.Confidence > 1 {
		t.Fatalf("confidence %v", obs.Confidence)
	}
}

func TestParsePrimaryMedianOfLadder(t *testing.T) {
	n := New(newStore(t, nil))

	// a DOM column read: several price rows, take the median
	obs, err := n.ParsePrimary("20101.25 20101.00 20100.75 20100.50 20100.25", time.Now(), decimal.Decimal{}, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !obs.Price.Equal(decimal.NewFromFloat(20100.75)) {
		t.Fatalf("expected median row, got %s", obs.Price)
	}
}

func TestParsePrimarySnapsToTick(t *testing.T) {
	n := New(newStore(t, nil))

	// 20100.30 misread snaps to the nearest quarter (20100.25)
	obs, err := n.ParsePrimary("20100.30", time.Now(), decimal.Decimal{}, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !obs.Price.Equal(decimal.NewFromFloat(20100.25)) {
		t.Fatalf("expected tick snap, got %s", obs.Price)
	}
}

func TestParsePrimaryIgnoresOutOfBandTokens(t *testing.T) {
	n := New(newStore(t, nil))

	// sizes and clutter fall outside the min/max price band
	obs, err := n.ParsePrimary("12 20100.25 3 150", time.Now(), decimal.Decimal{}, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !obs.Price.Equal(decimal.NewFromFloat(20100.25)) {
		t.Fatalf("price %s", obs.Price)
	}
	if obs.Confidence >= 1 {
		t.Fatalf("noisy read must lower confidence, got %v", obs.Confidence)
	}
}

func TestParsePrimaryNoNumbers(t *testing.T) {
	n := New(newStore(t, nil))

	_, err := n.ParsePrimary("---- connecting ----", time.Now(), decimal.Decimal{}, false)
	if !errors.Is(err, models.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestParsePrimaryRejectsDeviation(t *testing.T) {
	n := New(newStore(t, func(p *config.Params) {
		p.MaxDeviationPct = 0.5
	}))
	last := decimal.NewFromInt(20000)

	// a 1% jump in one cycle is a misread, not a move
	_, err := n.ParsePrimary("20200.00", time.Now(), last, true)
	if !errors.Is(err, models.ErrParse) {
		t.Fatalf("expected deviation rejection, got %v", err)
	}

	// inside the band passes
	obs, err := n.ParsePrimary("20050.00", time.Now(), last, true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !obs.Price.Equal(decimal.NewFromInt(20050)) {
		t.Fatalf("price %s", obs.Price)
	}
}

func TestParseFallback(t *testing.T) {
	n := New(newStore(t, nil))

	obs, err := n.ParseFallback(20123.5, time.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obs.Source != models.SourceFallback {
		t.Fatalf("source %s", obs.Source)
	}
	if obs.Confidence != 0.9 {
		t.Fatalf("fallback confidence %v", obs.Confidence)
	}

	for _, bad := range []float64{0, -1} {
		if _, err := n.ParseFallback(bad, time.Now()); !errors.Is(err, models.ErrParse) {
			t.Fatalf("price %v: expected ErrParse, got %v", bad, err)
		}
	}
}
