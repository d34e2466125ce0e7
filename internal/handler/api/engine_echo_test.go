package api

import (
	"testing"
	"time"

	"TickFuse/internal/domain/models"
	"TickFuse/pkg/config"

	"github.com/shopspring/decimal"
)

func baseParams(t *testing.T) *config.Params {
	t.Helper()
	p := &config.Params{}
	if err := p.ApplyDefaults(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	return p
}

func TestApplyTunePartialUpdate(t *testing.T) {
	p := baseParams(t)
	applyTune(p, &models.TuneRequest{
		StalenessMs:      5000,
		HysteresisCycles: 4,
	})

	if p.Staleness != 5*time.Second {
		t.Fatalf("staleness %v", p.Staleness)
	}
	if p.HysteresisCycles != 4 {
		t.Fatalf("hysteresis %d", p.HysteresisCycles)
	}
	// untouched fields keep their values
	if p.RecoveryCycles != 4 || p.EMAFastPeriod != 9 {
		t.Fatalf("unset fields must not change: %+v", p)
	}
}

func TestApplyTuneResolutionWeights(t *testing.T) {
	p := baseParams(t)
	applyTune(p, &models.TuneRequest{
		ResolutionWeights: []float64{0.2, 0.2, 0.2, 0.2, 0.2},
	})
	for res, w := range p.ResolutionWeights {
		if w != 0.2 {
			t.Fatalf("%s weight %v", res, w)
		}
	}

	// wrong arity is ignored rather than partially applied
	applyTune(p, &models.TuneRequest{ResolutionWeights: []float64{1, 2}})
	if p.ResolutionWeights["1m"] != 0.2 {
		t.Fatalf("short weight vector must be ignored")
	}
}

func TestMergeBarsPrefersMemory(t *testing.T) {
	base := time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC)
	bar := func(min int, close float64) models.Bar {
		return models.Bar{
			Resolution: "1m",
			OpenTime:   base.Add(time.Duration(min) * time.Minute),
			Close:      decimal.NewFromFloat(close),
		}
	}

	stored := []models.Bar{bar(0, 1), bar(1, 2), bar(2, 3)}
	mem := []models.Bar{bar(2, 30), bar(3, 40)}

	out := mergeBars(stored, mem)
	if len(out) != 4 {
		t.Fatalf("expected 4 merged bars, got %d", len(out))
	}
	// the overlapping window comes from memory
	if !out[2].Close.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("overlap must prefer the in-memory bar, got %s", out[2].Close)
	}
	for i := 1; i < len(out); i++ {
		if !out[i].OpenTime.After(out[i-1].OpenTime) {
			t.Fatalf("merged bars must stay ordered")
		}
	}
}
