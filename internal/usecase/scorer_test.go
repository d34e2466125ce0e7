package usecase

import (
	"math"
	"testing"
	"time"

	"TickFuse/internal/domain/models"
	"TickFuse/pkg/config"
)

func bullishIndicators() map[string]models.IndicatorSet {
	out := make(map[string]models.IndicatorSet)
	for _, res := range []string{"1m", "5m", "15m", "60m", "4h"} {
		out[res] = models.IndicatorSet{
			Resolution:       res,
			EMAFast:          20010,
			EMASlow:          20000,
			OpeningRangeHigh: 20020,
			OpeningRangeLow:  19980,
			OpeningRangeSet:  true,
			Seeded:           true,
		}
	}
	return out
}

func flatIndicators() map[string]models.IndicatorSet {
	out := make(map[string]models.IndicatorSet)
	for _, res := range []string{"1m", "5m", "15m", "60m", "4h"} {
		out[res] = models.IndicatorSet{
			Resolution: res,
			EMAFast:    20000,
			EMASlow:    20000,
			Seeded:     true,
		}
	}
	return out
}

func TestScorerAllBullishRules(t *testing.T) {
	store := newTestStore(t, func(p *config.Params) {
		p.HysteresisCycles = 1
	})
	sc := NewScorer(store, nopMetrics{}, nil)
	now := time.Now()

	// price above fast EMA and above the opening range high fires all three
	score, tr := sc.Evaluate(now, bullishIndicators(), 20050)
	if score.TotalScore <= 0 {
		t.Fatalf("expected positive score, got %v", score.TotalScore)
	}
	if tr == nil {
		t.Fatalf("expected immediate transition with hysteresis of one")
	}
	if tr.From != models.LabelNeutral || tr.To != models.LabelBullish {
		t.Fatalf("unexpected transition %s -> %s", tr.From, tr.To)
	}
	if score.Label != models.LabelBullish {
		t.Fatalf("score label %s", score.Label)
	}
	if score.ConfidencePct <= 0 || score.ConfidencePct > 100 {
		t.Fatalf("confidence out of range: %v", score.ConfidencePct)
	}
	if len(score.Factors) == 0 {
		t.Fatalf("fired rules must be reported as factors")
	}
}

func TestScorerNeutralOnFlat(t *testing.T) {
	store := newTestStore(t, nil)
	sc := NewScorer(store, nopMetrics{}, nil)

	score, tr := sc.Evaluate(time.Now(), flatIndicators(), 20000)
	if tr != nil {
		t.Fatalf("no transition expected")
	}
	if score.Label != models.LabelNeutral {
		t.Fatalf("expected neutral, got %s", score.Label)
	}
	if score.TotalScore != 0 {
		t.Fatalf("expected zero score, got %v", score.TotalScore)
	}
}

func TestScorerScoreBounded(t *testing.T) {
	store := newTestStore(t, func(p *config.Params) {
		p.HysteresisCycles = 1
	})
	sc := NewScorer(store, nopMetrics{}, nil)

	score, _ := sc.Evaluate(time.Now(), bullishIndicators(), 25000)
	if score.TotalScore < -1 || score.TotalScore > 1 {
		t.Fatalf("total score must stay in [-1,1], got %v", score.TotalScore)
	}
}

func TestScorerHysteresisHoldsLabel(t *testing.T) {
	store := newTestStore(t, func(p *config.Params) {
		p.HysteresisCycles = 3
	})
	sc := NewScorer(store, nopMetrics{}, nil)
	now := time.Now()

	// two bullish evaluations are not enough
	for i := 0; i < 2; i++ {
		_, tr := sc.Evaluate(now, bullishIndicators(), 20050)
		if tr != nil {
			t.Fatalf("transition before hysteresis satisfied")
		}
		if sc.ActiveLabel() != models.LabelNeutral {
			t.Fatalf("label must hold until accepted")
		}
	}

	// the third consecutive one is accepted
	_, tr := sc.Evaluate(now, bullishIndicators(), 20050)
	if tr == nil {
		t.Fatalf("expected transition on third consecutive evaluation")
	}
	if sc.ActiveLabel() != models.LabelBullish {
		t.Fatalf("expected bullish after acceptance")
	}
}

func TestScorerFlickerResetsPending(t *testing.T) {
	store := newTestStore(t, func(p *config.Params) {
		p.HysteresisCycles = 3
	})
	sc := NewScorer(store, nopMetrics{}, nil)
	now := time.Now()

	sc.Evaluate(now, bullishIndicators(), 20050)
	sc.Evaluate(now, bullishIndicators(), 20050)
	// a neutral evaluation resets the pending streak
	sc.Evaluate(now, flatIndicators(), 20000)
	sc.Evaluate(now, bullishIndicators(), 20050)
	_, tr := sc.Evaluate(now, bullishIndicators(), 20050)
	if tr != nil {
		t.Fatalf("streak must restart after a flicker")
	}
	_, tr = sc.Evaluate(now, bullishIndicators(), 20050)
	if tr == nil {
		t.Fatalf("expected transition once streak rebuilt")
	}
}

func TestScorerWeightsNormalized(t *testing.T) {
	store := newTestStore(t, func(p *config.Params) {
		p.HysteresisCycles = 1
	})
	sc := NewScorer(store, nopMetrics{}, nil)

	// every resolution maxed (all three rules bullish) scores the clamped
	// per-resolution net of 1.0 times its normalized weight, totalling 1
	inds := bullishIndicators()
	score, _ := sc.Evaluate(time.Now(), inds, 20050)

	sum := 0.0
	for _, c := range score.Contributions {
		sum += c
	}
	weightSum := 0.0
	for _, w := range config.DefaultResolutionWeights() {
		weightSum += w
	}
	if math.Abs(score.TotalScore-sum/weightSum) > 1e-9 {
		t.Fatalf("total %v must equal normalized contribution sum %v", score.TotalScore, sum/weightSum)
	}
	if math.Abs(score.TotalScore-1) > 1e-9 {
		t.Fatalf("fully bullish confluence must score 1, got %v", score.TotalScore)
	}
}
