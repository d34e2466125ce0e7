package usecase

import (
	"math"
	"testing"
	"time"

	"TickFuse/internal/domain/models"
	drepo "TickFuse/internal/domain/repository"
	"TickFuse/pkg/config"

	"github.com/shopspring/decimal"
)

func tick(ts time.Time, price float64) *models.CanonicalTick {
	return &models.CanonicalTick{
		Timestamp:        ts,
		Price:            decimal.NewFromFloat(price),
		ActiveSource:     models.SourcePrimary,
		SourceConfidence: 0.95,
	}
}

func TestAggregatorOpensBarPerResolution(t *testing.T) {
	store := newTestStore(t, nil)
	a := NewAggregator(store, nopMetrics{})
	ts := time.Date(2025, 3, 3, 14, 30, 10, 0, time.UTC)

	sealed, err := a.Apply(tick(ts, 20000))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(sealed) != 0 {
		t.Fatalf("first tick must not seal bars, got %d", len(sealed))
	}
	for _, res := range drepo.AllResolutions() {
		b, ok := a.OpenBar(res)
		if !ok {
			t.Fatalf("%s: expected open bar", res)
		}
		if !b.OpenTime.Equal(ts.Truncate(res.Duration())) {
			t.Fatalf("%s: open time %v not aligned", res, b.OpenTime)
		}
		if !b.Open.Equal(b.Close) || b.TickCount != 1 {
			t.Fatalf("%s: seeded bar wrong: %+v", res, b)
		}
	}
}

func TestAggregatorUpdatesOHLC(t *testing.T) {
	store := newTestStore(t, nil)
	a := NewAggregator(store, nopMetrics{})
	base := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

	prices := []float64{20000, 20010.25, 19990.5, 20005}
	for i, p := range prices {
		if _, err := a.Apply(tick(base.Add(time.Duration(i)*time.Second), p)); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	b, _ := a.OpenBar(drepo.Res1m)
	if !b.Open.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("open %s", b.Open)
	}
	if !b.High.Equal(decimal.NewFromFloat(20010.25)) {
		t.Fatalf("high %s", b.High)
	}
	if !b.Low.Equal(decimal.NewFromFloat(19990.5)) {
		t.Fatalf("low %s", b.Low)
	}
	if !b.Close.Equal(decimal.NewFromInt(20005)) {
		t.Fatalf("close %s", b.Close)
	}
	if b.TickCount != 4 {
		t.Fatalf("tick count %d", b.TickCount)
	}
}

func TestAggregatorSealsOnRollover(t *testing.T) {
	store := newTestStore(t, nil)
	a := NewAggregator(store, nopMetrics{})
	base := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

	a.Apply(tick(base, 20000))
	sealed, err := a.Apply(tick(base.Add(61*time.Second), 20004))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(sealed) != 1 {
		t.Fatalf("expected one sealed 1m bar, got %d", len(sealed))
	}
	if sealed[0].Resolution != string(drepo.Res1m) {
		t.Fatalf("sealed resolution %s", sealed[0].Resolution)
	}

	// new open bar starts at the sealed bar's close
	b, _ := a.OpenBar(drepo.Res1m)
	if !b.Open.Equal(sealed[0].Close) {
		t.Fatalf("new open %s != prior close %s", b.Open, sealed[0].Close)
	}
}

func TestAggregatorFillsSkippedWindows(t *testing.T) {
	store := newTestStore(t, nil)
	a := NewAggregator(store, nopMetrics{})
	base := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

	a.Apply(tick(base, 20000))
	// jump three 1m windows ahead
	sealed, err := a.Apply(tick(base.Add(3*time.Minute+5*time.Second), 20002))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	var oneMin []models.Bar
	for _, b := range sealed {
		if b.Resolution == string(drepo.Res1m) {
			oneMin = append(oneMin, b)
		}
	}
	if len(oneMin) != 3 {
		t.Fatalf("expected sealed bar plus two flat fillers, got %d", len(oneMin))
	}
	for _, f := range oneMin[1:] {
		if !f.Open.Equal(f.High) || !f.Open.Equal(f.Low) || !f.Open.Equal(f.Close) {
			t.Fatalf("filler bar must be flat: %+v", f)
		}
		if f.TickCount != 0 {
			t.Fatalf("filler bar carries no ticks: %+v", f)
		}
	}

	hist := a.History(drepo.Res1m)
	for i := 1; i < len(hist); i++ {
		if !hist[i].OpenTime.After(hist[i-1].OpenTime) {
			t.Fatalf("history not strictly ordered")
		}
	}
}

func TestAggregatorEMAConvergence(t *testing.T) {
	store := newTestStore(t, nil)
	a := NewAggregator(store, nopMetrics{})
	base := time.Date(2025, 3, 3, 14, 30, 0, 0, time.UTC)

	// constant prices converge both EMAs to the price
	for i := 0; i < 200; i++ {
		a.Apply(tick(base.Add(time.Duration(i)*time.Second), 20000))
	}
	ind := a.Indicators()[string(drepo.Res1m)]
	if !ind.Seeded {
		t.Fatalf("expected seeded indicators")
	}
	if math.Abs(ind.EMAFast-20000) > 1e-6 || math.Abs(ind.EMASlow-20000) > 1e-6 {
		t.Fatalf("EMAs must converge to constant price: fast=%v slow=%v", ind.EMAFast, ind.EMASlow)
	}

	// rising prices put the fast EMA above the slow one
	for i := 0; i < 100; i++ {
		a.Apply(tick(base.Add(time.Duration(200+i)*time.Second), 20000+float64(i)*2))
	}
	ind = a.Indicators()[string(drepo.Res1m)]
	if ind.EMAFast <= ind.EMASlow {
		t.Fatalf("fast EMA must lead in an uptrend: fast=%v slow=%v", ind.EMAFast, ind.EMASlow)
	}
}

func TestAggregatorOpeningRangeFreezes(t *testing.T) {
	store := newTestStore(t, func(p *config.Params) {
		p.OpeningRangeMinutes = 15
		p.SessionOpen = "09:30"
		p.SessionLocation = "America/New_York"
	})
	a := NewAggregator(store, nopMetrics{})
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	open := time.Date(2025, 3, 3, 9, 30, 0, 0, loc)

	a.Apply(tick(open.Add(time.Minute), 20000))
	a.Apply(tick(open.Add(5*time.Minute), 20040))
	a.Apply(tick(open.Add(10*time.Minute), 19980))

	ind := a.Indicators()[string(drepo.Res1m)]
	if ind.OpeningRangeSet {
		t.Fatalf("range must stay unfrozen inside the window")
	}

	// first tick past the window freezes the range
	a.Apply(tick(open.Add(16*time.Minute), 20100))
	ind = a.Indicators()[string(drepo.Res1m)]
	if !ind.OpeningRangeSet {
		t.Fatalf("range must freeze after the window closes")
	}
	if ind.OpeningRangeHigh != 20040 || ind.OpeningRangeLow != 19980 {
		t.Fatalf("frozen range wrong: high=%v low=%v", ind.OpeningRangeHigh, ind.OpeningRangeLow)
	}

	// later ticks cannot widen it
	a.Apply(tick(open.Add(20*time.Minute), 21000))
	ind = a.Indicators()[string(drepo.Res1m)]
	if ind.OpeningRangeHigh != 20040 {
		t.Fatalf("frozen range must not move, got high=%v", ind.OpeningRangeHigh)
	}
}

func TestAggregatorHistoryBounded(t *testing.T) {
	store := newTestStore(t, func(p *config.Params) {
		p.BarHistory = 60
	})
	a := NewAggregator(store, nopMetrics{})
	base := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 200; i++ {
		a.Apply(tick(base.Add(time.Duration(i)*time.Minute), 20000+float64(i%7)))
	}
	if n := len(a.History(drepo.Res1m)); n > 60 {
		t.Fatalf("history must stay bounded, got %d", n)
	}
}
