package usecase

import (
	"fmt"
	"time"

	"TickFuse/internal/domain/models"
	drepo "TickFuse/internal/domain/repository"
	"TickFuse/pkg/config"
)

// resolutionState holds everything owned by one resolution: its open bar,
// bounded sealed history, incremental EMAs, and the session opening range.
type resolutionState struct {
	res     drepo.Resolution
	open    *models.Bar
	history []models.Bar

	emaFast float64
	emaSlow float64
	seeded  bool

	orHigh     float64
	orLow      float64
	orTracking bool
	orFrozen   bool
	sessionDay time.Time
}

// Aggregator resamples the canonical tick stream into OHLC bars at every
// resolution and maintains the derived indicator set per resolution. It is
// the only component that mutates bar state; callers receive copies.
type Aggregator struct {
	params  *config.Store
	metrics drepo.Metrics
	states  map[drepo.Resolution]*resolutionState
}

func NewAggregator(params *config.Store, metrics drepo.Metrics) *Aggregator {
	states := make(map[drepo.Resolution]*resolutionState, len(drepo.AllResolutions()))
	for _, res := range drepo.AllResolutions() {
		states[res] = &resolutionState{res: res}
	}
	return &Aggregator{params: params, metrics: metrics, states: states}
}

// Apply folds one canonical tick into every resolution and returns the bars
// sealed by it, oldest first. It errors only on a broken bar invariant,
// which the engine treats as fatal.
func (a *Aggregator) Apply(t *models.CanonicalTick) ([]models.Bar, error) {
	p := a.params.Current()
	price, _ := t.Price.Float64()

	var sealed []models.Bar
	for _, res := range drepo.AllResolutions() {
		s := a.states[res]
		batch, err := s.apply(t, price, p)
		if err != nil {
			return nil, err
		}
		for range batch {
			a.metrics.RecordBarSealed(string(res))
		}
		sealed = append(sealed, batch...)
	}
	return sealed, nil
}

func (s *resolutionState) apply(t *models.CanonicalTick, price float64, p *config.Params) ([]models.Bar, error) {
	window := t.Timestamp.Truncate(s.res.Duration())

	var sealed []models.Bar
	switch {
	case s.open == nil:
		// first tick of the session seeds the open bar
		s.open = &models.Bar{
			Resolution: string(s.res),
			OpenTime:   window,
			Open:       t.Price,
			High:       t.Price,
			Low:        t.Price,
			Close:      t.Price,
			TickCount:  1,
		}
	case window.After(s.open.OpenTime):
		var err error
		sealed, err = s.rollover(t, window, p)
		if err != nil {
			return nil, err
		}
	default:
		// update the open bar as a single record replace
		b := *s.open
		if t.Price.GreaterThan(b.High) {
			b.High = t.Price
		}
		if t.Price.LessThan(b.Low) {
			b.Low = t.Price
		}
		b.Close = t.Price
		b.TickCount++
		s.open = &b
	}

	s.updateEMA(price, p)
	s.updateOpeningRange(t.Timestamp, price, p)
	return sealed, nil
}

// rollover seals the open bar, emits one flat bar per fully skipped window,
// and opens a new bar seeded with open = prior close.
func (s *resolutionState) rollover(t *models.CanonicalTick, window time.Time, p *config.Params) ([]models.Bar, error) {
	if err := checkBarInvariant(s.open); err != nil {
		return nil, err
	}

	var sealed []models.Bar
	s.pushHistory(*s.open, p)
	sealed = append(sealed, *s.open)
	prevClose := s.open.Close

	d := s.res.Duration()
	for ot := s.open.OpenTime.Add(d); ot.Before(window); ot = ot.Add(d) {
		filler := models.Bar{
			Resolution: string(s.res),
			OpenTime:   ot,
			Open:       prevClose,
			High:       prevClose,
			Low:        prevClose,
			Close:      prevClose,
		}
		s.pushHistory(filler, p)
		sealed = append(sealed, filler)
	}

	open := models.Bar{
		Resolution: string(s.res),
		OpenTime:   window,
		Open:       prevClose,
		High:       prevClose,
		Low:        prevClose,
		Close:      t.Price,
		TickCount:  1,
	}
	if t.Price.GreaterThan(open.High) {
		open.High = t.Price
	}
	if t.Price.LessThan(open.Low) {
		open.Low = t.Price
	}
	s.open = &open
	return sealed, nil
}

func (s *resolutionState) pushHistory(b models.Bar, p *config.Params) {
	s.history = append(s.history, b)
	if len(s.history) > p.BarHistory {
		s.history = s.history[len(s.history)-p.BarHistory:]
	}
}

// updateEMA applies the standard recursive smoothing on every tick, so the
// pair reflects intra-bar motion. Seed is the first tick's price.
func (s *resolutionState) updateEMA(price float64, p *config.Params) {
	if !s.seeded {
		s.emaFast = price
		s.emaSlow = price
		s.seeded = true
		return
	}
	af := 2.0 / (float64(p.EMAFastPeriod) + 1)
	as := 2.0 / (float64(p.EMASlowPeriod) + 1)
	s.emaFast = af*price + (1-af)*s.emaFast
	s.emaSlow = as*price + (1-as)*s.emaSlow
}

// updateOpeningRange tracks the session's opening window high/low and
// freezes them once the window closes. Ticks after that do not alter it.
func (s *resolutionState) updateOpeningRange(ts time.Time, price float64, p *config.Params) {
	loc, err := time.LoadLocation(p.SessionLocation)
	if err != nil {
		loc = time.UTC
	}
	local := ts.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	if !day.Equal(s.sessionDay) {
		s.sessionDay = day
		s.orTracking = false
		s.orFrozen = false
		s.orHigh = 0
		s.orLow = 0
	}
	if s.orFrozen {
		return
	}

	open, _ := time.Parse("15:04", p.SessionOpen)
	start := day.Add(time.Duration(open.Hour())*time.Hour + time.Duration(open.Minute())*time.Minute)
	end := start.Add(time.Duration(p.OpeningRangeMinutes) * time.Minute)

	switch {
	case local.Before(start):
		return
	case local.Before(end):
		if !s.orTracking {
			s.orTracking = true
			s.orHigh = price
			s.orLow = price
			return
		}
		if price > s.orHigh {
			s.orHigh = price
		}
		if price < s.orLow {
			s.orLow = price
		}
	default:
		if s.orTracking {
			s.orFrozen = true
		}
	}
}

// Indicators returns a copy of every resolution's derived values.
func (a *Aggregator) Indicators() map[string]models.IndicatorSet {
	out := make(map[string]models.IndicatorSet, len(a.states))
	for res, s := range a.states {
		set := models.IndicatorSet{
			Resolution:       string(res),
			EMAFast:          s.emaFast,
			EMASlow:          s.emaSlow,
			OpeningRangeHigh: s.orHigh,
			OpeningRangeLow:  s.orLow,
			OpeningRangeSet:  s.orFrozen,
			Seeded:           s.seeded,
		}
		if s.open != nil {
			set.LastPrice, _ = s.open.Close.Float64()
		}
		out[string(res)] = set
	}
	return out
}

// History returns a copy of the sealed bars for one resolution, oldest first.
func (a *Aggregator) History(res drepo.Resolution) []models.Bar {
	s, ok := a.states[res]
	if !ok {
		return nil
	}
	out := make([]models.Bar, len(s.history))
	copy(out, s.history)
	return out
}

// OpenBar returns a copy of the currently open bar for one resolution.
func (a *Aggregator) OpenBar(res drepo.Resolution) (models.Bar, bool) {
	s, ok := a.states[res]
	if !ok || s.open == nil {
		return models.Bar{}, false
	}
	return *s.open, true
}

func checkBarInvariant(b *models.Bar) error {
	hi := b.Open
	if b.Close.GreaterThan(hi) {
		hi = b.Close
	}
	lo := b.Open
	if b.Close.LessThan(lo) {
		lo = b.Close
	}
	if b.High.LessThan(hi) || b.Low.GreaterThan(lo) {
		return fmt.Errorf("bar invariant broken: %s open=%s high=%s low=%s close=%s",
			b.Resolution, b.Open, b.High, b.Low, b.Close)
	}
	return nil
}
