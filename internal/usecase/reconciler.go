package usecase

import (
	"time"

	"TickFuse/internal/domain/models"
	drepo "TickFuse/internal/domain/repository"
	"TickFuse/pkg/config"

	"github.com/shopspring/decimal"
)

// staleDecay degrades carried-forward confidence each silent cycle.
const (
	staleDecay    = 0.9
	minConfidence = 0.1
)

// Reconciler merges both observation streams into one canonical tick stream.
// Source authority is an explicit two-state machine: Primary-active or
// Fallback-active, with staleness and recovery transitions. Only the
// reconciler produces CanonicalTicks.
type Reconciler struct {
	params  *config.Store
	metrics drepo.Metrics

	active        models.Source
	last          *models.CanonicalTick
	start         time.Time // first reconciliation cycle
	lastPrimary   time.Time // arrival of last valid primary observation
	lastFallback  time.Time
	latestFBObs   *models.Observation
	primaryStreak int
}

func NewReconciler(params *config.Store, metrics drepo.Metrics) *Reconciler {
	return &Reconciler{
		params:  params,
		metrics: metrics,
		active:  models.SourcePrimary,
	}
}

// ActiveSource reports which source currently holds authority.
func (r *Reconciler) ActiveSource() models.Source { return r.active }

// Last returns the most recent canonical tick, or nil before any data.
func (r *Reconciler) Last() *models.CanonicalTick { return r.last }

// Reconcile runs one cycle at time now over the observations drained this
// cycle and returns exactly one canonical tick, or nil before any source has
// ever produced data. A returned tick replaces the previous one; its
// timestamp never moves backwards.
func (r *Reconciler) Reconcile(now time.Time, obs []*models.Observation) *models.CanonicalTick {
	p := r.params.Current()
	if r.start.IsZero() {
		r.start = now
	}

	primary, fallback := splitLatest(obs)
	if fallback != nil {
		r.latestFBObs = fallback
		r.lastFallback = fallback.Timestamp
	}
	if primary != nil {
		r.lastPrimary = primary.Timestamp
		r.primaryStreak++
	} else {
		r.primaryStreak = 0
	}

	// Staleness transition: primary silent too long while authoritative.
	// Before the first valid primary read, silence is measured from start.
	sinceRef := r.lastPrimary
	if sinceRef.IsZero() {
		sinceRef = r.start
	}
	if r.active == models.SourcePrimary && primary == nil && now.Sub(sinceRef) > p.Staleness {
		r.active = models.SourceFallback
		r.metrics.RecordActiveSource(string(r.active))
	}

	// Recovery transition: a sustained run of valid primary reads restores
	// authority; a single good read after an outage does not.
	if r.active == models.SourceFallback && r.primaryStreak >= p.RecoveryCycles {
		r.active = models.SourcePrimary
		r.metrics.RecordActiveSource(string(r.active))
	}

	switch r.active {
	case models.SourcePrimary:
		if primary != nil {
			return r.emit(now, primary.Price, models.SourcePrimary, primary.Confidence, false)
		}
	case models.SourceFallback:
		if r.latestFBObs != nil && now.Sub(r.lastFallback) <= p.Staleness {
			return r.emit(now, r.latestFBObs.Price, models.SourceFallback, r.latestFBObs.Confidence, false)
		}
	}

	// No usable observation this cycle: carry the last price forward.
	if r.last == nil {
		return nil
	}
	primarySilent := r.lastPrimary.IsZero() || now.Sub(r.lastPrimary) > p.Staleness
	fallbackSilent := r.lastFallback.IsZero() || now.Sub(r.lastFallback) > p.Staleness
	if primarySilent && fallbackSilent {
		// Both sources past the staleness window: degraded data, not a
		// failure. Confidence decays until a source comes back.
		conf := r.last.SourceConfidence * staleDecay
		if conf < minConfidence {
			conf = minConfidence
		}
		return r.emit(now, r.last.Price, r.last.ActiveSource, conf, true)
	}
	return r.emit(now, r.last.Price, r.last.ActiveSource, r.last.SourceConfidence, r.last.Stale)
}

func (r *Reconciler) emit(now time.Time, price decimal.Decimal, src models.Source, conf float64, stale bool) *models.CanonicalTick {
	// timestamps are monotonic non-decreasing across emitted ticks
	if r.last != nil && now.Before(r.last.Timestamp) {
		now = r.last.Timestamp
	}
	t := &models.CanonicalTick{
		Timestamp:        now,
		Price:            price,
		ActiveSource:     src,
		SourceConfidence: conf,
		Stale:            stale,
	}
	r.last = t
	f, _ := price.Float64()
	r.metrics.RecordLastPrice(f)
	return t
}

// splitLatest picks the most recent valid observation per source.
func splitLatest(obs []*models.Observation) (primary, fallback *models.Observation) {
	for _, o := range obs {
		if o == nil || !o.Valid {
			continue
		}
		switch o.Source {
		case models.SourcePrimary:
			if primary == nil || o.Timestamp.After(primary.Timestamp) {
				primary = o
			}
		case models.SourceFallback:
			if fallback == nil || o.Timestamp.After(fallback.Timestamp) {
				fallback = o
			}
		}
	}
	return primary, fallback
}
