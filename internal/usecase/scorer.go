package usecase

import (
	"time"

	"TickFuse/internal/domain/models"
	drepo "TickFuse/internal/domain/repository"
	"TickFuse/pkg/config"
)

// Rule is one pure confluence check for a single resolution. It returns a
// signed weight in [-1,+1] and a human-readable reason when it fires.
type Rule struct {
	Name string
	Eval func(ind models.IndicatorSet, price float64) (weight float64, reason string, fired bool)
}

// DefaultRules is the fixed ordered rule set. New rules compose without
// touching the aggregation logic below.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "ema_cross",
			Eval: func(ind models.IndicatorSet, _ float64) (float64, string, bool) {
				if !ind.Seeded || ind.EMAFast == ind.EMASlow {
					return 0, "", false
				}
				if ind.EMAFast > ind.EMASlow {
					return 0.5, "ema fast above slow", true
				}
				return -0.5, "ema fast below slow", true
			},
		},
		{
			Name: "price_vs_fast_ema",
			Eval: func(ind models.IndicatorSet, price float64) (float64, string, bool) {
				if !ind.Seeded || price == ind.EMAFast {
					return 0, "", false
				}
				if price > ind.EMAFast {
					return 0.25, "price above fast ema", true
				}
				return -0.25, "price below fast ema", true
			},
		},
		{
			Name: "opening_range_breakout",
			Eval: func(ind models.IndicatorSet, price float64) (float64, string, bool) {
				if !ind.OpeningRangeSet {
					return 0, "", false
				}
				if price > ind.OpeningRangeHigh {
					return 0.5, "opening range breakout up", true
				}
				if price < ind.OpeningRangeLow {
					return -0.5, "opening range breakdown", true
				}
				return 0, "", false
			},
		},
	}
}

// Scorer evaluates the rule set per resolution, combines the weighted
// contributions into one score, and maps it to a label with hysteresis.
type Scorer struct {
	params  *config.Store
	metrics drepo.Metrics
	rules   []Rule

	active       models.SignalLabel
	pending      models.SignalLabel
	pendingCount int
}

func NewScorer(params *config.Store, metrics drepo.Metrics, rules []Rule) *Scorer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Scorer{
		params:  params,
		metrics: metrics,
		rules:   rules,
		active:  models.LabelNeutral,
	}
}

// ActiveLabel returns the accepted (post-hysteresis) label.
func (sc *Scorer) ActiveLabel() models.SignalLabel { return sc.active }

// Evaluate recomputes the confluence score for the given indicator sets and
// last canonical price. When hysteresis accepts a label change it returns
// the transition; otherwise the second result is nil.
func (sc *Scorer) Evaluate(now time.Time, inds map[string]models.IndicatorSet, price float64) (models.ConfluenceScore, *models.SignalTransition) {
	p := sc.params.Current()

	contributions := make(map[string]float64, len(inds))
	var factors []models.FactorContribution
	total, weightSum := 0.0, 0.0

	for _, res := range drepo.AllResolutions() {
		w := p.ResolutionWeights[string(res)]
		weightSum += w
		ind, ok := inds[string(res)]
		if !ok || w == 0 {
			continue
		}
		net := 0.0
		for _, rule := range sc.rules {
			rw, reason, fired := rule.Eval(ind, price)
			if !fired {
				continue
			}
			net += rw
			factors = append(factors, models.FactorContribution{
				Resolution: string(res),
				Reason:     reason,
				Weight:     rw * w,
			})
		}
		net = clamp(net, -1, 1)
		contributions[string(res)] = net * w
		total += net * w
	}
	if weightSum > 0 {
		total /= weightSum
	}

	label := sc.mapLabel(total, p)
	score := models.ConfluenceScore{
		Timestamp:     now,
		Contributions: contributions,
		Factors:       factors,
		TotalScore:    total,
		Label:         sc.active,
		ConfidencePct: confidence(total, label, p),
	}

	tr := sc.applyHysteresis(now, label, score)
	score.Label = sc.active
	return score, tr
}

// applyHysteresis accepts a label change only after the raw label has held
// for the configured number of consecutive recomputations.
func (sc *Scorer) applyHysteresis(now time.Time, raw models.SignalLabel, score models.ConfluenceScore) *models.SignalTransition {
	p := sc.params.Current()

	if raw == sc.active {
		sc.pending = ""
		sc.pendingCount = 0
		return nil
	}
	if raw == sc.pending {
		sc.pendingCount++
	} else {
		sc.pending = raw
		sc.pendingCount = 1
	}
	if sc.pendingCount < p.HysteresisCycles {
		return nil
	}

	from := sc.active
	sc.active = raw
	sc.pending = ""
	sc.pendingCount = 0
	sc.metrics.RecordTransition(string(from), string(raw))

	return &models.SignalTransition{
		Timestamp: now,
		From:      from,
		To:        raw,
		Score:     score.TotalScore,
		Factors:   score.Factors,
	}
}

func (sc *Scorer) mapLabel(total float64, p *config.Params) models.SignalLabel {
	switch {
	case total > p.BullishThreshold:
		return models.LabelBullish
	case total < p.BearishThreshold:
		return models.LabelBearish
	default:
		return models.LabelNeutral
	}
}

// confidence is the normalized distance of the score from the nearer
// threshold, scaled to [0,100].
func confidence(total float64, label models.SignalLabel, p *config.Params) float64 {
	var frac float64
	switch label {
	case models.LabelBullish:
		frac = (total - p.BullishThreshold) / (1 - p.BullishThreshold)
	case models.LabelBearish:
		frac = (p.BearishThreshold - total) / (p.BearishThreshold + 1)
	default:
		d := p.BullishThreshold - total
		if other := total - p.BearishThreshold; other < d {
			d = other
		}
		half := (p.BullishThreshold - p.BearishThreshold) / 2
		if half > 0 {
			frac = d / half
		}
	}
	return clamp(frac, 0, 1) * 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
