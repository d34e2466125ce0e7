package normalize

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"TickFuse/internal/domain/models"
	"TickFuse/pkg/config"

	"github.com/shopspring/decimal"
)

// Normalizer turns raw recognized text and raw quote payloads into validated
// Observations. It has no side effects beyond producing the value.
type Normalizer struct {
	params *config.Store
}

func New(params *config.Store) *Normalizer {
	return &Normalizer{params: params}
}

// numberPattern matches price-like tokens after noise stripping. A DOM
// capture yields one candidate per visible row.
var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParsePrimary extracts a price from recognized screen text. The result must
// land inside the static min/max band and, when a last canonical price is
// known, inside the configured deviation band around it. Rejections are
// misreads, not market moves; the caller drops the cycle's observation.
func (n *Normalizer) ParsePrimary(raw string, ts time.Time, last decimal.Decimal, hasLast bool) (*models.Observation, error) {
	p := n.params.Current()

	clean := strings.ReplaceAll(raw, ",", "")
	tokens := numberPattern.FindAllString(clean, -1)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no numeric token in %q", models.ErrParse, truncate(raw, 40))
	}

	inc := decimal.NewFromFloat(p.TickIncrement)
	candidates := make([]decimal.Decimal, 0, len(tokens))
	for _, tok := range tokens {
		d, err := decimal.NewFromString(tok)
		if err != nil {
			continue
		}
		f, _ := d.Float64()
		if f < p.MinPrice || f > p.MaxPrice {
			continue
		}
		// snap to the instrument's tick increment
		candidates = append(candidates, d.Div(inc).Round(0).Mul(inc))
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidate within [%v, %v]", models.ErrParse, p.MinPrice, p.MaxPrice)
	}

	price := median(candidates)

	if hasLast && !last.IsZero() {
		dev := price.Sub(last).Abs().Div(last).Mul(decimal.NewFromInt(100))
		if dev.GreaterThan(decimal.NewFromFloat(p.MaxDeviationPct)) {
			return nil, fmt.Errorf("%w: %s deviates %s%% from last canonical %s",
				models.ErrParse, price, dev.Round(2), last)
		}
	}

	return &models.Observation{
		Source:     models.SourcePrimary,
		Timestamp:  ts,
		Price:      price,
		Confidence: parseYield(len(candidates), len(tokens)),
		Valid:      true,
	}, nil
}

// ParseFallback validates a quote payload. The source is a vetted API, so no
// plausibility band applies and confidence is fixed.
func (n *Normalizer) ParseFallback(price float64, ts time.Time) (*models.Observation, error) {
	p := n.params.Current()
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return nil, fmt.Errorf("%w: quote price %v", models.ErrParse, price)
	}
	return &models.Observation{
		Source:     models.SourceFallback,
		Timestamp:  ts,
		Price:      decimal.NewFromFloat(price),
		Confidence: p.FallbackConfidence,
		Valid:      true,
	}, nil
}

// median returns the middle candidate; ties average the two middle values.
func median(ds []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(ds))
	copy(sorted, ds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// parseYield scores how much of the recognized text survived as usable
// candidates. A clean DOM column parses almost completely; a garbled read
// does not.
func parseYield(candidates, tokens int) float64 {
	if tokens == 0 {
		return 0
	}
	frac := float64(candidates) / float64(tokens)
	if frac < 0.5 {
		return 0.5
	}
	return frac
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
