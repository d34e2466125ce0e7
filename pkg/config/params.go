package config

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Params holds the engine's numeric tuning. All fields are runtime-tunable
// through Store; an invalid update never replaces the active set.
type Params struct {
	Symbol              string        `yaml:"symbol" default:"NQ=F"`
	PrimaryInterval     time.Duration `yaml:"primary_interval" default:"250ms" validate:"gt=0"`
	FallbackInterval    time.Duration `yaml:"fallback_interval" default:"10s" validate:"gt=0"`
	PrimaryTimeout      time.Duration `yaml:"primary_timeout" default:"200ms" validate:"gt=0"`
	FallbackTimeout     time.Duration `yaml:"fallback_timeout" default:"5s" validate:"gt=0"`
	Staleness           time.Duration `yaml:"staleness" default:"3s" validate:"gt=0"`
	RecoveryCycles      int           `yaml:"recovery_cycles" default:"4" validate:"gte=1,lte=1000"`
	MinPrice            float64       `yaml:"min_price" default:"2000" validate:"gt=0"`
	MaxPrice            float64       `yaml:"max_price" default:"40000" validate:"gtfield=MinPrice"`
	MaxDeviationPct     float64       `yaml:"max_deviation_pct" default:"0.5" validate:"gt=0,lte=100"`
	TickIncrement       float64       `yaml:"tick_increment" default:"0.25" validate:"gt=0"`
	FallbackConfidence  float64       `yaml:"fallback_confidence" default:"0.9" validate:"gt=0,lte=1"`
	EMAFastPeriod       int           `yaml:"ema_fast_period" default:"9" validate:"gte=2,lte=500"`
	EMASlowPeriod       int           `yaml:"ema_slow_period" default:"21" validate:"gtfield=EMAFastPeriod,lte=1000"`
	OpeningRangeMinutes int           `yaml:"opening_range_minutes" default:"15" validate:"gte=1,lte=120"`
	SessionOpen         string        `yaml:"session_open" default:"09:30" validate:"required"`
	SessionLocation     string        `yaml:"session_location" default:"America/New_York" validate:"required"`
	// ResolutionWeights maps resolution name to its confluence weight.
	// Missing entries are filled by ApplyDefaults (higher timeframes heavier).
	ResolutionWeights map[string]float64 `yaml:"resolution_weights"`
	BullishThreshold  float64            `yaml:"bullish_threshold" default:"0.3" validate:"gt=0,lt=1"`
	BearishThreshold  float64            `yaml:"bearish_threshold" default:"-0.3" validate:"gt=-1,lt=0"`
	HysteresisCycles  int                `yaml:"hysteresis_cycles" default:"3" validate:"gte=1,lte=1000"`
	LedgerRetention   int                `yaml:"ledger_retention" default:"500" validate:"gte=10,lte=100000"`
	BarHistory        int                `yaml:"bar_history" default:"720" validate:"gte=60,lte=100000"`
}

var paramsValidate = validator.New()

// DefaultResolutionWeights weights higher timeframes more, matching the
// confluence model where slow-resolution agreement carries more evidence.
func DefaultResolutionWeights() map[string]float64 {
	return map[string]float64{
		"1m":  0.10,
		"5m":  0.15,
		"15m": 0.20,
		"60m": 0.25,
		"4h":  0.30,
	}
}

// ApplyDefaults fills unset fields with defaults.
func (p *Params) ApplyDefaults() error {
	if err := defaults.Set(p); err != nil {
		return fmt.Errorf("set defaults: %w", err)
	}
	if p.ResolutionWeights == nil {
		p.ResolutionWeights = DefaultResolutionWeights()
	} else {
		for res, w := range DefaultResolutionWeights() {
			if _, ok := p.ResolutionWeights[res]; !ok {
				p.ResolutionWeights[res] = w
			}
		}
	}
	return nil
}

// Validate checks all parameters, including cross-field rules the struct
// tags cannot express.
func (p *Params) Validate() error {
	if err := paramsValidate.Struct(p); err != nil {
		return fmt.Errorf("engine params: %w", err)
	}
	if _, err := time.Parse("15:04", p.SessionOpen); err != nil {
		return fmt.Errorf("session_open must be HH:MM: %w", err)
	}
	if _, err := time.LoadLocation(p.SessionLocation); err != nil {
		return fmt.Errorf("session_location: %w", err)
	}
	sum := 0.0
	for res, w := range p.ResolutionWeights {
		if w < 0 {
			return fmt.Errorf("resolution weight %s must be >= 0, got %v", res, w)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("resolution weights must not all be zero")
	}
	return nil
}

// CycleInterval is the reconciliation cadence: the shortest configured
// polling interval among both sources.
func (p *Params) CycleInterval() time.Duration {
	if p.PrimaryInterval < p.FallbackInterval {
		return p.PrimaryInterval
	}
	return p.FallbackInterval
}

// Clone returns a deep copy, so a stored Params is never aliased by callers.
func (p *Params) Clone() *Params {
	cp := *p
	cp.ResolutionWeights = make(map[string]float64, len(p.ResolutionWeights))
	for k, v := range p.ResolutionWeights {
		cp.ResolutionWeights[k] = v
	}
	return &cp
}

// Store publishes the active parameter set to the engine with atomic swaps.
// Readers always see a complete, validated set.
type Store struct {
	cur atomic.Pointer[Params]
}

// NewStore creates a store seeded with validated parameters.
func NewStore(p *Params) (*Store, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &Store{}
	s.cur.Store(p.Clone())
	return s, nil
}

// Current returns the active parameter set. Callers must not mutate it.
func (s *Store) Current() *Params {
	return s.cur.Load()
}

// Update validates and atomically installs a new parameter set. On error the
// prior set stays active.
func (s *Store) Update(p *Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.cur.Store(p.Clone())
	return nil
}
