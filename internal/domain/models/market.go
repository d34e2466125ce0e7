package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies which feed an observation came from.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Observation is a single validated price read from one source.
// It is immutable; the reconciler either folds it into a CanonicalTick
// or drops it.
type Observation struct {
	Source     Source
	Timestamp  time.Time
	Price      decimal.Decimal
	Confidence float64 // [0,1]
	Valid      bool
}

// CanonicalTick is the single price the engine currently trusts.
// A new value replaces the previous one; it is never mutated in place.
type CanonicalTick struct {
	Timestamp        time.Time
	Price            decimal.Decimal
	ActiveSource     Source
	SourceConfidence float64
	Stale            bool // carried-forward price, both sources silent
}

// Bar is one OHLC bucket for a resolution. Open bars are mutated only by
// the aggregator; sealed bars are immutable.
type Bar struct {
	Resolution string
	OpenTime   time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	TickCount  int
}

// IndicatorSet holds the derived values for one resolution. Always
// recomputable from that resolution's bar history, never persisted alone.
type IndicatorSet struct {
	Resolution       string
	EMAFast          float64
	EMASlow          float64
	OpeningRangeHigh float64
	OpeningRangeLow  float64
	OpeningRangeSet  bool // frozen once the session window closes
	LastPrice        float64
	Seeded           bool
}

// SignalLabel is the discrete directional signal.
type SignalLabel string

const (
	LabelBullish SignalLabel = "bullish"
	LabelNeutral SignalLabel = "neutral"
	LabelBearish SignalLabel = "bearish"
)

// FactorContribution is one fired rule: which resolution, why, how much.
type FactorContribution struct {
	Resolution string  `json:"resolution"`
	Reason     string  `json:"reason"`
	Weight     float64 `json:"weight"`
}

// ConfluenceScore is the combined multi-resolution evaluation at an instant.
type ConfluenceScore struct {
	Timestamp     time.Time
	Contributions map[string]float64 // resolution -> signed weighted value
	Factors       []FactorContribution
	TotalScore    float64 // [-1,+1]
	Label         SignalLabel
	ConfidencePct float64 // [0,100]
}

// SignalTransition is one accepted label change, post-hysteresis.
type SignalTransition struct {
	Timestamp time.Time
	From      SignalLabel
	To        SignalLabel
	Score     float64
	Factors   []FactorContribution
}

// EngineSnapshot is the immutable view handed to presentation consumers.
type EngineSnapshot struct {
	Tick        CanonicalTick
	Indicators  map[string]IndicatorSet
	Score       ConfluenceScore
	Transitions []SignalTransition
	Degraded    bool // both sources past the staleness window
}
