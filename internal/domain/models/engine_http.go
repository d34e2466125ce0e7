package models

// Requests for engine HTTP endpoints. Defined in domain for consistency and reuse.

type HistoryRequest struct {
	N int `query:"n" json:"n" default:"50" validate:"gte=1,lte=1000"`
}

type BarsRequest struct {
	Resolution string `query:"resolution" json:"resolution" default:"1m" validate:"oneof=1m 5m 15m 60m 4h"`
	N          int    `query:"n" json:"n" default:"240" validate:"gte=1,lte=5000"`
	// Optional explicit window; RFC3339 or unix seconds. Needs storage.
	From string `query:"from" json:"from"`
	To   string `query:"to" json:"to"`
}

type TuneRequest struct {
	PrimaryIntervalMs  int       `json:"primary_interval_ms" validate:"omitempty,gte=50,lte=60000"`
	FallbackIntervalMs int       `json:"fallback_interval_ms" validate:"omitempty,gte=250,lte=600000"`
	StalenessMs        int       `json:"staleness_ms" validate:"omitempty,gte=100,lte=600000"`
	RecoveryCycles     int       `json:"recovery_cycles" validate:"omitempty,gte=1,lte=100"`
	HysteresisCycles   int       `json:"hysteresis_cycles" validate:"omitempty,gte=1,lte=100"`
	BullishThreshold   float64   `json:"bullish_threshold" validate:"omitempty,gt=0,lt=1"`
	BearishThreshold   float64   `json:"bearish_threshold" validate:"omitempty,gt=-1,lt=0"`
	EMAFastPeriod      int       `json:"ema_fast_period" validate:"omitempty,gte=2,lte=200"`
	EMASlowPeriod      int       `json:"ema_slow_period" validate:"omitempty,gte=2,lte=500"`
	OpeningRangeMin    int       `json:"opening_range_minutes" validate:"omitempty,gte=1,lte=120"`
	LedgerRetention    int       `json:"ledger_retention" validate:"omitempty,gte=10,lte=100000"`
	ResolutionWeights  []float64 `json:"resolution_weights" validate:"omitempty,len=5,dive,gte=0"`
}
