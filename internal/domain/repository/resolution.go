package repository

import "time"

// Resolution represents a bar aggregation bucket.
type Resolution string

const (
	Res1m  Resolution = "1m"
	Res5m  Resolution = "5m"
	Res15m Resolution = "15m"
	Res60m Resolution = "60m"
	Res4h  Resolution = "4h"
)

// AllResolutions lists every bucket the aggregator maintains, shortest first.
func AllResolutions() []Resolution {
	return []Resolution{Res1m, Res5m, Res15m, Res60m, Res4h}
}

// IsValidResolution returns true if r is a supported resolution.
func IsValidResolution(r Resolution) bool {
	switch r {
	case Res1m, Res5m, Res15m, Res60m, Res4h:
		return true
	default:
		return false
	}
}

// DefaultResolution returns the default resolution.
func DefaultResolution() Resolution { return Res1m }

// NormalizeResolution converts a raw string to a valid resolution (or default).
func NormalizeResolution(s string) Resolution {
	if s == "" {
		return DefaultResolution()
	}
	r := Resolution(s)
	if IsValidResolution(r) {
		return r
	}
	return DefaultResolution()
}

// Duration returns the bar window length for the resolution.
func (r Resolution) Duration() time.Duration {
	switch r {
	case Res1m:
		return time.Minute
	case Res5m:
		return 5 * time.Minute
	case Res15m:
		return 15 * time.Minute
	case Res60m:
		return time.Hour
	case Res4h:
		return 4 * time.Hour
	default:
		return time.Minute
	}
}
