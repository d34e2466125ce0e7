package models

import "errors"

// Engine error taxonomy. Parse and timeout conditions are recovered locally;
// unavailability is surfaced as degraded data, never a hard failure.
var (
	// ErrParse marks a malformed raw observation. The read is dropped.
	ErrParse = errors.New("parse error")

	// ErrSourceTimeout marks a poll that produced no response within its
	// interval. It yields an absent observation for the cycle.
	ErrSourceTimeout = errors.New("source timeout")

	// ErrSourceUnavailable marks sustained failures past the staleness
	// window. Reported to presentation as a degraded-data status.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrConfigInvalid marks an out-of-range parameter at startup or edit.
	// The engine keeps its prior valid configuration.
	ErrConfigInvalid = errors.New("config invalid")
)
