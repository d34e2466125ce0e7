package http

import (
	"time"

	xutil "TickFuse/pkg/util"
)

// ParseTime accepts RFC3339, RFC3339Nano or unix seconds. The second
// return value reports whether any form matched.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }
