package repository

import (
	"testing"
	"time"
)

func TestAllResolutionsOrdered(t *testing.T) {
	all := AllResolutions()
	if len(all) != 5 {
		t.Fatalf("expected five resolutions, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Duration() <= all[i-1].Duration() {
			t.Fatalf("resolutions must be ordered shortest first")
		}
	}
}

func TestResolutionDurations(t *testing.T) {
	cases := map[Resolution]time.Duration{
		Res1m:  time.Minute,
		Res5m:  5 * time.Minute,
		Res15m: 15 * time.Minute,
		Res60m: time.Hour,
		Res4h:  4 * time.Hour,
	}
	for res, want := range cases {
		if got := res.Duration(); got != want {
			t.Fatalf("%s: duration %v, want %v", res, got, want)
		}
	}
}

func TestNormalizeResolution(t *testing.T) {
	if got := NormalizeResolution("15m"); got != Res15m {
		t.Fatalf("got %s", got)
	}
	if got := NormalizeResolution("2h"); got != Res1m {
		t.Fatalf("unknown input must fall back to default, got %s", got)
	}
	if !IsValidResolution("4h") || IsValidResolution("1d") {
		t.Fatalf("validity checks wrong")
	}
}
