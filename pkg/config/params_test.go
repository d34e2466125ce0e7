package config

import (
	"testing"
	"time"
)

func defaultParams(t *testing.T) *Params {
	t.Helper()
	p := &Params{}
	if err := p.ApplyDefaults(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	return p
}

func TestParamsDefaultsValid(t *testing.T) {
	p := defaultParams(t)
	if err := p.Validate(); err != nil {
		t.Fatalf("default params must validate: %v", err)
	}
	if p.PrimaryInterval != 250*time.Millisecond {
		t.Fatalf("primary interval %v", p.PrimaryInterval)
	}
	if len(p.ResolutionWeights) != 5 {
		t.Fatalf("expected five resolution weights, got %d", len(p.ResolutionWeights))
	}
}

func TestParamsValidateRejectsBadSession(t *testing.T) {
	p := defaultParams(t)
	p.SessionOpen = "930"
	if err := p.Validate(); err == nil {
		t.Fatalf("expected session format rejection")
	}
}

func TestParamsValidateRejectsInvertedEMAs(t *testing.T) {
	p := defaultParams(t)
	p.EMAFastPeriod = 50
	p.EMASlowPeriod = 10
	if err := p.Validate(); err == nil {
		t.Fatalf("slow period must exceed fast period")
	}
}

func TestParamsCycleInterval(t *testing.T) {
	p := defaultParams(t)
	if got := p.CycleInterval(); got != p.PrimaryInterval {
		t.Fatalf("cycle interval must follow the fastest poller, got %v", got)
	}
	p.FallbackInterval = 100 * time.Millisecond
	if got := p.CycleInterval(); got != 100*time.Millisecond {
		t.Fatalf("cycle interval %v", got)
	}
}

func TestStoreRejectedUpdateKeepsPrior(t *testing.T) {
	p := defaultParams(t)
	store, err := NewStore(p)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	bad := store.Current().Clone()
	bad.BullishThreshold = -0.5
	if err := store.Update(bad); err == nil {
		t.Fatalf("invalid update must be rejected")
	}
	if got := store.Current().BullishThreshold; got != p.BullishThreshold {
		t.Fatalf("active params must be untouched after rejection, got %v", got)
	}

	good := store.Current().Clone()
	good.HysteresisCycles = 7
	if err := store.Update(good); err != nil {
		t.Fatalf("valid update rejected: %v", err)
	}
	if store.Current().HysteresisCycles != 7 {
		t.Fatalf("valid update must take effect")
	}
}

func TestStoreUpdateDoesNotAliasInput(t *testing.T) {
	p := defaultParams(t)
	store, err := NewStore(p)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	next := store.Current().Clone()
	if err := store.Update(next); err != nil {
		t.Fatalf("update: %v", err)
	}
	next.ResolutionWeights["1m"] = 99
	if store.Current().ResolutionWeights["1m"] == 99 {
		t.Fatalf("installed params must not alias the caller's copy")
	}
}
