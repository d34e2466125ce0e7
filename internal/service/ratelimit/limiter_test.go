package ratelimit

import "testing"

func TestAllowDrainsBucket(t *testing.T) {
	l := New()

	// zero refill keeps the outcome deterministic
	if !l.Allow("a", 2, 0) || !l.Allow("a", 2, 0) {
		t.Fatalf("first two calls must pass")
	}
	if l.Allow("a", 2, 0) {
		t.Fatalf("drained bucket must reject")
	}
}

func TestAllowIsolatesKeys(t *testing.T) {
	l := New()

	if !l.Allow("a", 1, 0) {
		t.Fatalf("fresh key a")
	}
	if l.Allow("a", 1, 0) {
		t.Fatalf("a is drained")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatalf("key b has its own bucket")
	}
}
