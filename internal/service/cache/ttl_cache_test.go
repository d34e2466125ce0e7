package cache

import (
	"testing"
	"time"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache()

	if err := c.SetBytes("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.GetBytes("k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q", got)
	}

	if _, ok, _ := c.GetBytes("missing"); ok {
		t.Fatalf("missing key must not hit")
	}
}

func TestTTLCacheExpires(t *testing.T) {
	c := NewTTLCache()

	if err := c.SetBytes("k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, ok, _ := c.GetBytes("k"); ok {
		t.Fatalf("expired entry must miss")
	}

	// zero TTL never expires
	if err := c.SetBytes("p", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := c.GetBytes("p"); !ok {
		t.Fatalf("zero-ttl entry must stay")
	}
}
