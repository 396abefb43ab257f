package lock

import (
	"testing"
	"time"
)

func TestJitterBounded(t *testing.T) {
	d := 2 * time.Second
	for i := 0; i < 50; i++ {
		got := jitter(d)
		if got < d/2 || got > d {
			t.Fatalf("jitter(%v) = %v, want in [%v, %v]", d, got, d/2, d)
		}
	}
}

func TestJitterZero(t *testing.T) {
	if got := jitter(0); got != 0 {
		t.Fatalf("jitter(0) = %v, want 0", got)
	}
}

func TestRandomTokenUnique(t *testing.T) {
	a, err := randomToken()
	if err != nil {
		t.Fatalf("randomToken: %v", err)
	}
	b, err := randomToken()
	if err != nil {
		t.Fatalf("randomToken: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct tokens, got %s twice", a)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars (16 bytes), got %d", len(a))
	}
}

func TestBackoffNeverExceedsCap(t *testing.T) {
	backoff := backoffBase
	for i := 0; i < 30; i++ {
		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > backoffCap {
			backoff = backoffCap
		}
		if backoff > backoffCap {
			t.Fatalf("backoff exceeded cap: %v > %v", backoff, backoffCap)
		}
	}
	if backoff != backoffCap {
		t.Fatalf("expected backoff to saturate at cap, got %v", backoff)
	}
}
