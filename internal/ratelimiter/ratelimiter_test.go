package ratelimiter

import (
	"testing"
	"time"
)

// fakeNow returns a controllable clock for l.
func fakeNow(l *Limiter, start time.Time) *time.Time {
	current := start
	l.now = func() time.Time { return current }
	return &current
}

// TestNew verifies limiter creation with different parameters.
func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		perMinute int
		burst     int
		wantNil   bool
		wantBurst int
	}{
		{name: "standard rate", perMinute: 60, burst: 10, wantBurst: 10},
		{name: "zero burst is one", perMinute: 60, burst: 0, wantBurst: 1},
		{name: "unlimited (zero rate)", perMinute: 0, burst: 5, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.perMinute, tt.burst)
			if tt.wantNil {
				if limiter != nil {
					t.Fatal("expected nil limiter for zero rate")
				}
				return
			}
			if limiter == nil {
				t.Fatal("New() returned nil")
			}
			if limiter.burst != tt.wantBurst {
				t.Errorf("burst = %d, want %d", limiter.burst, tt.wantBurst)
			}
		})
	}
}

// TestAllow verifies that the burst is enforced and refills over time.
func TestAllow(t *testing.T) {
	limiter := New(60, 3) // one token per second
	now := fakeNow(limiter, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed (within burst)", i)
		}
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("request beyond burst should be rejected")
	}

	if d := limiter.RetryAfter("10.0.0.1"); d <= 0 || d > time.Second {
		t.Errorf("RetryAfter = %v, want (0, 1s]", d)
	}

	*now = now.Add(time.Second)
	if !limiter.Allow("10.0.0.1") {
		t.Fatal("request after refill should be allowed")
	}
}

// TestAllow_KeysAreIndependent verifies one client cannot starve another.
func TestAllow_KeysAreIndependent(t *testing.T) {
	limiter := New(60, 1)
	fakeNow(limiter, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	if !limiter.Allow("a") {
		t.Fatal("first request for a should be allowed")
	}
	if limiter.Allow("a") {
		t.Fatal("second request for a should be rejected")
	}
	if !limiter.Allow("b") {
		t.Fatal("first request for b should be allowed")
	}
}

// TestNilLimiter verifies a nil limiter allows everything.
func TestNilLimiter(t *testing.T) {
	var limiter *Limiter
	for i := 0; i < 100; i++ {
		if !limiter.Allow("x") {
			t.Fatal("nil limiter must allow every request")
		}
	}
	if limiter.RetryAfter("x") != 0 || limiter.Len() != 0 {
		t.Fatal("nil limiter must report no state")
	}
}

// TestPrune verifies idle buckets are dropped.
func TestPrune(t *testing.T) {
	limiter := New(60, 1)
	now := fakeNow(limiter, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	limiter.Allow("a")
	limiter.Allow("b")
	if limiter.Len() != 2 {
		t.Fatalf("Len = %d, want 2", limiter.Len())
	}

	*now = now.Add(DefaultIdleTTL + time.Second)
	limiter.Allow("c")
	if limiter.Len() != 1 {
		t.Fatalf("Len after prune = %d, want 1", limiter.Len())
	}
}
