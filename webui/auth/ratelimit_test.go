package auth

import (
	"testing"
	"time"
)

func TestRateLimiterBlocksAfterMaxAttempts(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute, time.Minute)

	for i := 0; i < 2; i++ {
		limiter.RecordFailure("10.0.0.1")
		if allowed, _ := limiter.Allow("10.0.0.1"); !allowed {
			t.Fatalf("blocked after %d attempts, limit is 3", i+1)
		}
	}

	limiter.RecordFailure("10.0.0.1")
	allowed, remaining := limiter.Allow("10.0.0.1")
	if allowed {
		t.Error("should be blocked after 3 failures")
	}
	if remaining <= 0 {
		t.Errorf("remaining = %v, want positive", remaining)
	}

	// Other IPs are unaffected.
	if allowed, _ := limiter.Allow("10.0.0.2"); !allowed {
		t.Error("unrelated IP blocked")
	}
}

func TestRateLimiterResetClearsRecord(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute, time.Minute)
	limiter.RecordFailure("10.0.0.1")
	limiter.RecordFailure("10.0.0.1")

	if allowed, _ := limiter.Allow("10.0.0.1"); allowed {
		t.Fatal("should be blocked")
	}

	limiter.Reset("10.0.0.1")
	if allowed, _ := limiter.Allow("10.0.0.1"); !allowed {
		t.Error("should be allowed after reset")
	}
	if limiter.Attempts("10.0.0.1") != 0 {
		t.Errorf("Attempts = %d after reset", limiter.Attempts("10.0.0.1"))
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	limiter := NewRateLimiter(2, time.Millisecond, time.Millisecond)
	limiter.RecordFailure("10.0.0.1")
	limiter.RecordFailure("10.0.0.1")

	time.Sleep(5 * time.Millisecond)
	if allowed, _ := limiter.Allow("10.0.0.1"); !allowed {
		t.Error("block should lift after the window expires")
	}
	if removed := limiter.Cleanup(); removed != 1 {
		t.Errorf("Cleanup removed %d, want 1", removed)
	}
}
