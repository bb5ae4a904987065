package auth

import (
	"context"
	"sync"
	"time"
)

// Rate limit defaults for login attempts.
const (
	DefaultMaxAttempts   = 5
	DefaultAttemptWindow = 15 * time.Minute
	DefaultBlockDuration = 30 * time.Minute
)

type attemptRecord struct {
	count   int
	resetAt time.Time
}

// RateLimiter tracks failed login attempts per client IP in a sliding
// window. After maxAttempts failures the IP is blocked for blockDuration;
// a successful login clears the record.
type RateLimiter struct {
	mu            sync.Mutex
	attempts      map[string]attemptRecord
	maxAttempts   int
	window        time.Duration
	blockDuration time.Duration
}

// NewRateLimiter builds a limiter; zero arguments take the defaults.
func NewRateLimiter(maxAttempts int, window, blockDuration time.Duration) *RateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultAttemptWindow
	}
	if blockDuration <= 0 {
		blockDuration = DefaultBlockDuration
	}
	return &RateLimiter{
		attempts:      make(map[string]attemptRecord),
		maxAttempts:   maxAttempts,
		window:        window,
		blockDuration: blockDuration,
	}
}

// Allow reports whether ip may attempt a login, and when blocked, how long
// until the block lifts.
func (r *RateLimiter) Allow(ip string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.attempts[ip]
	if !ok || time.Now().After(record.resetAt) {
		return true, 0
	}
	if record.count >= r.maxAttempts {
		return false, time.Until(record.resetAt)
	}
	return true, 0
}

// RecordFailure counts one failed attempt for ip. Hitting the limit extends
// the reset time to the block duration.
func (r *RateLimiter) RecordFailure(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	record, ok := r.attempts[ip]
	if !ok || now.After(record.resetAt) {
		r.attempts[ip] = attemptRecord{count: 1, resetAt: now.Add(r.window)}
		return
	}

	record.count++
	if record.count == r.maxAttempts {
		record.resetAt = now.Add(r.blockDuration)
	}
	r.attempts[ip] = record
}

// Reset clears the record for ip after a successful login.
func (r *RateLimiter) Reset(ip string) {
	r.mu.Lock()
	delete(r.attempts, ip)
	r.mu.Unlock()
}

// Attempts reports the current failure count for ip.
func (r *RateLimiter) Attempts(ip string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.attempts[ip]
	if !ok || time.Now().After(record.resetAt) {
		return 0
	}
	return record.count
}

// Cleanup drops expired records and returns how many were removed.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	now := time.Now()
	for ip, record := range r.attempts {
		if now.After(record.resetAt) {
			delete(r.attempts, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker runs Cleanup every interval until ctx is cancelled.
func (r *RateLimiter) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Cleanup()
			}
		}
	}()
}
