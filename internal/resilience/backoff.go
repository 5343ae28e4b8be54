package resilience

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// BaseDelay is the first retry delay.
	BaseDelay = 1000 * time.Millisecond
	// MaxDelay caps the exponential growth.
	MaxDelay = 20000 * time.Millisecond
	// JitterSpan is the maximum jitter added on top of the capped delay.
	JitterSpan = 300 * time.Millisecond
)

// Delay computes the backoff for the given 1-based attempt:
//
//	min(MaxDelay, BaseDelay * 2^(attempt-1)) + floor(jitter * JitterSpan)
//
// jitter is expected in [0, 1). Attempts below 1 are treated as 1.
func Delay(attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exp := attempt - 1
	// 2^5 already exceeds the cap; clamp before shifting to avoid overflow.
	if exp > 5 {
		exp = 5
	}
	d := BaseDelay << exp
	if d > MaxDelay {
		d = MaxDelay
	}
	jms := int64(jitter * float64(JitterSpan/time.Millisecond))
	return d + time.Duration(jms)*time.Millisecond
}

// Backoff tracks consecutive failed attempts for one connection.
type Backoff struct {
	mu      sync.Mutex
	attempt int
	jitter  func() float64
}

// NewBackoff returns a schedule with random jitter.
func NewBackoff() *Backoff {
	return &Backoff{jitter: rand.Float64}
}

// NewBackoffWithJitter injects a deterministic jitter source for tests.
func NewBackoffWithJitter(jitter func() float64) *Backoff {
	return &Backoff{jitter: jitter}
}

// Next records a failed attempt and returns how long to wait before the next.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt++
	return Delay(b.attempt, b.jitter())
}

// Attempt returns the count of consecutive failures so far.
func (b *Backoff) Attempt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}

// Reset clears the failure count. Called once a connection has stayed up
// long enough to be considered stable, so a brief flap after long uptime
// does not inherit a stale exponent.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
}
