package httpx

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes exponential delays between retry attempts.
type Backoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    float64
}

// NewBackoff returns a Backoff with sane lower bounds applied.
func NewBackoff(base, max time.Duration, jitter float64) Backoff {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if max < base {
		max = base
	}
	return Backoff{BaseDelay: base, MaxDelay: max, Jitter: math.Max(0, math.Min(jitter, 1))}
}

// ForAttempt returns the delay before retry number attempt (0-indexed).
func (b Backoff) ForAttempt(attempt int) time.Duration {
	delay := b.BaseDelay
	if attempt > 0 {
		delay = time.Duration(float64(b.BaseDelay) * math.Pow(2, float64(attempt)))
	}
	if delay <= 0 || delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	if b.Jitter == 0 {
		return delay
	}
	factor := 1 + (rand.Float64()*2-1)*b.Jitter
	return time.Duration(float64(delay) * factor)
}
