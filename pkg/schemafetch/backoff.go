package schemafetch

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	baseDelay = time.Second
	maxDelay  = 10 * time.Second
)

// Backoff returns the delay applied after the attempt-th failed attempt
// (1-based) and before the next one: min(1s * 2^attempt, 10s).
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// 2^4 seconds already exceeds the cap.
	if attempt >= 4 {
		return maxDelay
	}
	d := baseDelay << attempt
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// scheduleBackOff is a backoff.BackOff producing the Backoff schedule with no jitter.
type scheduleBackOff struct {
	failures int
}

var _ backoff.BackOff = (*scheduleBackOff)(nil)

func (b *scheduleBackOff) NextBackOff() time.Duration {
	b.failures++
	return Backoff(b.failures)
}

func (b *scheduleBackOff) Reset() {
	b.failures = 0
}
