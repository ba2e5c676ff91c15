// Package backoff computes the delay between reconnection attempts.
package backoff

import "time"

// Policy is an exponential backoff: Base doubled per attempt, capped at
// Max. Attempts beyond MaxAttempts are not retried at all.
type Policy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// Default matches the behavior of the web client: 1s base, 10s cap,
// five attempts before giving up.
func Default() Policy {
	return Policy{Base: time.Second, Max: 10 * time.Second, MaxAttempts: 5}
}

// Delay returns the wait before attempt n (0-based). The cap is applied
// here, before any timer is armed, so a large n can never schedule an
// unbounded sleep.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Exhausted reports whether attempt n (0-based) exceeds the ceiling.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
