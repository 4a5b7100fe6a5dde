package retry

import (
	"math"
	"time"
)

// Backoff calculates the delay before a retry attempt.
type Backoff interface {
	// Delay returns the duration to wait before the next retry.
	// The attempt parameter is zero-indexed (0 for the first retry).
	Delay(attempt uint) time.Duration
}

// ExpBackoff implements exponential backoff: Base * Factor^attempt,
// optionally capped at Max (a zero Max means uncapped).
//
// With Base=1s and Factor=2 the retry delays are 1s, 2s, 4s, ...
type ExpBackoff struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Max caps the delay; zero means no cap.
	Max time.Duration
	// Factor is the multiplier applied per attempt (e.g. 2.0 for doubling).
	Factor float64
}

// Delay returns Base * Factor^attempt clamped to [Base, Max].
func (b ExpBackoff) Delay(attempt uint) time.Duration {
	f := float64(b.Base) * math.Pow(b.Factor, float64(attempt))

	d := time.Duration(f)
	if d < b.Base {
		return b.Base
	}

	if b.Max > 0 && d > b.Max {
		return b.Max
	}

	return d
}

// ConstantBackoff waits the same duration before every retry. Used by the
// outbox drainer, where pacing matters more than rampdown.
type ConstantBackoff time.Duration

// Delay returns the constant duration regardless of attempt.
func (b ConstantBackoff) Delay(uint) time.Duration {
	return time.Duration(b)
}
