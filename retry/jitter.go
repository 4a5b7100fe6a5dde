package retry

import (
	"math/rand"
	"time"
)

// Jitter randomizes backoff delays to avoid synchronized retries from many
// callers. The value is the random share of the delay:
//   - 0.5: half random, half deterministic
//   - 1.0: fully random between 0 and the delay
//   - negative: disabled (exact delay)
type Jitter float64

// EqualJitter blends half randomness with half of the deterministic delay.
const EqualJitter Jitter = 0.5

// FullJitter makes the delay completely random between 0 and the
// calculated value.
const FullJitter Jitter = 1.0

// WithoutJitter uses the exact calculated delay. This is the default:
// conversational turnaround budgets are easier to reason about when retry
// timing is deterministic.
const WithoutJitter Jitter = -1.0

func (j Jitter) jitter(d time.Duration) time.Duration {
	if j <= 0.0 {
		return d
	}

	//nolint:gosec // math/rand is sufficient for jitter
	r := rand.Float64() * float64(d)

	if j < 1.0 {
		r = float64(j)*r + float64(1.0-j)*float64(d)
	}

	return time.Duration(r)
}
