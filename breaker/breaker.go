// Package breaker implements a circuit breaker keyed per logical downstream
// dependency. A breaker is an explicitly owned, injectable component: tests
// construct isolated instances with a fake clock and assert transitions
// deterministically.
//
// The breaker protects the downstream dependency, not just the caller: it is
// shared across all conversations hitting the same dependency, so a burst of
// failures from one user opens the circuit for everyone. State lives in
// process memory only and resets on restart.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// State is the circuit breaker state.
type State int

const (
	// Closed lets calls through and counts consecutive failures.
	Closed State = iota
	// Open fails every call fast without contacting the dependency.
	Open
	// HalfOpen lets exactly one probe call through after the cooldown.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// OpenError is returned when the circuit is open and the call was not
// attempted. Callers treat it like a transient dependency failure.
type OpenError struct {
	Dependency string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for dependency %q", e.Dependency)
}

const (
	// DefaultThreshold is the number of consecutive failures that opens
	// the circuit.
	DefaultThreshold = 5
	// DefaultCooldown is how long the circuit stays open before allowing
	// a probe.
	DefaultCooldown = 30 * time.Second
)

// Breaker is a circuit breaker for one logical dependency.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool

	fastFails atomic.Int64
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithThreshold sets the consecutive-failure count that opens the circuit.
func WithThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long the circuit stays open before a probe is
// allowed through.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock replaces the time source. Tests use this to step through the
// cooldown without sleeping.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a Breaker for the named dependency, starting Closed.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: DefaultThreshold,
		cooldown:  DefaultCooldown,
		now:       time.Now,
		state:     Closed,
	}

	for _, opt := range opts {
		opt(b)
	}

	stateGauge.WithLabelValues(b.name).Set(float64(Closed))

	return b
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, accounting for cooldown expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && b.cooledDown() {
		return HalfOpen
	}

	return b.state
}

// Do executes f through the breaker. While open (and not cooled down) it
// returns *OpenError without invoking f. In half-open state exactly one
// caller gets to probe; concurrent callers fail fast. f's error outcome
// feeds the failure counter: any non-nil error counts as one failure.
func (b *Breaker) Do(ctx context.Context, f func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		b.fastFails.Inc()
		fastFailsTotal.WithLabelValues(b.name).Inc()

		return err
	}

	err := f(ctx)
	b.after(err)

	return err
}

// FastFails returns how many calls were rejected without being attempted.
func (b *Breaker) FastFails() int64 {
	return b.fastFails.Load()
}

// before decides whether the call may proceed, transitioning Open→HalfOpen
// when the cooldown has elapsed.
func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if !b.cooledDown() {
			return &OpenError{Dependency: b.name}
		}

		b.setState(HalfOpen)
		b.probing = true

		return nil
	case HalfOpen:
		if b.probing {
			// A probe is already in flight; only one gets through.
			return &OpenError{Dependency: b.name}
		}

		b.probing = true

		return nil
	default:
		return &OpenError{Dependency: b.name}
	}
}

// after records the call outcome and applies state transitions.
func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		// Success closes the circuit and resets the failure counter,
		// whether this was a probe or a regular closed-state call.
		b.failures = 0
		b.probing = false
		b.setState(Closed)

		return
	}

	b.failures++
	b.lastFailure = b.now()

	if b.state == HalfOpen {
		// Failed probe: re-open and restart the cooldown clock.
		b.probing = false
		b.setState(Open)
		opensTotal.WithLabelValues(b.name).Inc()

		return
	}

	if b.failures >= b.threshold && b.state == Closed {
		b.setState(Open)
		opensTotal.WithLabelValues(b.name).Inc()
	}
}

// cooledDown reports whether the cooldown since the last failure has
// elapsed. Callers must hold b.mu.
func (b *Breaker) cooledDown() bool {
	return b.now().Sub(b.lastFailure) >= b.cooldown
}

// setState updates the state and the exported gauge. Callers must hold b.mu.
func (b *Breaker) setState(s State) {
	b.state = s
	stateGauge.WithLabelValues(b.name).Set(float64(s))
}
