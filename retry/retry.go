// Package retry executes operations that may fail transiently, with
// exponential backoff between attempts. It distinguishes temporary from
// permanent failures: wrap an error with Abort to stop retrying
// immediately.
//
// Basic usage:
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//	    return callDownstream(ctx)
//	})
//
// With custom options:
//
//	err := retry.Do(ctx, operation,
//	    retry.WithRetries(3),
//	    retry.WithBackoff(retry.ExpBackoff{Base: time.Second, Factor: 2}),
//	)
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	defaultRetries       = 3
	defaultBaseDelay     = time.Second
	defaultBackoffFactor = 2.0
)

// Runner executes operations with retry logic according to a fixed
// configuration.
type Runner interface {
	Do(ctx context.Context, f func(ctx context.Context) error) error
}

// ValueRunner is the generic counterpart of Runner for operations that
// return a value.
type ValueRunner[T any] interface {
	Do(ctx context.Context, f func(ctx context.Context) (T, error)) (T, error)
}

// NewRunner creates a Runner. Defaults: 3 retries (4 total attempts),
// exponential backoff with 1s base and factor 2 (1s, 2s, 4s), no jitter.
func NewRunner(opts ...Option) Runner {
	return &runnerImpl{opts: buildOptions(opts)}
}

// NewValueRunner creates a ValueRunner with the same defaults as NewRunner.
func NewValueRunner[T any](opts ...Option) ValueRunner[T] {
	return &valueRunnerImpl[T]{opts: buildOptions(opts)}
}

func buildOptions(opts []Option) *options {
	intOpts := &options{
		retries: defaultRetries,
		backoff: ExpBackoff{
			Base:   defaultBaseDelay,
			Factor: defaultBackoffFactor,
		},
		jitter: WithoutJitter,
		sleep:  sleepContext,
	}

	for _, option := range opts {
		option(intOpts)
	}

	return intOpts
}

type runnerImpl struct {
	opts *options
}

func (r *runnerImpl) Do(ctx context.Context, f func(ctx context.Context) error) error {
	return do(ctx, r.opts, f)
}

type valueRunnerImpl[T any] struct {
	opts *options
}

func (v *valueRunnerImpl[T]) Do(ctx context.Context, f func(ctx context.Context) (T, error)) (T, error) {
	var out T

	err := do(ctx, v.opts, func(ctx context.Context) error {
		var err error

		out, err = f(ctx)

		return err
	})
	if err != nil {
		var zero T

		return zero, err
	}

	return out, nil
}

// do is the core retry loop. Total attempts equal retries+1. The delay
// before retry k (1-based) is backoff.Delay(k-1), optionally jittered.
// Only an error wrapped with Abort stops the loop early; it is returned
// unwrapped. Every other failure is retried, regardless of what a stdlib
// Temporary method on it reports. Context cancellation is honored both
// during the operation and during backoff sleeps.
func do(ctx context.Context, opts *options, operation func(ctx context.Context) error) error {
	var err error

	for attempt := 0; attempt <= opts.retries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = operation(withAttempt(ctx, attempt))
		if err == nil {
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return p.error
		}

		if attempt == opts.retries {
			break
		}

		delay := opts.jitter.jitter(opts.backoff.Delay(uint(attempt)))
		if sleepErr := opts.sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}

	return err
}

// sleepContext waits for d, returning early with ctx.Err() on cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do creates a Runner and executes f in a single call.
func Do(ctx context.Context, f func(ctx context.Context) error, opts ...Option) error {
	return NewRunner(opts...).Do(ctx, f)
}

// DoValue creates a ValueRunner and executes f in a single call.
func DoValue[T any](ctx context.Context, f func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	return NewValueRunner[T](opts...).Do(ctx, f)
}

// ctxKey is the type for context keys used internally to avoid collisions.
type ctxKey string

const attemptKey ctxKey = "attempt"

func withAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey, attempt)
}

// Attempt returns the zero-based attempt number of the current operation
// invocation, or 0 outside a retry loop.
func Attempt(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey).(int); ok {
		return n
	}

	return 0
}
