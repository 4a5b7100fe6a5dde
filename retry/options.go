package retry

import (
	"context"
	"time"
)

// Option configures a Runner or ValueRunner.
type Option func(*options)

type options struct {
	retries int
	backoff Backoff
	jitter  Jitter
	sleep   func(ctx context.Context, d time.Duration) error
}

// WithRetries sets the number of retries after the initial attempt.
// Total attempts equal retries+1. Zero disables retrying.
func WithRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithBackoff sets the backoff strategy used between attempts.
func WithBackoff(b Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithJitter sets the jitter strategy applied to backoff delays.
func WithJitter(j Jitter) Option {
	return func(o *options) {
		o.jitter = j
	}
}

// WithSleeper replaces the backoff sleep function. Tests use this to run
// retry loops without real delays.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}
