package scheduler

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry policy defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 1 * time.Second

	// jitterFactor spreads retry delays uniformly across [0.8, 1.2] times
	// the exponential delay so simultaneous retries don't herd.
	jitterFactor = 0.2

	// noDelayCap stands in for "uncapped" in the backoff policy; with sane
	// attempt counts the exponential curve never reaches it.
	noDelayCap = 24 * time.Hour
)

// RetryPolicy decides whether and when a failed task is retried.
// The delay before attempt n+1 is BackoffBase * 2^(n-1), optionally jittered.
type RetryPolicy struct {
	MaxAttempts int           // Total attempts allowed, default 3
	BackoffBase time.Duration // First retry delay, default 1s
	Jitter      bool          // Multiply delays by a uniform factor in [0.8, 1.2]
	MaxDelay    time.Duration // Cap on a single delay; zero = no cap
}

// DefaultRetryPolicy returns the default retry configuration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BackoffBase: DefaultBackoffBase,
	}
}

// ShouldRetry reports whether a task that has made the given number of
// attempts may run again, and how long it must wait first. Returns
// (false, 0) once the attempt budget is spent.
func (p RetryPolicy) ShouldRetry(attempts int) (bool, time.Duration) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if attempts >= maxAttempts {
		return false, 0
	}
	return true, p.delay(attempts)
}

// delay computes the wait after the given attempt by stepping an exponential
// backoff policy that many times: the nth step yields base * 2^(n-1).
func (p RetryPolicy) delay(attempts int) time.Duration {
	base := p.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = noDelayCap
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = base
	eb.Multiplier = 2.0
	eb.MaxInterval = maxDelay
	eb.MaxElapsedTime = 0 // never give up; attempt budget is enforced above
	eb.RandomizationFactor = 0
	if p.Jitter {
		eb.RandomizationFactor = jitterFactor
	}
	eb.Reset()

	var d time.Duration
	for i := 0; i < attempts; i++ {
		d = eb.NextBackOff()
	}
	return d
}
