package app

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/hylla/mauflow/internal/clock"
	"github.com/hylla/mauflow/internal/domain"
)

// BackoffPolicy configures RetryWithBackoff.
type BackoffPolicy struct {
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	MaxAttempts int
	// JitterRatio adds up to JitterRatio*delay of random extra wait.
	JitterRatio float64
}

// DefaultBackoffPolicy returns the policy used for storage and delivery retries.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 3,
		JitterRatio: 0.1,
	}
}

// Waiter blocks for d or until ctx ends.
type Waiter func(ctx context.Context, d time.Duration) error

// clockWaiter returns a Waiter driven by c.
func clockWaiter(c clock.Clock) Waiter {
	return func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.After(d):
			return nil
		}
	}
}

// Retrier runs functions under a backoff policy.
type Retrier struct {
	Policy BackoffPolicy
	Wait   Waiter
	// Sample returns a value in [0,1) used for jitter.
	Sample func() float64
	// OnRetry observes each failed attempt that will be retried.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NewRetrier returns a Retrier waiting on c.
func NewRetrier(policy BackoffPolicy, c clock.Clock) *Retrier {
	if c == nil {
		c = clock.Real()
	}
	return &Retrier{Policy: policy, Wait: clockWaiter(c), Sample: rand.Float64}
}

// Delay returns the backoff before retry number attempt (0-based), jitter included.
func (r *Retrier) Delay(attempt int) time.Duration {
	p := r.Policy
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(multiplier, float64(attempt)))
	if p.MaxDelay > 0 && (delay > p.MaxDelay || delay < 0) {
		delay = p.MaxDelay
	}
	if p.JitterRatio > 0 && r.Sample != nil {
		delay += time.Duration(float64(delay) * p.JitterRatio * clampUnit(r.Sample()))
	}
	return delay
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the policy's attempts run out.
func (r *Retrier) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := r.Policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := r.Wait
	if wait == nil {
		wait = clockWaiter(clock.Real())
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !domain.IsRetryable(err) || attempt == attempts-1 {
			return err
		}
		delay := r.Delay(attempt)
		if r.OnRetry != nil {
			r.OnRetry(attempt+1, delay, err)
		}
		if waitErr := wait(ctx, delay); waitErr != nil {
			return domain.ClassifyError(waitErr)
		}
	}
	return err
}

// RetryWithBackoff runs fn under policy using the real clock.
func RetryWithBackoff(ctx context.Context, policy BackoffPolicy, fn func(context.Context) error) error {
	return NewRetrier(policy, clock.Real()).Do(ctx, fn)
}

// clampUnit clamps v into [0,1].
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
